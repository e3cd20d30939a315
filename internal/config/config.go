// Package config reads a bare environment-variable CLI surface. No
// flags framework is introduced; see DESIGN.md for why this is the one
// ambient concern kept on the standard library.
package config

import (
	"os"
	"strconv"
)

// DefaultServerAddr is the fallback the client's ServerAddress lobby
// state may offer when BA_SERVER_ADDR is unset.
const DefaultServerAddr = "127.0.0.1:7777"

const (
	defaultPort       = 7777
	defaultTickRate   = 60
	defaultMaxPlayers = 8
)

// Server holds the authoritative server's startup configuration.
type Server struct {
	IP          string
	Port        int
	TickRate    int
	MaxPlayers  int
	MetricsAddr string
}

// LoadServer reads IP, PORT, BA_TICK_RATE, BA_MAX_PLAYERS, and
// BA_METRICS_ADDR from the environment, falling back to sane defaults.
func LoadServer() Server {
	return Server{
		IP:          getEnv("IP", "0.0.0.0"),
		Port:        getEnvInt("PORT", defaultPort),
		TickRate:    getEnvInt("BA_TICK_RATE", defaultTickRate),
		MaxPlayers:  getEnvInt("BA_MAX_PLAYERS", defaultMaxPlayers),
		MetricsAddr: getEnv("BA_METRICS_ADDR", ":9100"),
	}
}

// Client holds the client's startup configuration.
type Client struct {
	ServerAddr string
}

// LoadClient reads BA_SERVER_ADDR, defaulting to DefaultServerAddr when unset.
func LoadClient() Client {
	return Client{ServerAddr: getEnv("BA_SERVER_ADDR", DefaultServerAddr)}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
