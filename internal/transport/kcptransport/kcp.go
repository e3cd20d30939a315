// Package kcptransport is the default transport.Transport
// implementation: ReliableOrdered rides github.com/xtaci/kcp-go/v5 (ARQ
// over UDP), while Unreliable is a bare net.UDPConn datagram exchange on
// a second, adjacent port. The transport handle stays opaque to retry
// mechanics, and the Unreliable channel never blocks on delivery
// confirmation.
package kcptransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/pjtunstall/by-a-thread/internal/neterr"
	"github.com/pjtunstall/by-a-thread/internal/transport"
)

// unreliablePortOffset is the fixed offset between a Listener's
// reliable (KCP) port and its unreliable (raw UDP) port.
const unreliablePortOffset = 1

const maxDatagramSize = 2048

// frame is one received frame tagged with the channel it arrived on,
// queued for Handle.Receive.
type frame struct {
	channel transport.Channel
	data    []byte
	err     error
}

// Handle is the default transport.Handle: one KCP session for
// ReliableOrdered, one shared raw UDP socket (owned by the Listener or
// Dialer) for Unreliable, and an inbox multiplexing both.
type Handle struct {
	log *logrus.Entry

	kcpConn *kcp.UDPSession

	unreliableConn net.PacketConn // shared; not closed by Handle.Close on the server side
	remoteAddr     net.Addr
	ownsUnreliable bool // true for a dialed (client-side) handle, which owns its own unreliable socket

	inbox chan frame
	done  chan struct{}
}

func newHandle(log *logrus.Entry, kcpConn *kcp.UDPSession, unreliableConn net.PacketConn, remoteAddr net.Addr, ownsUnreliable bool) *Handle {
	h := &Handle{
		log:            log.WithField("component", "transport.kcp"),
		kcpConn:        kcpConn,
		unreliableConn: unreliableConn,
		remoteAddr:     remoteAddr,
		ownsUnreliable: ownsUnreliable,
		inbox:          make(chan frame, 64),
		done:           make(chan struct{}),
	}
	go h.readReliableLoop()
	if ownsUnreliable {
		go h.readUnreliableLoop()
	}
	return h
}

func (h *Handle) readReliableLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, err := h.kcpConn.Read(buf)
		if err != nil {
			select {
			case h.inbox <- frame{err: neterr.TransportFailure("reliable channel read failed", err)}:
			case <-h.done:
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case h.inbox <- frame{channel: transport.ReliableOrdered, data: data}:
		case <-h.done:
			return
		}
	}
}

func (h *Handle) readUnreliableLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := h.unreliableConn.ReadFrom(buf)
		if err != nil {
			select {
			case h.inbox <- frame{err: neterr.TransportFailure("unreliable channel read failed", err)}:
			case <-h.done:
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case h.inbox <- frame{channel: transport.Unreliable, data: data}:
		case <-h.done:
			return
		}
	}
}

// deliverUnreliable is called by the Listener's demux loop to hand a
// datagram already matched to this Handle's remote address.
func (h *Handle) deliverUnreliable(data []byte) {
	select {
	case h.inbox <- frame{channel: transport.Unreliable, data: data}:
	case <-h.done:
	}
}

func (h *Handle) Send(channel transport.Channel, data []byte) error {
	switch channel {
	case transport.ReliableOrdered:
		if _, err := h.kcpConn.Write(data); err != nil {
			return neterr.TransportFailure("reliable send failed", err)
		}
		return nil
	case transport.Unreliable:
		if _, err := h.unreliableConn.WriteTo(data, h.remoteAddr); err != nil {
			return neterr.TransportFailure("unreliable send failed", err)
		}
		return nil
	default:
		return neterr.ProtocolViolation(fmt.Sprintf("unsupported channel %d", channel))
	}
}

func (h *Handle) Receive(ctx context.Context) (transport.Channel, []byte, error) {
	select {
	case f := <-h.inbox:
		if f.err != nil {
			return 0, nil, f.err
		}
		return f.channel, f.data, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (h *Handle) RemoteAddr() net.Addr { return h.remoteAddr }

func (h *Handle) Close() error {
	select {
	case <-h.done:
		return nil
	default:
		close(h.done)
	}
	err := h.kcpConn.Close()
	if h.ownsUnreliable {
		if cerr := h.unreliableConn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Listener accepts incoming peer connections: a KCP listener for the
// reliable channel, and a raw UDP socket demultiplexing unreliable
// datagrams by source address to the matching Handle.
type Listener struct {
	log *logrus.Entry

	kcpListener    *kcp.Listener
	unreliableConn *net.UDPConn

	mu       sync.Mutex
	handles  map[string]*Handle // keyed by remote addr string
}

// Listen starts a Listener on addr for the reliable channel and
// addr's port+1 for the unreliable channel.
func Listen(log *logrus.Entry, addr string) (*Listener, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	kcpListener, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, neterr.TransportFailure("starting kcp listener", err)
	}

	unreliableAddr, err := offsetPort(addr, unreliablePortOffset)
	if err != nil {
		kcpListener.Close()
		return nil, err
	}
	udpAddr, err := net.ResolveUDPAddr("udp", unreliableAddr)
	if err != nil {
		kcpListener.Close()
		return nil, neterr.TransportFailure("resolving unreliable udp addr", err)
	}
	unreliableConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		kcpListener.Close()
		return nil, neterr.TransportFailure("starting unreliable udp listener", err)
	}

	l := &Listener{
		log:            log.WithField("component", "transport.kcp.listener"),
		kcpListener:    kcpListener,
		unreliableConn: unreliableConn,
		handles:        make(map[string]*Handle),
	}
	go l.demuxUnreliable()
	return l, nil
}

func (l *Listener) demuxUnreliable() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := l.unreliableConn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		l.mu.Lock()
		h, ok := l.handles[addr.String()]
		l.mu.Unlock()
		if ok {
			h.deliverUnreliable(data)
		} else {
			l.log.WithField("remote_addr", addr.String()).
				Debug("unreliable datagram from unknown peer, dropping")
		}
	}
}

func (l *Listener) Accept(ctx context.Context) (transport.Handle, error) {
	type result struct {
		conn *kcp.UDPSession
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.kcpListener.AcceptKCP()
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, neterr.TransportFailure("accepting kcp session", r.err)
		}
		h := newHandle(l.log, r.conn, l.unreliableConn, r.conn.RemoteAddr(), false)
		l.mu.Lock()
		l.handles[r.conn.RemoteAddr().String()] = h
		l.mu.Unlock()
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Close() error {
	err := l.kcpListener.Close()
	if cerr := l.unreliableConn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Dialer opens outgoing connections for the client side.
type Dialer struct {
	log *logrus.Entry
}

func NewDialer(log *logrus.Entry) *Dialer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dialer{log: log.WithField("component", "transport.kcp.dialer")}
}

func (d *Dialer) Dial(ctx context.Context, addr string) (transport.Handle, error) {
	kcpConn, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, neterr.TransportFailure("dialing kcp session", err)
	}

	unreliableAddrStr, err := offsetPort(addr, unreliablePortOffset)
	if err != nil {
		kcpConn.Close()
		return nil, err
	}
	unreliableAddr, err := net.ResolveUDPAddr("udp", unreliableAddrStr)
	if err != nil {
		kcpConn.Close()
		return nil, neterr.TransportFailure("resolving unreliable udp addr", err)
	}
	unreliableConn, err := net.DialUDP("udp", nil, unreliableAddr)
	if err != nil {
		kcpConn.Close()
		return nil, neterr.TransportFailure("dialing unreliable udp socket", err)
	}

	return newHandle(d.log, kcpConn, unreliableConn, unreliableConn.RemoteAddr(), true), nil
}

func offsetPort(addr string, offset int) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", neterr.TransportFailure("splitting host/port", err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", neterr.TransportFailure("parsing port", err)
	}
	if port+offset > 65535 || port+offset < 1 {
		return "", errors.New("transport: offset port out of range")
	}
	return fmt.Sprintf("%s:%d", host, port+offset), nil
}
