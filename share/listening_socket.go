package gwshare

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
)

// acceptResult is one completed Accept on the underlying listener
type acceptResult struct {
	conn net.Conn
	err  error
}

// ListeningSocket accepts stream connections and hands them out as unnamed
// FramedSockets. When it is watched by a Multiplexer, the watcher performs the
// accept and parks the result here until Accept collects it.
type ListeningSocket struct {
	Logger
	listener  net.Listener
	accepted  chan acceptResult
	closeOnce sync.Once
	closeErr  error
}

// NewListeningSocket wraps an existing net.Listener. This is how non-TCP control
// transports (WebSocket) present their upgraded connections to a broker.
func NewListeningSocket(logger Logger, listener net.Listener) *ListeningSocket {
	return &ListeningSocket{
		Logger:   logger.Fork("listen %s", listener.Addr()),
		listener: listener,
		accepted: make(chan acceptResult, 1),
	}
}

// OpenListeningSocket binds and listens on bindAddress:port. Port 0 picks an
// ephemeral port; Addr reports the one chosen. The listen backlog is the operating
// system default.
func OpenListeningSocket(ctx context.Context, logger Logger, bindAddress string, port int) (*ListeningSocket, error) {
	hostPort := net.JoinHostPort(bindAddress, strconv.Itoa(port))
	lc := net.ListenConfig{KeepAlive: TunnelKeepAlivePeriod}
	listener, err := lc.Listen(ctx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("%s: TCP listen failed for '%s': %s", logger.Prefix(), hostPort, err)
	}
	l := NewListeningSocket(logger, listener)
	l.DLogf("Listening")
	return l, nil
}

// Addr returns the bound address
func (l *ListeningSocket) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *ListeningSocket) String() string {
	return fmt.Sprintf("listener(%s)", l.listener.Addr())
}

// Accept returns the next connection, blocking if none is pending. The returned
// socket has no name. Accepted TCP connections have keep-alive enabled.
func (l *ListeningSocket) Accept() (*FramedSocket, error) {
	var r acceptResult
	select {
	case r = <-l.accepted:
	default:
		r.conn, r.err = l.listener.Accept()
	}
	if r.err != nil {
		return nil, fmt.Errorf("%s: Accept failed: %w", l.Prefix(), r.err)
	}
	s := NewFramedSocket(l.Logger, r.conn)
	s.DLogf("Accepted")
	return s, nil
}

// prefetch blocks until an accept result is parked, and is called only by this
// listener's multiplexer watcher. A failed accept is parked too, so that Accept
// reports it.
func (l *ListeningSocket) prefetch() error {
	if len(l.accepted) > 0 {
		return nil
	}
	conn, err := l.listener.Accept()
	l.accepted <- acceptResult{conn: conn, err: err}
	return err
}

// Close stops listening. A connection that was accepted but never collected is
// closed as well.
func (l *ListeningSocket) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.listener.Close()
		select {
		case r := <-l.accepted:
			if r.conn != nil {
				r.conn.Close()
			}
		default:
		}
		l.DLogf("Closed")
	})
	return l.closeErr
}
