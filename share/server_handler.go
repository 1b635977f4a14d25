package gwshare

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{ProtocolVersion},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// webSocketListener is a net.Listener whose connections are websockets upgraded by
// an HTTP server. It lets a broker accept a WebSocket control connection through the
// same ListeningSocket and Multiplexer path as a TCP one.
type webSocketListener struct {
	Logger
	server    *HTTPServer
	addr      net.Addr
	conns     chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// Accept waits for the next upgraded connection
func (l *webSocketListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close stops the HTTP server. Upgraded connections that were never accepted are
// closed.
func (l *webSocketListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.server.Close()
		for {
			select {
			case c := <-l.conns:
				c.Close()
			default:
				return
			}
		}
	})
	return err
}

// Addr returns the HTTP server's bound address
func (l *webSocketListener) Addr() net.Addr {
	return l.addr
}

// ServeHTTP upgrades control channel requests and answers health checks
func (l *webSocketListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrade := strings.ToLower(r.Header.Get("Upgrade"))
	if upgrade == "websocket" {
		protocol := r.Header.Get("Sec-WebSocket-Protocol")
		if protocol == ProtocolVersion {
			l.DLogf("Upgrading to websocket, URL=\"%s\", protocol=\"%s\"", r.URL.String(), protocol)
			wsConn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				l.DLogf("Failed to upgrade to websocket: %s", err)
				return
			}
			conn := NewWebSocketConn(wsConn)
			select {
			case l.conns <- conn:
			case <-l.done:
				conn.Close()
			}
			return
		}
		l.ILogf("Client connection using unsupported websocket protocol '%s', expected '%s'",
			protocol, ProtocolVersion)
		http.Error(w, "Not Found", 404)
		return
	}

	if r.URL.Path == "/health" {
		w.Write([]byte("OK\n"))
		return
	}
	http.Error(w, "Not Found", 404)
}
