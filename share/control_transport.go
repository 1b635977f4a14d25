package gwshare

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/requestlog"
)

// ProtocolVersion is the websocket subprotocol spoken on a WebSocket control channel
const ProtocolVersion = "gwtunnel-v1"

// DialControl opens the near broker's end of the control channel using the named
// transport
func DialControl(ctx context.Context, logger Logger, transport string, address string, port int,
	timeout time.Duration) (*FramedSocket, error) {
	switch transport {
	case TransportTCP:
		return Connect(ctx, logger, address, port, timeout)
	case TransportWebSocket:
		return dialWebSocket(ctx, logger, address, port, timeout)
	}
	return nil, fmt.Errorf("%s: unknown control transport \"%s\"", logger.Prefix(), transport)
}

func dialWebSocket(ctx context.Context, logger Logger, address string, port int,
	timeout time.Duration) (*FramedSocket, error) {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(address, strconv.Itoa(port)), Path: "/"}
	d := websocket.Dialer{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: timeout,
		Subprotocols:     []string{ProtocolVersion},
	}
	wsConn, _, err := d.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, fmt.Errorf("%s: WebSocket connect to %s failed: %s", logger.Prefix(), u.String(), err)
	}
	return NewFramedSocket(logger, NewWebSocketConn(wsConn)), nil
}

// ListenControl opens the far broker's control listener using the named transport.
// For TransportWebSocket, an HTTP server upgrades requests carrying the
// ProtocolVersion subprotocol and Accept yields the upgraded connections. Requests
// are logged while debug output is on.
func ListenControl(ctx context.Context, logger Logger, transport string, bindAddress string,
	port int) (*ListeningSocket, error) {
	switch transport {
	case TransportTCP:
		return OpenListeningSocket(ctx, logger, bindAddress, port)
	case TransportWebSocket:
	default:
		return nil, fmt.Errorf("%s: unknown control transport \"%s\"", logger.Prefix(), transport)
	}

	hostPort := net.JoinHostPort(bindAddress, strconv.Itoa(port))
	lc := net.ListenConfig{KeepAlive: TunnelKeepAlivePeriod}
	tcpListener, err := lc.Listen(ctx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("%s: TCP listen failed for '%s': %s", logger.Prefix(), hostPort, err)
	}

	wl := &webSocketListener{
		Logger: logger.Fork("websocket"),
		addr:   tcpListener.Addr(),
		conns:  make(chan net.Conn),
		done:   make(chan struct{}),
	}
	var h http.Handler = wl
	if logger.IsDebug() {
		h = requestlog.Wrap(h)
	}
	wl.server = NewHTTPServer(wl.Logger, h)
	wl.server.Start(tcpListener)
	wl.DLogf("Listening on %s", wl.addr)
	return NewListeningSocket(logger, wl), nil
}
