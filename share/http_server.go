package gwshare

import (
	"net"
	"net/http"
	"sync"
)

// HTTPServer extends net/http Server with a serve goroutine and a Close that waits
// for it
type HTTPServer struct {
	Logger
	*http.Server
	done      chan struct{}
	serveErr  error
	closeOnce sync.Once
}

// NewHTTPServer creates a new HTTPServer that dispatches to handler
func NewHTTPServer(logger Logger, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		Logger: logger.Fork("http"),
		Server: &http.Server{Handler: handler},
		done:   make(chan struct{}),
	}
}

// Start serves requests on l in a new goroutine until Close
func (h *HTTPServer) Start(l net.Listener) {
	go func() {
		err := h.Server.Serve(l)
		if err != http.ErrServerClosed {
			h.serveErr = err
			h.DLogf("Serve ended: %s", err)
		}
		close(h.done)
	}()
}

// Close stops the server and its listener, then returns the serve error, if any.
// Hijacked (upgraded) connections are not affected.
func (h *HTTPServer) Close() error {
	h.closeOnce.Do(func() {
		if err := h.Server.Close(); err != nil {
			h.DLogf("Close failed, ignoring: %s", err)
		}
		<-h.done
	})
	return h.serveErr
}
