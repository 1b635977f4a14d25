package gwshare

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/sizestr"
	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

// FramedSocket wraps one connected stream socket. It can be used raw (job
// connections) or framed (the control connection), and carries the name tag that
// the brokers use to find it: a logical connection id, or "ctrl".
type FramedSocket struct {
	// 64-bit counters first for atomic alignment on 32-bit platforms
	NumBytesRead    int64
	NumBytesWritten int64

	Logger
	baseLogger       Logger
	netConn          net.Conn
	reader           *bufio.Reader
	name             string
	frameReadTimeout time.Duration
	closeOnce        sync.Once
	closeErr         error
}

// socketReader counts bytes pulled off the wire into the socket's buffer
type socketReader struct {
	s *FramedSocket
}

func (r socketReader) Read(p []byte) (int, error) {
	n, err := r.s.netConn.Read(p)
	atomic.AddInt64(&r.s.NumBytesRead, int64(n))
	return n, err
}

// socketWriter counts bytes written to the wire
type socketWriter struct {
	s *FramedSocket
}

func (w socketWriter) Write(p []byte) (int, error) {
	n, err := w.s.netConn.Write(p)
	atomic.AddInt64(&w.s.NumBytesWritten, int64(n))
	return n, err
}

// NewFramedSocket wraps an already connected net.Conn. The socket has no name until
// SetName is called.
func NewFramedSocket(logger Logger, netConn net.Conn) *FramedSocket {
	s := &FramedSocket{
		baseLogger: logger,
		netConn:    netConn,
	}
	s.reader = bufio.NewReaderSize(socketReader{s}, 64*1024)
	s.Logger = logger.Fork("%s", s)
	return s
}

// Connect opens a TCP connection to address:port and wraps it. Any connect-time
// error, including ctx cancellation and timeout, is returned as failure.
func Connect(ctx context.Context, logger Logger, address string, port int, timeout time.Duration) (*FramedSocket, error) {
	hostPort := net.JoinHostPort(address, strconv.Itoa(port))
	d := net.Dialer{
		Timeout:   timeout,
		KeepAlive: TunnelKeepAlivePeriod,
	}
	netConn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("%s: Connect to %s failed: %s", logger.Prefix(), hostPort, err)
	}
	return NewFramedSocket(logger, netConn), nil
}

// SetName tags the socket with a logical connection id or the control tag
func (s *FramedSocket) SetName(name string) {
	s.name = name
	s.Logger = s.baseLogger.Fork("%s", s)
}

// Name returns the socket's tag; empty if it has not been named
func (s *FramedSocket) Name() string {
	return s.name
}

// IsControl returns true if this socket is tagged as the control socket
func (s *FramedSocket) IsControl() bool {
	return s.name == gwframe.ControlName
}

// SetFrameReadTimeout bounds each Receive call; 0 disables the bound
func (s *FramedSocket) SetFrameReadTimeout(timeout time.Duration) {
	s.frameReadTimeout = timeout
}

func (s *FramedSocket) String() string {
	name := s.name
	if name == "" {
		name = "noname"
	}
	return fmt.Sprintf("%s(%s)", name, s.netConn.RemoteAddr())
}

// RemoteAddr returns the address of the peer
func (s *FramedSocket) RemoteAddr() net.Addr {
	return s.netConn.RemoteAddr()
}

// SendRaw writes all of b, blocking until it is flushed to the kernel or the
// connection fails
func (s *FramedSocket) SendRaw(b []byte) error {
	_, err := socketWriter{s}.Write(b)
	return err
}

// ReceiveRaw reads at most maxLength bytes. End of stream is reported as io.EOF
// and never as an empty success.
func (s *FramedSocket) ReceiveRaw(maxLength int) ([]byte, error) {
	buf := make([]byte, maxLength)
	n, err := s.reader.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, err
}

// Send writes one frame for logical connection id. An empty payload tells the peer
// that id is closed.
func (s *FramedSocket) Send(id string, payload []byte) error {
	return gwframe.Encode(socketWriter{s}, gwframe.NewDataFrame(id, payload))
}

// Receive reads exactly one frame. It returns io.EOF if the peer closed the
// connection cleanly between frames; any other error means the stream is broken.
// Either way the socket is no longer usable.
func (s *FramedSocket) Receive() (*gwframe.Frame, error) {
	if s.frameReadTimeout > 0 {
		if err := s.netConn.SetReadDeadline(time.Now().Add(s.frameReadTimeout)); err != nil {
			return nil, err
		}
		defer s.netConn.SetReadDeadline(time.Time{})
	}
	return gwframe.Decode(s.reader)
}

// waitReadable blocks until at least one byte is buffered, or the connection has
// reached end of stream or failed. The multiplexer calls it while the event loop
// is not touching the read side.
func (s *FramedSocket) waitReadable() error {
	_, err := s.reader.Peek(1)
	return err
}

// Close closes the connection. It may be called any number of times; only the
// first call has any effect, and later calls return the first result.
func (s *FramedSocket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.netConn.Close()
		s.DLogf("Closed (sent %s received %s)",
			sizestr.ToString(atomic.LoadInt64(&s.NumBytesWritten)),
			sizestr.ToString(atomic.LoadInt64(&s.NumBytesRead)))
	})
	return s.closeErr
}
