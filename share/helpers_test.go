package gwshare

import (
	"os"
	"testing"
	"time"

	"github.com/prep/socketpair"
)

const testTimeout = 5 * time.Second

func newTestLogger(t *testing.T) Logger {
	logLevel := LogLevelWarning
	if testing.Verbose() {
		logLevel = LogLevelDebug
	}
	return NewLoggerWithWriter(os.Stderr, t.Name(), logLevel)
}

// newSocketPair returns two connected FramedSockets that are closed when the test ends
func newSocketPair(t *testing.T, logger Logger) (*FramedSocket, *FramedSocket) {
	t.Helper()
	c1, c2, err := socketpair.New("unix")
	if err != nil {
		t.Fatalf("socketpair: %s", err)
	}
	s1 := NewFramedSocket(logger, c1)
	s2 := NewFramedSocket(logger, c2)
	t.Cleanup(func() {
		s1.Close()
		s2.Close()
	})
	return s1, s2
}

func testPayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}
