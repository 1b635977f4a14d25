package gwshare

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

func TestFramedSocketSendReceive(t *testing.T) {
	logger := newTestLogger(t)
	a, b := newSocketPair(t, logger)

	for _, n := range []int{0, 1, 4095, 4096, 100000} {
		payload := testPayload(n)
		sendErr := make(chan error, 1)
		go func() {
			sendErr <- a.Send("0042", payload)
		}()
		f, err := b.Receive()
		if err != nil {
			t.Fatalf("Receive of %d bytes: %s", n, err)
		}
		if err := <-sendErr; err != nil {
			t.Fatalf("Send of %d bytes: %s", n, err)
		}
		if f.ID != "0042" {
			t.Errorf("id = %q, want 0042", f.ID)
		}
		if f.Size() != n || !bytes.Equal(f.Payload, payload) {
			t.Errorf("payload of %d bytes does not match (got %d)", n, f.Size())
		}
		if f.IsClose() != (n == 0) {
			t.Errorf("IsClose() = %v for %d bytes", f.IsClose(), n)
		}
	}
}

func TestFramedSocketReceiveEOF(t *testing.T) {
	logger := newTestLogger(t)
	a, b := newSocketPair(t, logger)

	a.Close()
	if _, err := b.Receive(); err != io.EOF {
		t.Fatalf("Receive after peer close = %v, want io.EOF", err)
	}
}

func TestFramedSocketReceiveTruncated(t *testing.T) {
	logger := newTestLogger(t)
	a, b := newSocketPair(t, logger)

	if err := a.SendRaw([]byte("000100000010PART")); err != nil {
		t.Fatal(err)
	}
	a.Close()
	_, err := b.Receive()
	if !errors.Is(err, gwframe.ErrMalformedFrame) {
		t.Fatalf("Receive of truncated frame = %v, want ErrMalformedFrame", err)
	}
	if gwframe.IsEndOfStream(err) {
		t.Errorf("truncated frame reported as clean end of stream")
	}
}

func TestFramedSocketRaw(t *testing.T) {
	logger := newTestLogger(t)
	a, b := newSocketPair(t, logger)

	if err := a.SendRaw([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for len(got) < len("hello world") {
		data, err := b.ReceiveRaw(4)
		if err != nil {
			t.Fatalf("ReceiveRaw: %s", err)
		}
		if len(data) == 0 || len(data) > 4 {
			t.Fatalf("ReceiveRaw(4) returned %d bytes", len(data))
		}
		got = append(got, data...)
	}
	if string(got) != "hello world" {
		t.Errorf("got %q", got)
	}

	a.Close()
	data, err := b.ReceiveRaw(4096)
	if err != io.EOF || data != nil {
		t.Errorf("ReceiveRaw at end of stream = %q, %v; want nil, io.EOF", data, err)
	}
}

func TestFramedSocketNaming(t *testing.T) {
	logger := newTestLogger(t)
	a, _ := newSocketPair(t, logger)

	if a.Name() != "" || a.IsControl() {
		t.Errorf("new socket has name %q", a.Name())
	}
	if !strings.HasPrefix(a.String(), "noname(") {
		t.Errorf("String() = %q", a.String())
	}
	a.SetName("0007")
	if !strings.HasPrefix(a.String(), "0007(") || a.IsControl() {
		t.Errorf("String() = %q after SetName", a.String())
	}
	a.SetName(gwframe.ControlName)
	if !a.IsControl() {
		t.Errorf("socket named %q is not control", a.Name())
	}
	if strings.Count(a.Prefix(), "ctrl(") != 1 || strings.Contains(a.Prefix(), "0007") {
		t.Errorf("logger prefix %q after renaming", a.Prefix())
	}
}

func TestFramedSocketCloseIdempotent(t *testing.T) {
	logger := newTestLogger(t)
	a, b := newSocketPair(t, logger)

	if err := a.Send("0001", []byte("x")); err != nil {
		t.Fatal(err)
	}
	first := a.Close()
	for i := 0; i < 3; i++ {
		if err := a.Close(); err != first {
			t.Errorf("Close #%d = %v, want %v", i+2, err, first)
		}
	}
	if a.NumBytesWritten != gwframe.HeaderSize+1 {
		t.Errorf("NumBytesWritten = %d", a.NumBytesWritten)
	}
	if err := a.Send("0001", []byte("x")); err == nil {
		t.Errorf("Send on closed socket succeeded")
	}
	if _, err := b.Receive(); err != nil {
		t.Errorf("Receive of frame sent before close: %s", err)
	}
}
