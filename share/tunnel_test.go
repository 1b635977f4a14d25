package gwshare

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

// startEchoBackend serves connections that echo everything back
func startEchoBackend(t *testing.T) net.Listener {
	l := listenLoopback(t)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c)
			}()
		}
	}()
	return l
}

// startTunnel runs a far and a near broker joined over transport and returns the
// far broker's job address
func startTunnel(t *testing.T, transport string, backendPort int) (net.Addr, *FarBroker) {
	t.Helper()
	logger := newTestLogger(t)

	farConfig := newFarConfig()
	farConfig.Transport = transport
	far, err := NewFarBroker(logger.Fork("far"), farConfig)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	farErr := make(chan error, 1)
	go func() { farErr <- far.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, testTimeout)
	defer waitCancel()
	controlAddr, err := far.ControlAddr(waitCtx)
	if err != nil {
		t.Fatal(err)
	}

	nearConfig := newNearConfig(tcpPort(controlAddr), backendPort)
	nearConfig.Transport = transport
	near, err := NewNearBroker(logger.Fork("near"), nearConfig)
	if err != nil {
		t.Fatal(err)
	}
	nearErr := make(chan error, 1)
	go func() { nearErr <- near.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		for _, errc := range []chan error{farErr, nearErr} {
			select {
			case err := <-errc:
				if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrControlLost) {
					t.Errorf("Run = %s", err)
				}
			case <-time.After(testTimeout):
				t.Errorf("broker did not stop")
			}
		}
	})

	jobAddr, err := far.JobAddr(waitCtx)
	if err != nil {
		t.Fatal(err)
	}
	return jobAddr, far
}

func echoThroughTunnel(t *testing.T, jobAddr net.Addr, data []byte) error {
	c, err := net.DialTimeout("tcp", jobAddr.String(), testTimeout)
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(testTimeout))

	writeErr := make(chan error, 1)
	go func() {
		_, err := c.Write(data)
		writeErr <- err
	}()
	got := make([]byte, len(data))
	if _, err := io.ReadFull(c, got); err != nil {
		return err
	}
	if err := <-writeErr; err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return errors.New("echoed bytes differ")
	}
	return nil
}

func testTunnel(t *testing.T, transport string) {
	backend := startEchoBackend(t)
	jobAddr, far := startTunnel(t, transport, tcpPort(backend.Addr()))

	if err := echoThroughTunnel(t, jobAddr, []byte("hello")); err != nil {
		t.Fatalf("single echo: %s", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- echoThroughTunnel(t, jobAddr, testPayload(1000+i*10000))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent echo: %s", err)
		}
	}

	// Closed clients are released on both sides
	deadline := time.Now().Add(testTimeout)
	for far.Stats().NumOpen() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d jobs still open on the far side", far.Stats().NumOpen())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := far.Stats().NumTotal(); n != 9 {
		t.Errorf("far broker saw %d jobs, want 9", n)
	}
}

func TestTunnelTCP(t *testing.T) {
	testTunnel(t, TransportTCP)
}

func TestTunnelWebSocket(t *testing.T) {
	testTunnel(t, TransportWebSocket)
}

func TestWebSocketControlHealth(t *testing.T) {
	logger := newTestLogger(t)
	l, err := ListenControl(context.Background(), logger, TransportWebSocket, "127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	resp, err := http.Get("http://" + l.Addr().String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != "OK\n" {
		t.Errorf("health check = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + l.Addr().String() + "/other")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("unknown path = %d", resp.StatusCode)
	}
}
