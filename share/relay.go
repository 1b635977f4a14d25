package gwshare

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

// BrokerState is the lifecycle state of a near or far broker
type BrokerState int32

const (
	// StateIdle means Run has not been called
	StateIdle BrokerState = iota

	// StateConnectingControl means the near broker is dialing the far broker
	StateConnectingControl

	// StateAwaitingControl means the far broker is waiting for the near broker to connect
	StateAwaitingControl

	// StateRunning means the control connection is up and jobs are being relayed
	StateRunning

	// StateTerminated means Run has returned
	StateTerminated
)

var brokerStateNames = map[BrokerState]string{
	StateIdle:              "IDLE",
	StateConnectingControl: "CONNECTING_CONTROL",
	StateAwaitingControl:   "AWAITING_CONTROL",
	StateRunning:           "RUNNING",
	StateTerminated:        "TERMINATED",
}

func (x BrokerState) String() string {
	if s, ok := brokerStateNames[x]; ok {
		return s
	}
	return fmt.Sprintf("BrokerState(%d)", int32(x))
}

// relay is the state and logic shared by the near and far brokers: the socket
// table, the multiplexer, and the per-job relay and cleanup steps. All of its
// methods run on the broker's event loop goroutine.
type relay struct {
	Logger
	table     *SocketTable
	mux       *Multiplexer
	stats     ConnStats
	chunkSize int
	state     int32
}

func (r *relay) initRelay(logger Logger, chunkSize int) {
	r.Logger = logger
	r.table = NewSocketTable()
	r.mux = NewMultiplexer(logger)
	r.chunkSize = chunkSize
}

// State returns the broker's current lifecycle state. It may be called from any
// goroutine.
func (r *relay) State() BrokerState {
	return BrokerState(atomic.LoadInt32(&r.state))
}

func (r *relay) setState(state BrokerState) {
	old := BrokerState(atomic.SwapInt32(&r.state, int32(state)))
	if old != state {
		r.DLogf("%s -> %s", old, state)
	}
}

// Stats returns the broker's job connection statistics
func (r *relay) Stats() *ConnStats {
	return &r.stats
}

// Status summarizes state and traffic for operator output
func (r *relay) Status() string {
	return fmt.Sprintf("%s: %s", r.State(), r.stats.Summary())
}

// addJob tags s with id and puts it in the table
func (r *relay) addJob(s *FramedSocket, id string) error {
	s.SetName(id)
	if err := r.table.Add(s); err != nil {
		return err
	}
	r.stats.New()
	r.stats.Open()
	s.DLogf("Opened %s", &r.stats)
	return nil
}

// sendControl writes one frame on the control socket. Any failure is control loss.
func (r *relay) sendControl(id string, payload []byte) error {
	ctrl := r.table.Control()
	if ctrl == nil {
		return fmt.Errorf("%s: %w: no control socket", r.Prefix(), ErrControlLost)
	}
	if err := ctrl.Send(id, payload); err != nil {
		return fmt.Errorf("%s: %w: write failed: %s", r.Prefix(), ErrControlLost, err)
	}
	if len(payload) > 0 {
		r.stats.AddUpstream(len(payload))
	}
	return nil
}

// relayUpstream handles a readable job socket: one chunk of data is framed onto the
// control channel, or end of stream becomes a close frame followed by cleanup. Only
// control loss is returned as an error.
func (r *relay) relayUpstream(s *FramedSocket) error {
	data, err := s.ReceiveRaw(r.chunkSize)
	if err != nil {
		if err == io.EOF {
			s.DLogf("End of stream")
		} else {
			s.DLogf("Read failed: %s", err)
		}
		id := s.Name()
		r.release(s, "local end of stream")
		return r.sendControl(id, nil)
	}
	s.TLogf("Upstream %d bytes", len(data))
	s.Dump(LogLevelDebug, data)
	return r.sendControl(s.Name(), data)
}

// relayDownstream writes a frame's payload raw to job socket s. If the write fails
// the job is released and its close is propagated upstream.
func (r *relay) relayDownstream(s *FramedSocket, payload []byte) error {
	s.TLogf("Downstream %d bytes", len(payload))
	s.Dump(LogLevelDebug, payload)
	if err := s.SendRaw(payload); err != nil {
		s.DLogf("Write failed: %s", err)
		id := s.Name()
		r.release(s, "local write failure")
		return r.sendControl(id, nil)
	}
	r.stats.AddDownstream(len(payload))
	return nil
}

// receiveControl reads one frame from the control socket. A frame naming the control
// tag is never a job, and is reported as nil.
func (r *relay) receiveControl(ctrl *FramedSocket) (*gwframe.Frame, error) {
	f, err := ctrl.Receive()
	if err != nil {
		if gwframe.IsEndOfStream(err) {
			r.ELogf("Control connection closed by peer")
		} else {
			r.ELogf("Control connection failed: %s", err)
		}
		return nil, fmt.Errorf("%s: %w: %s", r.Prefix(), ErrControlLost, err)
	}
	if f.ID == gwframe.ControlName {
		r.WLogf("Ignoring %s", f)
		return nil, nil
	}
	r.TLogf("Received %s", f)
	return f, nil
}

// release is the single cleanup routine for a socket: remove it from the table and
// close it. Calling it again for the same socket has no further effect.
func (r *relay) release(s *FramedSocket, reason string) {
	removed := r.table.Remove(s)
	s.Close()
	if removed && !s.IsControl() {
		r.stats.Close()
		s.DLogf("Released (%s) %s", reason, &r.stats)
	}
}

// isLive returns true if s is still the table's entry for its name. A socket
// reported ready can be released by an earlier item of the same batch.
func (r *relay) isLive(s *FramedSocket) bool {
	return s.Name() != "" && r.table.Find(s.Name()) == s
}

// closeAll releases every socket in the table, the control socket included
func (r *relay) closeAll() {
	for _, s := range r.table.Sockets() {
		r.release(s, "shutdown")
	}
}

// closeOnDone closes every closer when ctx is done, which wakes the event loop.
// Calling the returned function stops watching ctx.
func (r *relay) closeOnDone(ctx context.Context, closers ...io.Closer) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.DLogf("Context done: %s", ctx.Err())
			r.mux.Close()
			for _, c := range closers {
				if c != nil {
					c.Close()
				}
			}
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

// runErr returns the error Run should report: ctx's error if the loop stopped
// because ctx was done, otherwise err
func runErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
