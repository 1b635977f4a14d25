package gwshare

import (
	"context"
	"fmt"
	"time"

	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

// NearBroker runs beside the private backend service. It keeps one control
// connection to the far broker, dials the backend the first time a logical
// connection id is seen, and relays bytes between the two.
type NearBroker struct {
	relay
	config *NearConfig
}

// NewNearBroker creates a NearBroker. Zero-valued configuration fields get defaults.
func NewNearBroker(logger Logger, config *NearConfig) (*NearBroker, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %s", logger.Prefix(), err)
	}
	b := &NearBroker{
		config: config,
	}
	b.initRelay(logger, config.ChunkSize)
	return b, nil
}

// Run connects to the far broker, retrying per the backoff policy, then relays until
// the control connection is lost or ctx is done. It returns ctx.Err() after
// cancellation and an error wrapping ErrControlLost after control loss. Every socket
// is closed before Run returns.
func (b *NearBroker) Run(ctx context.Context) error {
	defer b.setState(StateTerminated)
	defer b.mux.Close()

	b.setState(StateConnectingControl)
	ctrl, err := b.connectControl(ctx)
	if err != nil {
		return err
	}
	ctrl.SetName(gwframe.ControlName)
	ctrl.SetFrameReadTimeout(b.config.FrameReadTimeout)
	if err := b.table.Add(ctrl); err != nil {
		ctrl.Close()
		return err
	}

	stop := b.closeOnDone(ctx, ctrl)
	defer stop()
	defer b.closeAll()

	b.setState(StateRunning)
	b.ILogf("Connected to far broker at %s", ctrl.RemoteAddr())

	for {
		ready, err := b.mux.Select(nil, b.table.Sockets(), b.config.PollInterval)
		if err != nil {
			return runErr(ctx, err)
		}
		for _, r := range ready {
			s := r.Socket
			if !b.isLive(s) {
				continue
			}
			if s.IsControl() {
				err = b.handleControl(ctx, s)
			} else {
				err = b.relayUpstream(s)
			}
			if err != nil {
				return runErr(ctx, err)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// connectControl dials the far broker until it succeeds, the backoff policy's
// attempt limit is reached, or ctx is done
func (b *NearBroker) connectControl(ctx context.Context) (*FramedSocket, error) {
	bo := b.config.Backoff.NewBackoff()
	maxAttempt := b.config.Backoff.MaxAttempts
	for {
		ctrl, err := DialControl(ctx, b.Logger, b.config.Transport, b.config.ControlAddress, b.config.ControlPort,
			b.config.DialTimeout)
		if err == nil {
			return ctrl, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		attempt := int(bo.Attempt()) + 1
		msg := fmt.Sprintf("Control connection error: %s (Attempt: %d", err, attempt)
		if maxAttempt > 0 {
			msg += fmt.Sprintf("/%d", maxAttempt)
		}
		msg += ")"
		b.WLogf("%s", msg)
		if maxAttempt > 0 && attempt >= maxAttempt {
			return nil, fmt.Errorf("%s: giving up after %d attempts: %w", b.Prefix(), attempt, err)
		}

		d := bo.Duration()
		b.ILogf("Retrying in %s...", d)
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}

// handleControl processes one frame from the far broker
func (b *NearBroker) handleControl(ctx context.Context, ctrl *FramedSocket) error {
	f, err := b.receiveControl(ctrl)
	if err != nil || f == nil {
		return err
	}

	s := b.table.Find(f.ID)
	if f.IsClose() {
		if s == nil {
			b.DLogf("Close for unknown id %s ignored", f.ID)
			return nil
		}
		b.release(s, "closed by peer")
		return nil
	}

	if s == nil {
		s, err = b.dialBackend(ctx, f.ID)
		if err != nil {
			b.WLogf("Dropping %s: %s", f, err)
			return nil
		}
	}
	return b.relayDownstream(s, f.Payload)
}

// dialBackend opens the backend connection for a newly seen logical connection id
func (b *NearBroker) dialBackend(ctx context.Context, id string) (*FramedSocket, error) {
	s, err := Connect(ctx, b.Logger, b.config.BackendAddress, b.config.JobPort, b.config.DialTimeout)
	if err != nil {
		return nil, err
	}
	if err := b.addJob(s, id); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
