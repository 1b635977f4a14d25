package gwshare

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

// FarBroker runs on the internet-facing host. It accepts exactly one control
// connection from the near broker, then accepts public clients on the job port,
// gives each a fresh logical connection id, and multiplexes their bytes over the
// control connection.
type FarBroker struct {
	relay
	config *FarConfig
	minter IDMinter

	addrLock     sync.Mutex
	controlAddr  net.Addr
	jobAddr      net.Addr
	controlReady chan struct{}
	jobReady     chan struct{}
	terminated   chan struct{}
}

// NewFarBroker creates a FarBroker. Zero-valued configuration fields get defaults.
func NewFarBroker(logger Logger, config *FarConfig) (*FarBroker, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %s", logger.Prefix(), err)
	}
	b := &FarBroker{
		config:       config,
		controlReady: make(chan struct{}),
		jobReady:     make(chan struct{}),
		terminated:   make(chan struct{}),
	}
	b.initRelay(logger, config.ChunkSize)
	return b, nil
}

func (b *FarBroker) waitAddr(ctx context.Context, ready chan struct{}, addr *net.Addr) (net.Addr, error) {
	select {
	case <-ready:
	case <-b.terminated:
		select {
		case <-ready:
		default:
			return nil, b.Errorf("Broker terminated before listening")
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	b.addrLock.Lock()
	defer b.addrLock.Unlock()
	return *addr, nil
}

// ControlAddr waits until the control listener is bound and returns its address
func (b *FarBroker) ControlAddr(ctx context.Context) (net.Addr, error) {
	return b.waitAddr(ctx, b.controlReady, &b.controlAddr)
}

// JobAddr waits until the job listener is bound and returns its address. The job
// listener is opened only after the control connection is accepted.
func (b *FarBroker) JobAddr(ctx context.Context) (net.Addr, error) {
	return b.waitAddr(ctx, b.jobReady, &b.jobAddr)
}

func (b *FarBroker) publishAddr(ready chan struct{}, addr *net.Addr, value net.Addr) {
	b.addrLock.Lock()
	*addr = value
	b.addrLock.Unlock()
	close(ready)
}

// Run accepts the control connection, opens the job listener, and relays until the
// control connection is lost or ctx is done. It returns ctx.Err() after
// cancellation and an error wrapping ErrControlLost after control loss. Every socket
// and listener is closed before Run returns.
func (b *FarBroker) Run(ctx context.Context) error {
	defer close(b.terminated)
	defer b.setState(StateTerminated)
	defer b.mux.Close()

	b.setState(StateAwaitingControl)
	ctrl, err := b.awaitControl(ctx)
	if err != nil {
		return runErr(ctx, err)
	}
	defer b.closeAll()

	jobListener, err := OpenListeningSocket(ctx, b.Logger.Fork("job"), b.config.JobBind, b.config.JobPort)
	if err != nil {
		return err
	}
	defer jobListener.Close()
	b.publishAddr(b.jobReady, &b.jobAddr, jobListener.Addr())

	stop := b.closeOnDone(ctx, ctrl, jobListener)
	defer stop()

	b.setState(StateRunning)
	b.ILogf("Accepting jobs on %s", jobListener.Addr())

	for {
		ready, err := b.mux.Select(jobListener, b.table.Sockets(), b.config.PollInterval)
		if err != nil {
			return runErr(ctx, err)
		}
		for _, r := range ready {
			if r.Kind == ReadyListener {
				err = b.acceptJob(r.Listener)
			} else if !b.isLive(r.Socket) {
				continue
			} else if r.Socket.IsControl() {
				err = b.handleControl(r.Socket)
			} else {
				err = b.relayUpstream(r.Socket)
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

// awaitControl listens for the near broker, accepts exactly one connection, and
// closes the control listener
func (b *FarBroker) awaitControl(ctx context.Context) (*FramedSocket, error) {
	l, err := ListenControl(ctx, b.Logger.Fork("control"), b.config.Transport, b.config.ControlBind, b.config.ControlPort)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	b.publishAddr(b.controlReady, &b.controlAddr, l.Addr())
	b.ILogf("Waiting for control connection on %s", l.Addr())

	stop := b.closeOnDone(ctx, l)
	defer stop()

	for {
		ready, err := b.mux.Select(l, nil, b.config.PollInterval)
		if err != nil {
			return nil, err
		}
		if len(ready) == 0 {
			continue
		}
		ctrl, err := l.Accept()
		if err != nil {
			return nil, err
		}
		ctrl.SetName(gwframe.ControlName)
		ctrl.SetFrameReadTimeout(b.config.FrameReadTimeout)
		if err := b.table.Add(ctrl); err != nil {
			ctrl.Close()
			return nil, err
		}
		b.ILogf("Control connection from %s", ctrl.RemoteAddr())
		return ctrl, nil
	}
}

// acceptJob accepts one public client and gives it the next free id. Running out of
// ids refuses the client without affecting anything else.
func (b *FarBroker) acceptJob(l *ListeningSocket) error {
	s, err := l.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		b.WLogf("%s", err)
		return nil
	}
	id, err := b.minter.Next(b.table.Contains)
	if err != nil {
		b.WLogf("Refusing %s: %s", s, err)
		s.Close()
		return nil
	}
	if err := b.addJob(s, id); err != nil {
		b.WLogf("Refusing %s: %s", s, err)
		s.Close()
	}
	return nil
}

// handleControl processes one frame from the near broker. Frames for ids that are
// not live are dropped.
func (b *FarBroker) handleControl(ctrl *FramedSocket) error {
	f, err := b.receiveControl(ctrl)
	if err != nil || f == nil {
		return err
	}
	s := b.table.Find(f.ID)
	if s == nil {
		b.DLogf("Dropping %s for unknown id", f)
		return nil
	}
	if f.IsClose() {
		b.release(s, "closed by peer")
		return nil
	}
	return b.relayDownstream(s, f.Payload)
}
