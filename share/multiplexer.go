package gwshare

import (
	"sync"
	"time"
)

// ReadyKind says what kind of item a Ready refers to
type ReadyKind int

const (
	// ReadyListener means the listener has a connection (or an accept error) pending
	ReadyListener ReadyKind = iota + 1

	// ReadySocket means the socket has data buffered, or is at end of stream, or failed
	ReadySocket
)

func (k ReadyKind) String() string {
	switch k {
	case ReadyListener:
		return "listener"
	case ReadySocket:
		return "socket"
	}
	return "unknown"
}

// Ready is one readable item returned by Select
type Ready struct {
	Kind     ReadyKind
	Listener *ListeningSocket
	Socket   *FramedSocket
}

func (r Ready) String() string {
	if r.Kind == ReadyListener {
		return r.Listener.String()
	}
	return r.Socket.String()
}

// watch is the state of one watched listener or socket. Fields other than arm, stop
// and item are owned by the goroutine calling Select.
type watch struct {
	item Ready
	wait func() error
	arm  chan struct{}
	stop chan struct{}

	// waiting is true from arming until the watcher posts its event
	waiting bool

	// pending is true if the watcher posted while its item was not being selected
	pending bool
}

// Multiplexer waits for readability across a listener and a changing set of sockets.
// Each watched item has one watcher goroutine. A watcher only touches its item's
// read side between being armed by Select and posting its event; until the next
// Select, the caller owns the item and may read it, which will not block.
//
// A Multiplexer is used from a single goroutine.
type Multiplexer struct {
	Logger
	watches   map[interface{}]*watch
	events    chan *watch
	done      chan struct{}
	closeOnce sync.Once
}

// NewMultiplexer creates an empty Multiplexer
func NewMultiplexer(logger Logger) *Multiplexer {
	return &Multiplexer{
		Logger:  logger.Fork("mux"),
		watches: make(map[interface{}]*watch),
		events:  make(chan *watch),
		done:    make(chan struct{}),
	}
}

func (m *Multiplexer) runWatcher(w *watch) {
	for {
		select {
		case <-w.arm:
		case <-w.stop:
			return
		case <-m.done:
			return
		}
		// Errors, including end of stream, count as readable; the caller's read
		// will report them.
		w.wait()
		select {
		case m.events <- w:
		case <-w.stop:
			return
		case <-m.done:
			return
		}
	}
}

func (m *Multiplexer) addWatch(key interface{}, item Ready, wait func() error) *watch {
	w := &watch{
		item: item,
		wait: wait,
		arm:  make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	m.watches[key] = w
	go m.runWatcher(w)
	return w
}

// Select blocks until at least one of listener (which may be nil) and sockets is
// readable, or timeout passes, and returns the readable subset in no particular
// order. A timeout returns an empty result and no error; timeout <= 0 waits
// indefinitely. Every returned item must be handled before the next call. An item
// not passed to a later call stops being watched once its watcher is idle.
func (m *Multiplexer) Select(listener *ListeningSocket, sockets []*FramedSocket, timeout time.Duration) ([]Ready, error) {
	select {
	case <-m.done:
		return nil, ErrMultiplexerClosed
	default:
	}

	selected := make(map[interface{}]bool, len(sockets)+1)
	var keys []interface{}
	var items []Ready
	if listener != nil {
		selected[listener] = true
		keys = append(keys, listener)
		items = append(items, Ready{Kind: ReadyListener, Listener: listener})
	}
	for _, s := range sockets {
		if !selected[s] {
			selected[s] = true
			keys = append(keys, s)
			items = append(items, Ready{Kind: ReadySocket, Socket: s})
		}
	}

	// Forget idle watches for items that have left the set. A watcher still waiting
	// is kept until it posts, so that two watchers never read the same item.
	for key, w := range m.watches {
		if !selected[key] && !w.waiting {
			close(w.stop)
			delete(m.watches, key)
		}
	}

	var ready []Ready
	for i, key := range keys {
		w := m.watches[key]
		if w == nil {
			item := items[i]
			if item.Kind == ReadyListener {
				w = m.addWatch(key, item, item.Listener.prefetch)
			} else {
				w = m.addWatch(key, item, item.Socket.waitReadable)
			}
		}
		if w.pending {
			w.pending = false
			ready = append(ready, w.item)
			continue
		}
		if !w.waiting {
			w.waiting = true
			w.arm <- struct{}{}
		}
	}

	var timerC <-chan time.Time
	if len(ready) == 0 && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}
	// Events from items outside the set only mark them pending, so keep waiting
	for len(ready) == 0 {
		select {
		case w := <-m.events:
			ready = m.collect(w, selected, ready)
		case <-timerC:
			return nil, nil
		case <-m.done:
			return nil, ErrMultiplexerClosed
		}
	}

	for {
		select {
		case w := <-m.events:
			ready = m.collect(w, selected, ready)
		default:
			m.TLogf("Select: %d ready of %d", len(ready), len(keys))
			return ready, nil
		}
	}
}

func (m *Multiplexer) collect(w *watch, selected map[interface{}]bool, ready []Ready) []Ready {
	w.waiting = false
	key := interface{}(w.item.Socket)
	if w.item.Kind == ReadyListener {
		key = w.item.Listener
	}
	if !selected[key] {
		w.pending = true
		return ready
	}
	return append(ready, w.item)
}

// Close releases every watcher that is not blocked inside a read; those return when
// their item is closed. Select returns ErrMultiplexerClosed afterwards.
func (m *Multiplexer) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	return nil
}
