package gwshare

import (
	"fmt"

	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

// SocketTable holds a broker's live sockets keyed by name: the control socket under
// "ctrl" and each job socket under its logical connection id. Sockets iterates in
// insertion order, which keeps the control socket first.
type SocketTable struct {
	byName map[string]*FramedSocket
	order  []*FramedSocket
}

// NewSocketTable creates an empty SocketTable
func NewSocketTable() *SocketTable {
	return &SocketTable{
		byName: make(map[string]*FramedSocket),
	}
}

// Add inserts a named socket. It fails with ErrDuplicateID if the name is live.
func (t *SocketTable) Add(s *FramedSocket) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("cannot add unnamed socket %s", s)
	}
	if _, ok := t.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, name)
	}
	t.byName[name] = s
	t.order = append(t.order, s)
	return nil
}

// Find returns the socket with the given name, or nil
func (t *SocketTable) Find(name string) *FramedSocket {
	return t.byName[name]
}

// Contains returns true if name is live. It has the signature the id minter expects.
func (t *SocketTable) Contains(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Control returns the control socket, or nil
func (t *SocketTable) Control() *FramedSocket {
	return t.byName[gwframe.ControlName]
}

// Remove drops s from the table. It returns false if s was not present, so a second
// Remove of the same socket is harmless.
func (t *SocketTable) Remove(s *FramedSocket) bool {
	if cur, ok := t.byName[s.Name()]; !ok || cur != s {
		return false
	}
	delete(t.byName, s.Name())
	for i, x := range t.order {
		if x == s {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Sockets returns a snapshot of the live sockets, control socket first
func (t *SocketTable) Sockets() []*FramedSocket {
	return append([]*FramedSocket(nil), t.order...)
}

// Len returns the number of live sockets, including the control socket
func (t *SocketTable) Len() int {
	return len(t.order)
}
