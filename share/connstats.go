package gwshare

import (
	"fmt"
	"sync/atomic"

	"github.com/jpillora/sizestr"
)

// ConnStats keep track of both currently open and total job connection counts for a
// broker, and the bytes relayed in each direction. It is safe to read from any
// goroutine while the event loop updates it.
type ConnStats struct {
	count      int32
	open       int32
	upstream   int64
	downstream int64
}

// New adds one to the total connection count in a ConnStats
func (c *ConnStats) New() int32 {
	return atomic.AddInt32(&c.count, 1)
}

// Open adds one to the current open connection count in a ConnStats
func (c *ConnStats) Open() {
	atomic.AddInt32(&c.open, 1)
}

// Close subtracts one from the current open connection count in a ConnStats
func (c *ConnStats) Close() {
	atomic.AddInt32(&c.open, -1)
}

// AddUpstream counts payload bytes framed onto the control channel
func (c *ConnStats) AddUpstream(n int) {
	atomic.AddInt64(&c.upstream, int64(n))
}

// AddDownstream counts payload bytes delivered from the control channel to job sockets
func (c *ConnStats) AddDownstream(n int) {
	atomic.AddInt64(&c.downstream, int64(n))
}

// NumOpen returns the current open connection count
func (c *ConnStats) NumOpen() int32 {
	return atomic.LoadInt32(&c.open)
}

// NumTotal returns the total connection count
func (c *ConnStats) NumTotal() int32 {
	return atomic.LoadInt32(&c.count)
}

// Upstream returns the payload bytes framed onto the control channel
func (c *ConnStats) Upstream() int64 {
	return atomic.LoadInt64(&c.upstream)
}

// Downstream returns the payload bytes delivered to job sockets
func (c *ConnStats) Downstream() int64 {
	return atomic.LoadInt64(&c.downstream)
}

func (c *ConnStats) String() string {
	return fmt.Sprintf("[%d/%d]", c.NumOpen(), c.NumTotal())
}

// Summary describes connection counts and relayed volume for status output
func (c *ConnStats) Summary() string {
	return fmt.Sprintf("%s connections open/total, %s upstream, %s downstream",
		c, sizestr.ToString(c.Upstream()), sizestr.ToString(c.Downstream()))
}
