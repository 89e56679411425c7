package buffer

import (
	"fmt"
	"sync"
)

// OverflowError reports a Write that does not fit in the write side of an
// OutputChannel. Nothing from the rejected write is stored.
type OverflowError struct {
	Capacity int
	Buffered int
	Incoming int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("output channel overflow: %d buffered + %d incoming exceeds capacity %d",
		e.Buffered, e.Incoming, e.Capacity)
}

type flipBuffer struct {
	data []byte
	n    int
}

// OutputChannel is a double-buffered byte channel. The producer appends to
// the write side, the consumer reads the read side, and Swap exchanges the
// two roles.
//
// Lock order is always writeMu then readMu.
type OutputChannel struct {
	writeMu sync.Mutex
	readMu  sync.Mutex

	write *flipBuffer
	read  *flipBuffer

	capacity int
}

// NewOutputChannel creates a channel whose two sides each hold capacity bytes.
// It panics if capacity is not positive.
func NewOutputChannel(capacity int) *OutputChannel {
	if capacity <= 0 {
		panic("buffer: output channel capacity must be positive")
	}
	return &OutputChannel{
		write:    &flipBuffer{data: make([]byte, capacity)},
		read:     &flipBuffer{data: make([]byte, capacity)},
		capacity: capacity,
	}
}

// Write appends p to the write side. If p does not fit, nothing is
// written and an *OverflowError is returned.
func (c *OutputChannel) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w := c.write
	if w.n+len(p) > c.capacity {
		return 0, &OverflowError{Capacity: c.capacity, Buffered: w.n, Incoming: len(p)}
	}
	copy(w.data[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

// Available returns how many more bytes the write side accepts.
func (c *OutputChannel) Available() int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.capacity - c.write.n
}

// Swap hands the write side to the consumer and gives the producer an
// empty buffer.
func (c *OutputChannel) Swap() {
	c.writeMu.Lock()
	c.readMu.Lock()

	c.write, c.read = c.read, c.write
	c.write.n = 0

	c.readMu.Unlock()
	c.writeMu.Unlock()
}

// Read returns the bytes delivered by the last Swap. The slice aliases the
// channel's storage and is only valid until the next Swap.
func (c *OutputChannel) Read() []byte {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return c.read.data[:c.read.n:c.read.n]
}

// Cap returns the capacity of each side.
func (c *OutputChannel) Cap() int { return c.capacity }
