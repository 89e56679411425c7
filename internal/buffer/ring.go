// Package buffer holds the two buffering primitives shared between the UI
// goroutine and the PTY I/O worker: a bounded ring of input bytes and a
// double-buffered output channel.
package buffer

import (
	"github.com/pkg/errors"
)

// ErrEmptyBuffer is returned by Get when nothing is buffered.
var ErrEmptyBuffer = errors.New("buffer is empty")

// Ring is a fixed-capacity FIFO of elements of type T.
//
// Ring does no locking of its own. Callers sharing a Ring between
// goroutines must guard every call with one lock (see InputRing).
//
// When the ring is full, Put evicts the oldest unread element so that a
// producer never blocks on a slow consumer.
type Ring[T any] struct {
	data  []T
	read  int
	write int
	full  bool
}

// NewRing creates a ring holding at most capacity elements.
// It panics if capacity is not positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("buffer: ring capacity must be positive")
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Put stores v at the write index. If the ring was already full, the
// oldest unread element is dropped and evicted reports true.
func (r *Ring[T]) Put(v T) (evicted bool) {
	if r.full {
		r.read = r.advance(r.read)
		evicted = true
	}
	r.data[r.write] = v
	r.write = r.advance(r.write)
	r.full = r.write == r.read
	return evicted
}

// Get removes and returns the oldest element.
func (r *Ring[T]) Get() (T, error) {
	var zero T
	if r.IsEmpty() {
		return zero, ErrEmptyBuffer
	}
	v := r.data[r.read]
	r.data[r.read] = zero
	r.read = r.advance(r.read)
	r.full = false
	return v, nil
}

// Len returns the number of readable elements.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.data)
	}
	return (r.write - r.read + len(r.data)) % len(r.data)
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// IsFull reports whether the next Put will evict.
func (r *Ring[T]) IsFull() bool { return r.full }

// IsEmpty reports whether there is nothing to Get.
func (r *Ring[T]) IsEmpty() bool { return !r.full && r.read == r.write }

// Reset discards all buffered elements.
func (r *Ring[T]) Reset() {
	clear(r.data)
	r.read, r.write, r.full = 0, 0, false
}

func (r *Ring[T]) advance(i int) int {
	return (i + 1) % len(r.data)
}
