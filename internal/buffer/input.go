package buffer

import (
	"sync"
	"sync/atomic"
)

// InputRing is a goroutine-safe ring of bytes bound for the PTY master.
// The UI side appends translated key sequences, the I/O worker drains them.
type InputRing struct {
	mu      sync.Mutex
	ring    *Ring[byte]
	evicted atomic.Uint64
}

// NewInputRing creates an input ring with room for capacity bytes.
func NewInputRing(capacity int) *InputRing {
	return &InputRing{ring: NewRing[byte](capacity)}
}

// Put appends one byte, dropping the oldest queued byte if the ring is full.
func (q *InputRing) Put(b byte) (evicted bool) {
	q.mu.Lock()
	evicted = q.ring.Put(b)
	q.mu.Unlock()

	if evicted {
		q.evicted.Add(1)
	}
	return evicted
}

// Write queues every byte of p under a single lock acquisition, so a key
// sequence is never interleaved with bytes from another producer. It
// always accepts all of p and returns how many older bytes were evicted
// to make room.
func (q *InputRing) Write(p []byte) (n int, evicted int) {
	q.mu.Lock()
	for _, b := range p {
		if q.ring.Put(b) {
			evicted++
		}
	}
	q.mu.Unlock()

	if evicted > 0 {
		q.evicted.Add(uint64(evicted))
	}
	return len(p), evicted
}

// Get removes the oldest queued byte. It fails with ErrEmptyBuffer when
// nothing is queued.
func (q *InputRing) Get() (byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Get()
}

// IsFull reports whether the next Put will evict.
func (q *InputRing) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.IsFull()
}

// IsReady reports whether at least one byte is queued.
func (q *InputRing) IsReady() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.ring.IsEmpty()
}

// Len returns the number of queued bytes.
func (q *InputRing) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Len()
}

// Cap returns the ring capacity.
func (q *InputRing) Cap() int { return q.ring.Cap() }

// Evicted returns the total number of bytes dropped on overflow.
func (q *InputRing) Evicted() uint64 { return q.evicted.Load() }
