// Package spscring implements the bounded, lock-free ring buffer used to
// hand CollectCommands from producer goroutines to the global collector
// (spec component "SPSC Ring").
//
// The original design assumes one ring per OS thread, exclusively owned
// by that thread's producer code — a true single-producer/single-consumer
// channel. Go gives goroutines no cheap, stable identity to pin a ring to
// the way an OS thread id would, so a goroutine that creates a
// LocalSpanStack keeps one ring for its own (genuinely single-producer)
// batch submissions, while ad-hoc cross-thread Span commands that have no
// bound LocalSpanStack share a small pool of rings. To stay correct under
// that sharing, the ring below is Dmitry Vyukov's bounded
// multi-producer/single-consumer queue: when exactly one goroutine ever
// pushes to a given ring (the common, hot-path case) its CAS never
// contends and it behaves exactly like a dedicated SPSC ring; when a ring
// is shared it remains correct, just briefly contended. Every downstream
// invariant — round-robin draining, silent drop on overflow — holds
// either way.
package spscring

import "go.uber.org/atomic"

// MinCapacity is the smallest ring size callers may request; rounded up
// to the next power of two internally (spec §9: ring size is
// implementation-defined, >= 1024).
const MinCapacity = 1024

type cell[T any] struct {
	seq atomic.Uint64
	val T
}

// Ring is a bounded, wait-free-on-the-uncontended-path queue of T.
// Construct with New; the zero value is not usable.
type Ring[T any] struct {
	buf        []cell[T]
	mask       uint64
	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
}

// New creates a Ring sized to the next power of two >= capacity (and >=
// MinCapacity).
func New[T any](capacity int) *Ring[T] {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	size := nextPowerOfTwo(capacity)
	r := &Ring[T]{
		buf:  make([]cell[T], size),
		mask: uint64(size - 1),
	}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Push enqueues v and reports whether it succeeded. On a full ring it
// returns false without blocking or allocating; the caller's policy is to
// silently drop the command (spec §4.2: "preserve program throughput over
// completeness").
func (r *Ring[T]) Push(v T) bool {
	pos := r.enqueuePos.Load()
	for {
		c := &r.buf[pos&r.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false // ring full
		default:
			pos = r.enqueuePos.Load()
		}
	}
}

// Pop dequeues the oldest value, if any. Only the collector's single
// consumer goroutine may call this.
func (r *Ring[T]) Pop() (T, bool) {
	pos := r.dequeuePos.Load()
	for {
		c := &r.buf[pos&r.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if r.dequeuePos.CompareAndSwap(pos, pos+1) {
				v := c.val
				var zero T
				c.val = zero // drop the reference so the GC can reclaim it
				c.seq.Store(pos + r.mask + 1)
				return v, true
			}
		case diff < 0:
			var zero T
			return zero, false // ring empty
		default:
			pos = r.dequeuePos.Load()
		}
	}
}

// Drain pops every currently available value into dst and returns the
// extended slice. Used by the collector's per-tick round-robin drain.
func (r *Ring[T]) Drain(dst []T) []T {
	for {
		v, ok := r.Pop()
		if !ok {
			return dst
		}
		dst = append(dst, v)
	}
}
