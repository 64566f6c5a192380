package fastrace

import (
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// RandomTraceID returns a process-wide-random TraceID. It is reseeded
// from github.com/google/uuid, the pack's idiomatic source of random
// 128-bit values, rather than hand-rolling a PRNG.
func RandomTraceID() TraceID {
	u := uuid.New()
	return TraceID{
		Hi: binary.BigEndian.Uint64(u[0:8]),
		Lo: binary.BigEndian.Uint64(u[8:16]),
	}
}

// spanIDGenerator is a thread/goroutine-confined linear counter, seeded
// once from process randomness XORed with a hash of its owner's identity
// string. It must never be shared across concurrently running goroutines
// without a lock: each LocalSpanStack owns exactly one, and the shared
// ad-hoc generator below is mutex-guarded.
type spanIDGenerator struct {
	next uint64
}

var idSeedOnce sync.Once
var idSeedBase uint64

func seedBase() uint64 {
	idSeedOnce.Do(func() {
		idSeedBase = rand.Uint64() //nolint:gosec // uniqueness, not secrecy, is required here
	})
	return idSeedBase
}

// newSpanIDGenerator creates a generator seeded from process randomness
// XORed with an xxhash digest of a caller-supplied identity string (a
// LocalSpanStack passes a string built from its ring's address; the
// ad-hoc generator passes a fixed label), the stand-in for the spec's
// "random seed XORed with thread identity."
func newSpanIDGenerator(identity string) *spanIDGenerator {
	h := xxhash.Sum64String(identity)
	return &spanIDGenerator{next: seedBase() ^ h}
}

// Next returns the next SpanID from the generator. Nonzero is guaranteed
// by skipping zero on the rare occasion the counter lands on it.
func (g *spanIDGenerator) Next() SpanID {
	g.next++
	if g.next == 0 {
		g.next++
	}
	return SpanID(g.next)
}

// adhocGen backs newAdhocSpanID: cross-thread Span values have no private
// LocalSpanStack generator of their own (they are not stack-confined to
// one goroutine), so they draw from one shared, mutex-guarded generator
// instead.
var (
	adhocMu  sync.Mutex
	adhocGen = newSpanIDGenerator("fastrace-adhoc-span")
)

func newAdhocSpanID() SpanID {
	adhocMu.Lock()
	defer adhocMu.Unlock()
	return adhocGen.Next()
}
