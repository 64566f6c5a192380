// Package fastracetest provides an in-memory Reporter test double, the
// fastrace analogue of the teacher's ddtrace/mocktracer package: tests
// install Reporter in place of a real network exporter and assert
// against the SpanRecords it captured.
package fastracetest

import (
	"sort"
	"sync"

	"github.com/fast/fastrace"
)

// Reporter collects every SpanRecord handed to it by the collector,
// safe for concurrent Report calls (the collector only ever calls from
// its own single goroutine, but tests sometimes install it before
// spinning up concurrent producers).
type Reporter struct {
	mu       sync.Mutex
	records  []fastrace.SpanRecord
	shutdown bool
}

// NewReporter constructs an empty Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Report implements fastrace.Reporter.
func (r *Reporter) Report(records []fastrace.SpanRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

// Shutdown implements fastrace.Reporter.
func (r *Reporter) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
}

// ShutdownCalled reports whether Shutdown has been invoked.
func (r *Reporter) ShutdownCalled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// Records returns a snapshot of every SpanRecord collected so far, sorted
// by (TraceID, SpanID, BeginUnixNanos) for deterministic assertions.
func (r *Reporter) Records() []fastrace.SpanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]fastrace.SpanRecord, len(r.records))
	copy(out, r.records)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TraceID != b.TraceID {
			return a.TraceID.Hi < b.TraceID.Hi || (a.TraceID.Hi == b.TraceID.Hi && a.TraceID.Lo < b.TraceID.Lo)
		}
		if a.SpanID != b.SpanID {
			return a.SpanID < b.SpanID
		}
		return a.BeginUnixNanos < b.BeginUnixNanos
	})
	return out
}

// FindByName returns every collected record with the given span name.
func (r *Reporter) FindByName(name string) []fastrace.SpanRecord {
	var out []fastrace.SpanRecord
	for _, rec := range r.Records() {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// Reset clears every collected record, for reuse between subtests.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.shutdown = false
}
