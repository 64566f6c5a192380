//go:build !fastrace_disable

package fastrace

import "time"

// Option configures the process-wide collector at Init time (spec §6).
// Options are applied once, in order, before the collector's first use;
// calls after Init (or after the collector starts lazily) have no effect.
type Option func(*settings)

type settings struct {
	reportInterval   time.Duration
	tailSampled      bool
	ringCapacity     int
	staleGracePeriod time.Duration
	sharedShards     int
	stackDepth       int
	queueCapacity    int
}

// WithReportInterval sets how often the collector drains rings and
// dispatches to the reporter. Default 10ms.
func WithReportInterval(d time.Duration) Option {
	return func(s *settings) { s.reportInterval = d }
}

// WithTailSampled selects the tail-sampling policy: when true, a trace's
// spans are withheld until CommitCollect and dropped entirely on
// DropCollect; when false, the collector may (but need not) report
// spans before the trace's commit decision is known. This implementation
// materializes on commit either way (spec §4.7 permits treating both
// modes identically at the materialization step); the flag is carried
// for callers and future reporters that branch on it.
func WithTailSampled(v bool) Option {
	return func(s *settings) { s.tailSampled = v }
}

// WithRingCapacity sets the per-producer SPSC ring capacity, rounded up
// to a power of two no smaller than spscring.MinCapacity.
func WithRingCapacity(n int) Option {
	return func(s *settings) { s.ringCapacity = n }
}

// WithStaleGracePeriod bounds how long the collector retains bookkeeping
// for unmatched SubmitSpans (arrived before StartCollect or after
// CommitCollect/DropCollect) before giving up on reattaching them.
func WithStaleGracePeriod(d time.Duration) Option {
	return func(s *settings) { s.staleGracePeriod = d }
}

// WithSharedShards sets the number of pooled rings used by cross-thread
// Span operations that have no LocalSpanStack ring of their own.
func WithSharedShards(n int) Option {
	return func(s *settings) { s.sharedShards = n }
}

// WithStackDepth bounds how many nested local-parent scopes
// (StartLocalCollector or (*Span).SetLocalParent) a single LocalSpanStack
// may have open at once (spec §3 "bounded stack of SpanLine, default depth
// 4096"). Once the bound is reached, the next nested call returns a no-op
// guard/collector instead of growing further (spec §4.3 overflow policy).
// Default 4096.
func WithStackDepth(n int) Option {
	return func(s *settings) { s.stackDepth = n }
}

// WithQueueCapacity bounds how many RawSpan entries a single SpanLine may
// buffer (spec §3 "bounded vector of RawSpan, default 10240... silently
// drops spans on overflow"). Once the bound is reached, EnterLocalSpan
// returns a no-op handle instead of growing further. Default 10240.
func WithQueueCapacity(n int) Option {
	return func(s *settings) { s.queueCapacity = n }
}
