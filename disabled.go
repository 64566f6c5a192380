//go:build fastrace_disable

// Package fastrace, built with the fastrace_disable tag, replaces every
// tracing operation with a zero-cost no-op (spec component "Static
// Disable"): no collector, no rings, no goroutine, no allocation. The
// exported surface is kept identical to the enabled build so calling code
// never needs a build-tag-aware code path of its own.
package fastrace

import (
	"context"
	"time"
)

// Option is a no-op placeholder; Init ignores every Option regardless.
type Option func()

func WithReportInterval(d time.Duration) Option    { return func() {} }
func WithTailSampled(v bool) Option                { return func() {} }
func WithRingCapacity(n int) Option                { return func() {} }
func WithStaleGracePeriod(d time.Duration) Option  { return func() {} }
func WithSharedShards(n int) Option                { return func() {} }
func WithStackDepth(n int) Option                  { return func() {} }
func WithQueueCapacity(n int) Option               { return func() {} }

// Init is a no-op in the disabled build.
func Init(opts ...Option) {}

// SetReporter is a no-op in the disabled build.
func SetReporter(Reporter) {}

// Flush is a no-op in the disabled build.
func Flush() {}

// Shutdown is a no-op in the disabled build.
func Shutdown() {}

// Span is an empty, zero-cost placeholder in the disabled build; every
// method is a no-op returning s for chaining.
type Span struct{}

type SpanOption func()

func WithProperties(props ...Property) SpanOption { return func() {} }

func Root(name string, sc SpanContext, opts ...SpanOption) *Span { return &Span{} }
func RootWithContext(ctx context.Context, name string, sc SpanContext, opts ...SpanOption) *Span {
	return &Span{}
}

func EnterWithParent(ctx context.Context, name string, parent SpanContext, opts ...SpanOption) *Span {
	return &Span{}
}

func EnterWithLocalParent(ctx context.Context, name string, opts ...SpanOption) *Span {
	return &Span{}
}

func (s *Span) SetLocalParent(ctx context.Context) (context.Context, *LocalParentGuard) {
	return ctx, &LocalParentGuard{}
}

func (s *Span) AddEvent(name string, props ...Property) *Span { return s }
func (s *Span) AddProperty(key, value string) *Span           { return s }
func (s *Span) AddProperties(props ...Property) *Span         { return s }
func (s *Span) PushChildSpans(children LocalSpans) *Span      { return s }
func (s *Span) Elapsed() int64                                { return 0 }
func (s *Span) Cancel()                                       {}
func (s *Span) Finish()                                       {}

// LocalParentGuard is an empty placeholder in the disabled build.
type LocalParentGuard struct{}

func (g *LocalParentGuard) Close() {}

// LocalSpan is an empty placeholder in the disabled build.
type LocalSpan struct{}

func EnterLocalSpan(ctx context.Context, name string) (context.Context, LocalSpan) {
	return ctx, LocalSpan{}
}

func (s *LocalSpan) Finish()                                {}
func (s *LocalSpan) AddEvent(name string, props ...Property) {}
func (s *LocalSpan) AddProperty(key, value string)           {}
func (s *LocalSpan) AddProperties(props ...Property)         {}

// LocalCollector is an empty placeholder in the disabled build.
type LocalCollector struct{}

func StartLocalCollector(ctx context.Context) (context.Context, *LocalCollector) {
	return ctx, &LocalCollector{}
}

func (c *LocalCollector) Collect() LocalSpans { return LocalSpans{} }

// ToSpanRecords always returns nil in the disabled build: nothing was
// ever buffered to materialize.
func (ls LocalSpans) ToSpanRecords(parent SpanContext) []SpanRecord { return nil }
