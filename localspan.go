//go:build !fastrace_disable

package fastrace

import (
	"context"
	"fmt"
	"runtime"

	"github.com/fast/fastrace/internal/clock"
	"github.com/fast/fastrace/internal/collector"
	"github.com/fast/fastrace/internal/log"
	"github.com/fast/fastrace/internal/model"
	"github.com/fast/fastrace/internal/spscring"
)

// spanFrame is one currently-open LocalSpan within a SpanLine, tracked so
// Finish can validate (and, if violated, self-heal) the LIFO discipline
// the original design enforced by construction.
type spanFrame struct {
	id  SpanID
	idx int
}

// SpanLine is one local-collection session's span buffer: a flat,
// append-only queue of RawSpan plus the stack of spans currently open
// within it (spec component "SpanLine"). A LocalSpanStack holds one
// SpanLine per nested local collection.
type SpanLine struct {
	spans  []model.RawSpan
	frames []spanFrame
}

func (l *SpanLine) topParent() SpanID {
	if len(l.frames) == 0 {
		return 0
	}
	return l.frames[len(l.frames)-1].id
}

// LocalSpanStack is the Go stand-in for the original design's true
// thread-local span stack (spec component "LocalSpanStack"). Goroutines
// have no stable, cheap identity to pin a stack to the way an OS thread
// id would, so instead of a thread_local! the stack is carried explicitly
// through context.Context: EnterLocalSpan and friends look it up from
// ctx, and code paths that never call StartLocalCollector or
// (*Span).SetLocalParent simply never allocate one.
//
// lines is bounded at maxDepth (spec §3 "bounded stack of SpanLine,
// default depth 4096"); once full, pushLine stops growing it and instead
// tracks further nested scopes with the overflow counter, so a matching
// popLine sequence still restores the real stack correctly without ever
// exceeding the bound.
type LocalSpanStack struct {
	lines    []*SpanLine
	overflow int
	maxDepth int
	maxQueue int
	ring     *spscring.Ring[model.Command]
	ringID   uint64
	idgen    *spanIDGenerator
}

func newLocalSpanStack() *LocalSpanStack {
	c := theCollector()
	ring, id := c.RegisterDedicatedRing()
	s := &LocalSpanStack{
		maxDepth: stackDepth(),
		maxQueue: queueCapacity(),
		ring:     ring,
		ringID:   id,
		idgen:    newSpanIDGenerator(fmt.Sprintf("fastrace-stack-%p", ring)),
	}
	// Stands in for the original "ring reclaimed when the owning thread
	// exits": a LocalSpanStack's ring is unregistered once the stack itself
	// becomes unreachable, since Go gives no other exit hook per goroutine.
	runtime.SetFinalizer(s, func(s *LocalSpanStack) {
		c.UnregisterRing(s.ringID)
	})
	return s
}

// current returns the top SpanLine, or nil if the stack is empty or its
// conceptual top is beyond maxDepth (overflow > 0).
func (s *LocalSpanStack) current() *SpanLine {
	if s.overflow > 0 || len(s.lines) == 0 {
		return nil
	}
	return s.lines[len(s.lines)-1]
}

// pushLine opens a new SpanLine, or returns nil once the stack is already
// at maxDepth (spec §4.3 overflow policy: set_local_parent/
// StartLocalCollector return a no-op rather than grow without bound).
// Every nil return must be matched by exactly one popLine call so nested
// depth still unwinds correctly once the caller's scope ends.
func (s *LocalSpanStack) pushLine() *SpanLine {
	if len(s.lines) >= s.maxDepth {
		s.overflow++
		log.Warn("fastrace: LocalSpanStack at capacity, returning a no-op scope", "max_depth", s.maxDepth)
		return nil
	}
	l := &SpanLine{}
	s.lines = append(s.lines, l)
	return l
}

func (s *LocalSpanStack) popLine() *SpanLine {
	if s.overflow > 0 {
		s.overflow--
		return nil
	}
	if len(s.lines) == 0 {
		return nil
	}
	l := s.lines[len(s.lines)-1]
	s.lines = s.lines[:len(s.lines)-1]
	return l
}

type stackCtxKey struct{}

func withStack(ctx context.Context, s *LocalSpanStack) context.Context {
	return context.WithValue(ctx, stackCtxKey{}, s)
}

func stackFromContext(ctx context.Context) (*LocalSpanStack, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(stackCtxKey{}).(*LocalSpanStack)
	return s, ok
}

func ringFor(ctx context.Context) *spscring.Ring[model.Command] {
	if s, ok := stackFromContext(ctx); ok {
		return s.ring
	}
	return theCollector().SharedRing()
}

// LocalSpan is a handle to one span buffered in a SpanLine. It is a
// value, not a pointer, to keep the common enter/finish path allocation
// free; a zero LocalSpan (returned when ctx carries no active
// LocalSpanStack or local collection) is valid and every method on it is
// a no-op.
type LocalSpan struct {
	line  *SpanLine
	frame int
	valid bool
}

// EnterLocalSpan opens a new LocalSpan named name, nested under whatever
// LocalSpan or LocalParentGuard is currently open on ctx's LocalSpanStack.
// If ctx carries no active local collection (no StartLocalCollector or
// (*Span).SetLocalParent call is in scope), it returns an invalid
// LocalSpan whose methods are all no-ops — matching the original design's
// "no thread-local stack entered" behavior.
func EnterLocalSpan(ctx context.Context, name string) (context.Context, LocalSpan) {
	stack, ok := stackFromContext(ctx)
	if !ok {
		return ctx, LocalSpan{}
	}
	line := stack.current()
	if line == nil {
		return ctx, LocalSpan{}
	}
	if len(line.spans) >= stack.maxQueue {
		log.Warn("fastrace: SpanQueue at capacity, EnterLocalSpan returns a no-op", "max_queue", stack.maxQueue)
		return ctx, LocalSpan{}
	}
	id := stack.idgen.Next()
	idx := len(line.spans)
	line.spans = append(line.spans, model.RawSpan{
		ID:       id,
		ParentID: line.topParent(),
		Begin:    clock.Now(),
		Kind:     model.KindSpan,
		Name:     name,
	})
	frame := len(line.frames)
	line.frames = append(line.frames, spanFrame{id: id, idx: idx})
	return ctx, LocalSpan{line: line, frame: frame, valid: true}
}

// Finish closes s, recording its end time. Spans must close in LIFO
// order; if a caller finishes one out of order (an ancestor closed before
// a descendant), Finish force-closes every still-open descendant rather
// than leaving the SpanLine permanently desynchronized, and logs a
// warning (spec: programmer errors never panic or corrupt collector
// state).
func (s *LocalSpan) Finish() {
	if s == nil || !s.valid {
		return
	}
	s.valid = false
	line := s.line
	top := len(line.frames) - 1
	if top < s.frame {
		return // already force-closed by a descendant's out-of-order Finish
	}
	now := clock.Now()
	if top != s.frame {
		log.Warn("fastrace: LocalSpan finished out of order, force-closing open descendants", "depth", top-s.frame)
	}
	for i := top; i >= s.frame; i-- {
		line.spans[line.frames[i].idx].End = now
	}
	line.frames = line.frames[:s.frame]
}

// AddEvent attaches a zero-duration, named event to s.
func (s *LocalSpan) AddEvent(name string, props ...Property) {
	if s == nil || !s.valid {
		return
	}
	now := clock.Now()
	s.line.spans = append(s.line.spans, model.RawSpan{
		ParentID: s.line.frames[s.frame].id,
		Begin:    now,
		End:      now,
		Kind:     model.KindEvent,
		Name:     name,
		Props:    Properties(props),
	})
}

// AddProperty appends one key/value property to s.
func (s *LocalSpan) AddProperty(key, value string) {
	if s == nil || !s.valid {
		return
	}
	idx := s.line.frames[s.frame].idx
	s.line.spans[idx].Props = s.line.spans[idx].Props.Add(key, value)
}

// AddProperties appends multiple properties to s at once.
func (s *LocalSpan) AddProperties(props ...Property) {
	if s == nil || !s.valid {
		return
	}
	idx := s.line.frames[s.frame].idx
	s.line.spans[idx].Props = append(s.line.spans[idx].Props, props...)
}

// LocalCollector buffers LocalSpans independent of any CollectToken or the
// global collector (spec component "LocalCollector"): a caller starts
// one, runs code that opens LocalSpans under it, then calls Collect to
// retrieve the buffered spans for its own use (typically handing them to
// a Span via PushChildSpans, or converting them directly with
// LocalSpans.ToSpanRecords).
type LocalCollector struct {
	stack *LocalSpanStack
}

// StartLocalCollector opens a new, isolated SpanLine on ctx's
// LocalSpanStack, creating the stack if ctx does not already carry one.
// If the stack is already at its configured depth bound, pushLine tracks
// this scope with the overflow counter instead, and the returned
// LocalCollector's Collect call yields an empty LocalSpans (spec §4.3
// overflow policy) while still correctly unwinding the counter.
func StartLocalCollector(ctx context.Context) (context.Context, *LocalCollector) {
	if ctx == nil {
		ctx = context.Background()
	}
	stack, ok := stackFromContext(ctx)
	if !ok {
		stack = newLocalSpanStack()
		ctx = withStack(ctx, stack)
	}
	stack.pushLine()
	return ctx, &LocalCollector{stack: stack}
}

// Collect closes the collector's SpanLine and returns everything buffered
// in it, force-closing any spans a caller forgot to Finish.
func (c *LocalCollector) Collect() LocalSpans {
	line := c.stack.popLine()
	if line == nil {
		return LocalSpans{}
	}
	now := clock.Now()
	for _, f := range line.frames {
		if line.spans[f.idx].End == 0 {
			line.spans[f.idx].End = now
		}
	}
	return LocalSpans{Spans: line.spans}
}

// ToSpanRecords materializes ls into reportable SpanRecords as if every
// span in it were the child of parent — ordinary parent resolution
// within ls still applies, so nested LocalSpans resolve against each
// other and only spans with no in-batch parent attach to parent directly.
func (ls LocalSpans) ToSpanRecords(parent SpanContext) []SpanRecord {
	return collector.MaterializeBatch(parent.TraceID, parent.SpanID, ls)
}
