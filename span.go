//go:build !fastrace_disable

package fastrace

import (
	"context"
	"sync"

	"github.com/fast/fastrace/internal/clock"
	"github.com/fast/fastrace/internal/model"
)

// SpanOption configures a Span at creation time.
type SpanOption func(*spanOptions)

type spanOptions struct {
	props Properties
}

// WithProperties attaches initial properties to a newly created Span.
func WithProperties(props ...Property) SpanOption {
	return func(o *spanOptions) { o.props = append(o.props, props...) }
}

func applySpanOptions(opts []SpanOption) spanOptions {
	var o spanOptions
	for _, f := range opts {
		f(&o)
	}
	return o
}

// Span is a cross-goroutine span handle (spec component "Span"): unlike
// LocalSpan it carries no stack discipline and can be created, mutated,
// and finished from different goroutines over its lifetime. It owns
// exactly one RawSpan (plus any events/properties-only entries added
// directly to it) and the CollectToken naming every trace it fans into,
// and submits itself to the global collector at most once, on Finish;
// Cancel discards it without submitting its data.
type Span struct {
	mu    sync.Mutex
	raw   model.RawSpan
	extra []model.RawSpan
	token CollectToken
	done  bool
}

// Root starts a span that is the root of a brand-new collector assembly,
// seeded from sc (spec §4.5 "Span::root(name, ctx)"). If sc.Sampled is
// false, this returns a noop Span that allocates no CollectID, touches no
// collector state, and produces no command traffic at all (spec §3
// invariant, §8 property 5, scenario S2) — not merely one that drops its
// data later. If sc carries no TraceID (the zero SpanContext, e.g. the
// caller has no remote context to continue) a fresh random trace is
// started instead of propagating a zero id.
func Root(name string, sc SpanContext, opts ...SpanOption) *Span {
	return newRootSpan(nil, name, sc, opts...)
}

// RootWithContext behaves like Root but submits through ctx's
// LocalSpanStack ring when one is present, instead of the shared pool.
func RootWithContext(ctx context.Context, name string, sc SpanContext, opts ...SpanOption) *Span {
	return newRootSpan(ctx, name, sc, opts...)
}

// noopSpan returns a Span holding no state: done is already true so every
// other method on it (AddEvent, Finish, Cancel, SetLocalParent, ...) is an
// immediate no-op, and because it was never given a CollectToken, nothing
// was ever pushed to the collector to produce it.
func noopSpan() *Span {
	return &Span{done: true}
}

func newRootSpan(ctx context.Context, name string, sc SpanContext, opts ...SpanOption) *Span {
	if !sc.Sampled {
		return noopSpan()
	}
	o := applySpanOptions(opts)
	c := theCollector()
	cid := c.NextCollectID()
	traceID := sc.TraceID
	if traceID.IsZero() {
		traceID = RandomTraceID()
	}
	now := clock.Now()
	id := newAdhocSpanID()
	s := &Span{
		raw:   model.RawSpan{ID: id, ParentID: sc.SpanID, Begin: now, Name: name, Kind: model.KindSpan, Props: o.props},
		token: CollectToken{{CollectID: cid, ParentInTrace: sc.SpanID, IsRoot: true, IsSampled: true}},
	}
	c.Push(ringFor(ctx), model.Command{
		Kind:      model.CmdStartCollect,
		CollectID: cid,
		TraceID:   traceID,
		RootCtx:   model.SpanContext{TraceID: traceID, SpanID: sc.SpanID, Sampled: true},
	})
	return s
}

// EnterWithParent starts a span that continues parent's trace: parent
// typically arrived over the wire (spec §4.1 W3C traceparent), so this
// call site has a SpanContext but no live CollectToken to attach to. It
// allocates its own CollectID for the subtree rooted here, recorded
// against parent.TraceID, and anchors it to parent.SpanID for the
// collector's parent resolution. If parent.Sampled is false this returns
// a noop Span exactly like an unsampled Root (spec §3/§4.5/§8 property 5).
// If parent is the zero SpanContext (no remote context at all) this
// degrades to a freshly sampled Root instead.
func EnterWithParent(ctx context.Context, name string, parent SpanContext, opts ...SpanOption) *Span {
	if parent.TraceID.IsZero() {
		return newRootSpan(ctx, name, RandomSpanContext(true), opts...)
	}
	if !parent.Sampled {
		return noopSpan()
	}
	o := applySpanOptions(opts)
	c := theCollector()
	cid := c.NextCollectID()
	now := clock.Now()
	id := newAdhocSpanID()
	s := &Span{
		raw:   model.RawSpan{ID: id, Begin: now, Name: name, Kind: model.KindSpan, Props: o.props},
		token: CollectToken{{CollectID: cid, ParentInTrace: parent.SpanID, IsRoot: true, IsSampled: parent.Sampled}},
	}
	c.Push(ringFor(ctx), model.Command{
		Kind:      model.CmdStartCollect,
		CollectID: cid,
		TraceID:   parent.TraceID,
		RootCtx:   parent,
	})
	return s
}

type ambientKey struct{}

// ambientParent is what (*Span).SetLocalParent stashes on a context: the
// information a later EnterWithLocalParent or LocalParentGuard.Close
// needs to attach new data under the same already-open CollectToken
// without allocating a new CollectID.
type ambientParent struct {
	selfID SpanID
	token  CollectToken
}

func withAmbientParent(ctx context.Context, a *ambientParent) context.Context {
	return context.WithValue(ctx, ambientKey{}, a)
}

func ambientFromContext(ctx context.Context) (*ambientParent, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(ambientKey{}).(*ambientParent)
	return a, ok
}

// EnterWithLocalParent starts a child span under whatever Span last called
// SetLocalParent on ctx. It reuses the ambient span's existing
// CollectToken entries (so it joins the same trace assembly, or
// assemblies, the ambient span is already part of) instead of allocating
// a new CollectID. With no ambient parent in ctx, this degrades to Root.
func EnterWithLocalParent(ctx context.Context, name string, opts ...SpanOption) *Span {
	amb, ok := ambientFromContext(ctx)
	if !ok {
		return newRootSpan(ctx, name, RandomSpanContext(true), opts...)
	}
	o := applySpanOptions(opts)
	now := clock.Now()
	id := newAdhocSpanID()
	token := make(CollectToken, len(amb.token))
	for i, e := range amb.token {
		token[i] = model.TokenEntry{CollectID: e.CollectID, ParentInTrace: amb.selfID, IsRoot: false, IsSampled: e.IsSampled}
	}
	return &Span{
		raw:   model.RawSpan{ID: id, Begin: now, Name: name, Kind: model.KindSpan, Props: o.props},
		token: token,
	}
}

// SetLocalParent marks s as the ambient parent for ctx and opens a fresh
// SpanLine for LocalSpan buffering beneath it, returning the derived
// context and a guard whose Close submits everything buffered in that
// line under s's own CollectToken (spec component "LocalParentGuard"). If
// s is a noop Span (unsampled root/parent, or already finished/canceled),
// this returns ctx unchanged and an already-closed guard, touching no
// LocalSpanStack or collector state at all.
func (s *Span) SetLocalParent(ctx context.Context) (context.Context, *LocalParentGuard) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	done := s.done
	amb := &ambientParent{selfID: s.raw.ID, token: s.token.Clone()}
	s.mu.Unlock()
	if done {
		return ctx, &LocalParentGuard{closed: true}
	}

	ctx = withAmbientParent(ctx, amb)
	stack, ok := stackFromContext(ctx)
	if !ok {
		stack = newLocalSpanStack()
		ctx = withStack(ctx, stack)
	}
	stack.pushLine()
	return ctx, &LocalParentGuard{stack: stack, amb: amb}
}

// LocalParentGuard drains the SpanLine opened by (*Span).SetLocalParent
// back into the global collector when the scope it guards ends.
type LocalParentGuard struct {
	stack  *LocalSpanStack
	amb    *ambientParent
	closed bool
}

// Close submits every span buffered since SetLocalParent was called, one
// SubmitSpans command per token entry the ambient Span fans into, all
// sharing a single LocalSpans batch by reference.
func (g *LocalParentGuard) Close() {
	if g == nil || g.closed {
		return
	}
	g.closed = true
	line := g.stack.popLine()
	if line == nil || len(line.spans) == 0 {
		return
	}
	now := clock.Now()
	for _, f := range line.frames {
		if line.spans[f.idx].End == 0 {
			line.spans[f.idx].End = now
		}
	}
	batch := &model.LocalSpans{Spans: line.spans}
	c := theCollector()
	for _, e := range g.amb.token {
		e.ParentInTrace = g.amb.selfID
		c.Push(g.stack.ring, model.Command{
			Kind:      model.CmdSubmitSpans,
			CollectID: e.CollectID,
			Entry:     e,
			Payload:   &model.Payload{Batch: batch},
		})
	}
}

// AddEvent attaches a zero-duration, named event to s.
func (s *Span) AddEvent(name string, props ...Property) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s
	}
	now := clock.Now()
	s.extra = append(s.extra, model.RawSpan{
		ParentID: s.raw.ID,
		Begin:    now,
		End:      now,
		Kind:     model.KindEvent,
		Name:     name,
		Props:    Properties(props),
	})
	return s
}

// AddProperty appends one key/value property to s.
func (s *Span) AddProperty(key, value string) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s
	}
	s.raw.Props = s.raw.Props.Add(key, value)
	return s
}

// AddProperties appends multiple properties to s at once.
func (s *Span) AddProperties(props ...Property) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s
	}
	s.raw.Props = append(s.raw.Props, props...)
	return s
}

// PushChildSpans merges an externally-collected LocalSpans batch (for
// instance from a LocalCollector.Collect call elsewhere) into s, to be
// submitted together with s at Finish time. Parent resolution within the
// merged batch happens exactly as it would for any other batch: entries
// whose ParentID matches another merged span attach there, the rest
// attach to s.
func (s *Span) PushChildSpans(children LocalSpans) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || len(children.Spans) == 0 {
		return s
	}
	inBatch := make(map[SpanID]bool, len(children.Spans))
	for _, c := range children.Spans {
		if c.Kind == model.KindSpan {
			inBatch[c.ID] = true
		}
	}
	start := len(s.extra)
	s.extra = append(s.extra, children.Spans...)
	for i := start; i < len(s.extra); i++ {
		if !inBatch[s.extra[i].ParentID] {
			s.extra[i].ParentID = s.raw.ID
		}
	}
	return s
}

// Elapsed returns nanoseconds elapsed since s began. After Finish it
// returns the span's final fixed duration.
func (s *Span) Elapsed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.raw.Elapsed()
	}
	return clock.Now() - s.raw.Begin
}

// Cancel discards s without ever submitting its data. If s is the root of
// any trace it fans into, the collector is told to drop that trace
// entirely (spec tail-sampling: a canceled root must suppress everything
// collected for it so far); non-root entries simply go unsubmitted.
func (s *Span) Cancel() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	token := s.token
	s.mu.Unlock()

	c := theCollector()
	for _, e := range token {
		if e.IsRoot {
			c.Push(c.SharedRing(), model.Command{Kind: model.CmdDropCollect, CollectID: e.CollectID})
		}
	}
}

// Finish closes s and submits it (and anything merged via AddEvent or
// PushChildSpans) to the global collector, once per token entry. For
// every token entry that owns its CollectID (IsRoot), Finish additionally
// submits CommitCollect, finalizing that trace assembly (spec §4.5 "If
// this is a root span, additionally submits CommitCollect").
func (s *Span) Finish() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.raw.End = clock.Now()
	raw := s.raw
	extra := s.extra
	token := s.token
	s.mu.Unlock()

	c := theCollector()
	ring := c.SharedRing()
	if len(extra) == 0 {
		for _, e := range token {
			c.Push(ring, model.Command{
				Kind:      model.CmdSubmitSpans,
				CollectID: e.CollectID,
				Entry:     e,
				Payload:   &model.Payload{Single: &raw},
			})
		}
	} else {
		batch := &model.LocalSpans{Spans: append([]model.RawSpan{raw}, extra...)}
		for _, e := range token {
			c.Push(ring, model.Command{
				Kind:      model.CmdSubmitSpans,
				CollectID: e.CollectID,
				Entry:     e,
				Payload:   &model.Payload{Batch: batch},
			})
		}
	}
	for _, e := range token {
		if e.IsRoot {
			c.Push(ring, model.Command{Kind: model.CmdCommitCollect, CollectID: e.CollectID})
		}
	}
}
