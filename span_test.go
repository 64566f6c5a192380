package fastrace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fast/fastrace/fastracetest"
)

func newTestReporter(t *testing.T) *fastracetest.Reporter {
	t.Helper()
	resetGlobalCollectorForTest()
	Init(WithReportInterval(time.Millisecond), WithStaleGracePeriod(20*time.Millisecond))
	rep := fastracetest.NewReporter()
	SetReporter(rep)
	t.Cleanup(resetGlobalCollectorForTest)
	return rep
}

// A single sampled root span, finished, is reported with its context's
// span id as parent.
func TestRootSpanIsReported(t *testing.T) {
	rep := newTestReporter(t)

	sc := RandomSpanContext(true)
	sc.SpanID = 99
	s := Root("work", sc)
	time.Sleep(time.Millisecond)
	s.Finish()
	Flush()

	recs := rep.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "work", recs[0].Name)
	assert.Equal(t, sc.TraceID, recs[0].TraceID)
	assert.Equal(t, SpanID(99), recs[0].ParentID)
	assert.Greater(t, recs[0].DurationNanos, int64(0))
}

// spec S2 (unsampled): a root created from an unsampled context is a
// noop — zero records reach the reporter, matching the property that an
// unsampled Span allocates no CollectID and produces no command traffic.
func TestUnsampledRootProducesNoRecords(t *testing.T) {
	rep := newTestReporter(t)

	s := Root("work", RandomSpanContext(false))
	s.AddEvent("ignored")
	s.AddProperty("k", "v")
	ctx, guard := s.SetLocalParent(nil)
	_, local := EnterLocalSpan(ctx, "child")
	local.Finish()
	guard.Close()
	s.Finish()
	Flush()

	assert.Empty(t, rep.Records())
}

// An unsampled parent SpanContext passed to EnterWithParent is the same
// noop as an unsampled root (spec §3/§4.5).
func TestEnterWithParentUnsampledProducesNoRecords(t *testing.T) {
	rep := newTestReporter(t)

	remote := RandomSpanContext(false)
	remote.SpanID = 777
	s := EnterWithParent(nil, "downstream", remote)
	s.Finish()
	Flush()

	assert.Empty(t, rep.Records())
}

// A child span created with EnterWithParent continues the same trace id
// and resolves its parent to the given SpanContext.
func TestEnterWithParentContinuesTrace(t *testing.T) {
	rep := newTestReporter(t)

	remote := RandomSpanContext(true)
	remote.SpanID = 777
	s := EnterWithParent(nil, "downstream", remote)
	s.Finish()
	Flush()

	recs := rep.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, remote.TraceID, recs[0].TraceID)
	assert.Equal(t, SpanID(777), recs[0].ParentID)
}

// spec S3: canceling a root span suppresses the whole trace.
func TestCancelRootSuppressesTrace(t *testing.T) {
	rep := newTestReporter(t)

	s := Root("aborted", RandomSpanContext(true))
	s.AddEvent("before-cancel")
	s.Cancel()
	Flush()

	assert.Empty(t, rep.Records())
}

// events and merged child spans attach to their owning record.
func TestEventsAndPushedChildSpansAttach(t *testing.T) {
	rep := newTestReporter(t)

	s := Root("parent", RandomSpanContext(true))
	s.AddEvent("checkpoint", Property{Key: "k", Value: "v"})

	ctx, lc := StartLocalCollector(nil)
	_, local := EnterLocalSpan(ctx, "local-child")
	local.Finish()
	children := lc.Collect()
	s.PushChildSpans(children)

	s.Finish()
	Flush()

	recs := rep.Records()
	require.Len(t, recs, 2)

	var parent *SpanRecord
	for i := range recs {
		if recs[i].Name == "parent" {
			parent = &recs[i]
		}
	}
	require.NotNil(t, parent)
	require.Len(t, parent.Events, 1)
	assert.Equal(t, "checkpoint", parent.Events[0].Name)

	child := rep.FindByName("local-child")
	require.Len(t, child, 1)
	assert.Equal(t, parent.SpanID, child[0].ParentID)
}

// spec S1 (single local): SetLocalParent/LocalParentGuard thread local
// spans under the ambient Span's token without a new CollectID.
func TestSetLocalParentAttachesNestedLocalSpans(t *testing.T) {
	rep := newTestReporter(t)

	root := Root("handler", RandomSpanContext(true))
	ctx, guard := root.SetLocalParent(nil)
	_, span := EnterLocalSpan(ctx, "db.query")
	span.AddProperty("table", "users")
	span.Finish()
	guard.Close()
	root.Finish()
	Flush()

	recs := rep.Records()
	require.Len(t, recs, 2)

	var parent *SpanRecord
	for i := range recs {
		if recs[i].Name == "handler" {
			parent = &recs[i]
		}
	}
	require.NotNil(t, parent)

	dbRecs := rep.FindByName("db.query")
	require.Len(t, dbRecs, 1)
	assert.Equal(t, parent.SpanID, dbRecs[0].ParentID)
	require.Len(t, dbRecs[0].Props, 1)
	assert.Equal(t, "table", dbRecs[0].Props[0].Key)
}

// EnterWithLocalParent creates a genuine child Span reusing the ambient
// token, without allocating a new trace.
func TestEnterWithLocalParentReusesAmbientToken(t *testing.T) {
	rep := newTestReporter(t)

	root := Root("outer", RandomSpanContext(true))
	ctx, guard := root.SetLocalParent(nil)
	child := EnterWithLocalParent(ctx, "inner-span")
	child.Finish()
	guard.Close()
	root.Finish()
	Flush()

	recs := rep.Records()
	require.Len(t, recs, 2)
	var outer, inner *SpanRecord
	for i := range recs {
		switch recs[i].Name {
		case "outer":
			outer = &recs[i]
		case "inner-span":
			inner = &recs[i]
		}
	}
	require.NotNil(t, outer)
	require.NotNil(t, inner)
	assert.Equal(t, outer.TraceID, inner.TraceID)
	assert.Equal(t, outer.SpanID, inner.ParentID)
}

// spec S6 (tail drop): with tail_sampled=true, canceling the root
// suppresses every span submitted under it, even ones already pushed to
// the collector before the cancel is observed.
func TestTailSampledCancelDropsAllSubmittedSpans(t *testing.T) {
	resetGlobalCollectorForTest()
	Init(WithReportInterval(time.Millisecond), WithStaleGracePeriod(20*time.Millisecond), WithTailSampled(true))
	rep := fastracetest.NewReporter()
	SetReporter(rep)
	t.Cleanup(resetGlobalCollectorForTest)

	root := Root("root", RandomSpanContext(true))
	ctx, guard := root.SetLocalParent(nil)
	for _, name := range []string{"a", "b", "c"} {
		_, span := EnterLocalSpan(ctx, name)
		span.Finish()
	}
	guard.Close()
	root.Cancel()
	Flush()

	assert.Empty(t, rep.Records())
}

func TestReporterShutdownCalledOnCollectorShutdown(t *testing.T) {
	rep := newTestReporter(t)
	Shutdown()
	assert.True(t, rep.ShutdownCalled())
}
