package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fast/fastrace/internal/model"
)

type recordingReporter struct {
	records []model.SpanRecord
}

func (r *recordingReporter) Report(records []model.SpanRecord) {
	r.records = append(r.records, records...)
}

func (r *recordingReporter) Shutdown() {}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SharedShards = 2
	cfg.StaleGracePeriod = 50 * time.Millisecond
	return cfg
}

func TestCollectorCommitReportsAssembledTrace(t *testing.T) {
	c := New(testConfig())
	rep := &recordingReporter{}
	require.True(t, c.SetReporter(rep))

	ring := c.SharedRing()
	traceID := model.TraceID{Hi: 1, Lo: 2}
	cid := c.NextCollectID()

	require.True(t, ring.Push(model.Command{Kind: model.CmdStartCollect, CollectID: cid, TraceID: traceID}))
	root := model.RawSpan{ID: 10, Name: "root", Begin: 0, End: 100, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid, IsRoot: true, IsSampled: true},
		Payload: &model.Payload{Single: &root},
	}))
	require.True(t, ring.Push(model.Command{Kind: model.CmdCommitCollect, CollectID: cid}))

	c.tick()

	require.Len(t, rep.records, 1)
	assert.Equal(t, traceID, rep.records[0].TraceID)
	assert.Equal(t, model.SpanID(10), rep.records[0].SpanID)
	assert.Equal(t, int64(100), rep.records[0].DurationNanos)
}

func TestCollectorDropSuppressesTrace(t *testing.T) {
	c := New(testConfig())
	rep := &recordingReporter{}
	require.True(t, c.SetReporter(rep))

	ring := c.SharedRing()
	cid := c.NextCollectID()
	require.True(t, ring.Push(model.Command{Kind: model.CmdStartCollect, CollectID: cid, TraceID: model.TraceID{Hi: 1}}))
	root := model.RawSpan{ID: 1, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid, IsRoot: true},
		Payload: &model.Payload{Single: &root},
	}))
	require.True(t, ring.Push(model.Command{Kind: model.CmdDropCollect, CollectID: cid}))

	c.tick()

	assert.Empty(t, rep.records)

	// a late SubmitSpans for the dropped collect id must be silently
	// discarded, not resurrected as a new assembly.
	late := model.RawSpan{ID: 2, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid},
		Payload: &model.Payload{Single: &late},
	}))
	c.tick()
	assert.Empty(t, rep.records)
}

func TestCollectorLateSubmitAfterCommitEmitsSupplementaryRecord(t *testing.T) {
	c := New(testConfig())
	rep := &recordingReporter{}
	require.True(t, c.SetReporter(rep))

	ring := c.SharedRing()
	traceID := model.TraceID{Hi: 9}
	cid := c.NextCollectID()
	require.True(t, ring.Push(model.Command{Kind: model.CmdStartCollect, CollectID: cid, TraceID: traceID}))
	root := model.RawSpan{ID: 1, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid, IsRoot: true},
		Payload: &model.Payload{Single: &root},
	}))
	require.True(t, ring.Push(model.Command{Kind: model.CmdCommitCollect, CollectID: cid}))
	c.tick()
	require.Len(t, rep.records, 1)

	late := model.RawSpan{ID: 2, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid, ParentInTrace: 1},
		Payload: &model.Payload{Single: &late},
	}))
	c.tick()

	require.Len(t, rep.records, 2)
	assert.Equal(t, traceID, rep.records[1].TraceID)
	assert.Equal(t, model.SpanID(2), rep.records[1].SpanID)
}

func TestCollectorOrphanSubmitReattachesOnStartCollect(t *testing.T) {
	c := New(testConfig())
	rep := &recordingReporter{}
	require.True(t, c.SetReporter(rep))

	ring := c.SharedRing()
	cid := c.NextCollectID()

	// SubmitSpans arrives before StartCollect (possible when a child's ring
	// is drained ahead of the root's in the same tick).
	orphan := model.RawSpan{ID: 5, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid},
		Payload: &model.Payload{Single: &orphan},
	}))
	require.True(t, ring.Push(model.Command{Kind: model.CmdStartCollect, CollectID: cid, TraceID: model.TraceID{Hi: 3}}))
	require.True(t, ring.Push(model.Command{Kind: model.CmdCommitCollect, CollectID: cid}))

	c.tick()

	require.Len(t, rep.records, 1)
	assert.Equal(t, model.SpanID(5), rep.records[0].SpanID)
}

func TestSetReporterIgnoresSecondInstall(t *testing.T) {
	c := New(testConfig())
	first := &recordingReporter{}
	second := &recordingReporter{}
	require.True(t, c.SetReporter(first))
	assert.False(t, c.SetReporter(second))
}

func TestFlushWithoutStartRunsSynchronously(t *testing.T) {
	c := New(testConfig())
	rep := &recordingReporter{}
	require.True(t, c.SetReporter(rep))

	ring := c.SharedRing()
	cid := c.NextCollectID()
	require.True(t, ring.Push(model.Command{Kind: model.CmdStartCollect, CollectID: cid, TraceID: model.TraceID{Hi: 7}}))
	root := model.RawSpan{ID: 1, Kind: model.KindSpan}
	require.True(t, ring.Push(model.Command{
		Kind: model.CmdSubmitSpans, CollectID: cid,
		Entry:   model.TokenEntry{CollectID: cid, IsRoot: true},
		Payload: &model.Payload{Single: &root},
	}))
	require.True(t, ring.Push(model.Command{Kind: model.CmdCommitCollect, CollectID: cid}))

	c.Flush()

	require.Len(t, rep.records, 1)
}
