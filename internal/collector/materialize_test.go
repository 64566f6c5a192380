package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fast/fastrace/internal/model"
)

func TestMaterializeSingleResolvesParentFromTokenEntry(t *testing.T) {
	traceID := model.TraceID{Hi: 1}
	root := model.RawSpan{ID: 1, Kind: model.KindSpan, Name: "root"}
	child := model.RawSpan{ID: 2, ParentID: 1, Kind: model.KindSpan, Name: "child"}

	entries := []entryPayload{
		{entry: model.TokenEntry{ParentInTrace: 0}, payload: &model.Payload{Single: &root}},
		{entry: model.TokenEntry{ParentInTrace: 1}, payload: &model.Payload{Single: &child}},
	}
	recs := materialize(traceID, entries)
	require.Len(t, recs, 2)
	assert.Equal(t, model.SpanID(0), recs[0].ParentID)
	assert.Equal(t, model.SpanID(1), recs[1].ParentID)
}

func TestMaterializeBatchResolvesSameBatchParentAndDanglingEvent(t *testing.T) {
	traceID := model.TraceID{Hi: 2}
	batch := model.LocalSpans{Spans: []model.RawSpan{
		{ID: 10, ParentID: 0, Kind: model.KindSpan, Name: "outer"},
		{ID: 11, ParentID: 10, Kind: model.KindSpan, Name: "inner"},
		{ParentID: 11, Kind: model.KindEvent, Name: "checkpoint"},
		{ParentID: 999, Kind: model.KindEvent, Name: "dangling"}, // no span 999 in batch
	}}
	entry := model.TokenEntry{ParentInTrace: 5}
	entries := []entryPayload{{entry: entry, payload: &model.Payload{Batch: &batch}}}

	recs := materialize(traceID, entries)
	require.Len(t, recs, 2)

	var outer, inner *model.SpanRecord
	for i := range recs {
		switch recs[i].SpanID {
		case 10:
			outer = &recs[i]
		case 11:
			inner = &recs[i]
		}
	}
	require.NotNil(t, outer)
	require.NotNil(t, inner)
	assert.Equal(t, model.SpanID(5), outer.ParentID) // falls back to token entry
	assert.Equal(t, model.SpanID(10), inner.ParentID) // same-batch parent

	require.Len(t, inner.Events, 1)
	assert.Equal(t, "checkpoint", inner.Events[0].Name)
	// the event whose declared parent (999) is not in the batch and does
	// not match the token's fallback parent either is dropped, not
	// misattached.
	assert.Empty(t, outer.Events)
}

func TestMaterializeBatchReturnsNoRecordsPointerAliasingBug(t *testing.T) {
	// Regression guard: building many records must not leave stale pointers
	// into a reallocated slice. Large enough batch to force at least one
	// slice growth.
	traceID := model.TraceID{Hi: 3}
	var spans []model.RawSpan
	for i := 1; i <= 50; i++ {
		spans = append(spans, model.RawSpan{ID: model.SpanID(i), ParentID: model.SpanID(i - 1), Kind: model.KindSpan, Name: "s"})
	}
	batch := model.LocalSpans{Spans: spans}
	entries := []entryPayload{{entry: model.TokenEntry{ParentInTrace: 0}, payload: &model.Payload{Batch: &batch}}}

	recs := materialize(traceID, entries)
	require.Len(t, recs, 50)
	for i, r := range recs {
		assert.Equal(t, model.SpanID(i+1), r.SpanID)
	}
	assert.Equal(t, model.SpanID(0), recs[0].ParentID)
	assert.Equal(t, model.SpanID(1), recs[1].ParentID)
}
