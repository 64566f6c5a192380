package collector

import (
	"github.com/fast/fastrace/internal/clock"
	"github.com/fast/fastrace/internal/model"
)

// MaterializeBatch exposes the same batch materialization logic for
// standalone local collections that never pass through the global
// collector (spec's LocalSpans::to_span_records), keyed to a single
// (fixed) parent rather than an in-flight assembly.
func MaterializeBatch(traceID model.TraceID, parent model.SpanID, batch model.LocalSpans) []model.SpanRecord {
	entry := model.TokenEntry{ParentInTrace: parent}
	return materialize(traceID, []entryPayload{{entry: entry, payload: &model.Payload{Batch: &batch}}})
}

// materialize converts the accumulated entries of one finished trace
// assembly into reportable SpanRecords (spec §4.8): monotonic timestamps
// become wall-clock, parent ids are resolved, and dangling events /
// properties-only entries are reattached to their owning span.
//
// Parent resolution rule: a raw span's ParentID is honored as-is when it
// names another span materialized from the SAME entry (same-batch, or
// same single-payload submission); otherwise it is replaced by the
// submitting token entry's ParentInTrace, since that is the only parent
// reference guaranteed meaningful within this specific trace (a Span
// shared across multiple traces via fan-in carries one distinct
// ParentInTrace per trace).
//
// Records are built as pointers first and flattened at the end: payload
// and event entries must keep referencing their owning record as more
// entries are appended, and a plain slice of model.SpanRecord would
// invalidate those references on every reallocation.
func materialize(traceID model.TraceID, entries []entryPayload) []model.SpanRecord {
	var recs []*model.SpanRecord
	bySpanID := make(map[model.SpanID]*model.SpanRecord)

	for _, ep := range entries {
		if ep.payload == nil {
			continue
		}
		if ep.payload.Single != nil {
			applySingle(traceID, ep.entry, ep.payload.Single, bySpanID, &recs)
		}
		if ep.payload.Batch != nil {
			applyBatch(traceID, ep.entry, ep.payload.Batch, bySpanID, &recs)
		}
	}

	out := make([]model.SpanRecord, len(recs))
	for i, r := range recs {
		out[i] = *r
	}
	return out
}

func applySingle(traceID model.TraceID, entry model.TokenEntry, rs *model.RawSpan, bySpanID map[model.SpanID]*model.SpanRecord, recs *[]*model.SpanRecord) {
	switch rs.Kind {
	case model.KindSpan:
		rec := newRecord(traceID, entry, rs, bySpanID)
		*recs = append(*recs, rec)
		bySpanID[rs.ID] = rec
	default:
		attachDangling(rs, entry.ParentInTrace, bySpanID)
	}
}

func applyBatch(traceID model.TraceID, entry model.TokenEntry, batch *model.LocalSpans, bySpanID map[model.SpanID]*model.SpanRecord, recs *[]*model.SpanRecord) {
	batchLocal := make(map[model.SpanID]*model.SpanRecord, len(batch.Spans))

	for i := range batch.Spans {
		rs := &batch.Spans[i]
		if rs.Kind != model.KindSpan {
			continue
		}
		rec := newRecordInBatch(traceID, entry, rs, batchLocal)
		*recs = append(*recs, rec)
		batchLocal[rs.ID] = rec
		bySpanID[rs.ID] = rec
	}

	for i := range batch.Spans {
		rs := &batch.Spans[i]
		if rs.Kind == model.KindSpan {
			continue
		}
		parent, ok := batchLocal[rs.ParentID]
		if !ok {
			parent, ok = batchLocal[entry.ParentInTrace]
		}
		if !ok {
			continue // no span in this batch to attach to; drop
		}
		attachToRecord(parent, rs)
	}
}

// newRecord resolves parent for a lone (non-batch) span submission: its
// ParentID never refers to a sibling in the same submission, so it always
// falls back to the token entry's ParentInTrace.
func newRecord(traceID model.TraceID, entry model.TokenEntry, rs *model.RawSpan, _ map[model.SpanID]*model.SpanRecord) *model.SpanRecord {
	return &model.SpanRecord{
		TraceID:        traceID,
		SpanID:         rs.ID,
		ParentID:       entry.ParentInTrace,
		BeginUnixNanos: clock.WallNanos(rs.Begin),
		DurationNanos:  rs.Elapsed(),
		Name:           rs.Name,
		Props:          rs.Props,
	}
}

func newRecordInBatch(traceID model.TraceID, entry model.TokenEntry, rs *model.RawSpan, batchLocal map[model.SpanID]*model.SpanRecord) *model.SpanRecord {
	parentID := entry.ParentInTrace
	if _, ok := batchLocal[rs.ParentID]; ok {
		parentID = rs.ParentID
	}
	return &model.SpanRecord{
		TraceID:        traceID,
		SpanID:         rs.ID,
		ParentID:       parentID,
		BeginUnixNanos: clock.WallNanos(rs.Begin),
		DurationNanos:  rs.Elapsed(),
		Name:           rs.Name,
		Props:          rs.Props,
	}
}

func attachDangling(rs *model.RawSpan, fallbackParent model.SpanID, bySpanID map[model.SpanID]*model.SpanRecord) {
	parent, ok := bySpanID[rs.ParentID]
	if !ok {
		parent, ok = bySpanID[fallbackParent]
	}
	if !ok {
		return
	}
	attachToRecord(parent, rs)
}

func attachToRecord(rec *model.SpanRecord, rs *model.RawSpan) {
	if rs.Kind == model.KindEvent {
		rec.Events = append(rec.Events, model.Event{
			Name:            rs.Name,
			TimestampUnixNs: clock.WallNanos(rs.Begin),
			Props:           rs.Props,
		})
		return
	}
	rec.Props = append(rec.Props, rs.Props...)
}
