package fastrace

import "github.com/fast/fastrace/internal/model"

// The types below are aliases of internal/model's plain data types. They
// live in internal/model (not here) purely to let package fastrace and
// internal/collector share a vocabulary without an import cycle: the
// collector engine needs these shapes too, and it is the collector
// engine's job to drive the types fastrace exposes publicly.

type (
	// TraceID is the 128-bit identifier shared by every span of one trace.
	TraceID = model.TraceID
	// SpanID is the 64-bit identifier of one span.
	SpanID = model.SpanID
	// CollectID is the collector's opaque handle for one in-flight trace.
	CollectID = model.CollectID
	// TokenEntry is one (collect_id, parent_in_trace, is_root, is_sampled) tuple.
	TokenEntry = model.TokenEntry
	// CollectToken is an ordered sequence of TokenEntry (fan-in support).
	CollectToken = model.CollectToken
	// SpanKind discriminates Span/Event/PropertiesOnly raw span entries.
	SpanKind = model.SpanKind
	// Property is one ordered (key, value) pair.
	Property = model.Property
	// Properties is an ordered, append-only list of Property.
	Properties = model.Properties
	// RawSpan is the internal record produced by every span operation.
	RawSpan = model.RawSpan
	// LocalSpans is a portable, ordered bundle of RawSpan.
	LocalSpans = model.LocalSpans
	// Event is a zero-duration marker attached to a SpanRecord.
	Event = model.Event
	// SpanRecord is the fully materialized, reportable span.
	SpanRecord = model.SpanRecord
	// Reporter is the synchronous external-collaborator contract.
	Reporter = model.Reporter
)

const (
	KindSpan           = model.KindSpan
	KindEvent          = model.KindEvent
	KindPropertiesOnly = model.KindPropertiesOnly
)
