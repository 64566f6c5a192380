// Package model holds the plain data types shared between the public
// fastrace API and the internal collector engine, with no logic of its
// own beyond trivial accessors. It exists purely to break the import
// cycle that would otherwise appear between package fastrace (the public
// surface) and internal/collector (the engine fastrace drives): both
// depend on these types, neither depends on the other.
package model

// TraceID is the 128-bit identifier shared by every span of one trace,
// stored as two big-endian halves (spec §3).
type TraceID struct {
	Hi, Lo uint64
}

// IsZero reports whether t is the zero TraceID.
func (t TraceID) IsZero() bool { return t.Hi == 0 && t.Lo == 0 }

// SpanID is the 64-bit identifier of one span (spec §3).
type SpanID uint64

// CollectID is the collector's opaque handle for one in-flight trace
// (spec §3).
type CollectID uint32

// TokenEntry is one (collect_id, parent_in_trace, is_root, is_sampled)
// tuple (spec §3/§4.9).
type TokenEntry struct {
	CollectID     CollectID
	ParentInTrace SpanID
	IsRoot        bool
	IsSampled     bool
}

// CollectToken is an ordered sequence of TokenEntry; more than one entry
// means fan-in to multiple traces.
type CollectToken []TokenEntry

// Clone returns an independent copy of t.
func (t CollectToken) Clone() CollectToken {
	if len(t) == 0 {
		return nil
	}
	out := make(CollectToken, len(t))
	copy(out, t)
	return out
}

// Sampled reports whether any entry in the token is sampled.
func (t CollectToken) Sampled() bool {
	for _, e := range t {
		if e.IsSampled {
			return true
		}
	}
	return false
}

// SpanKind discriminates the three flavors of RawSpan (spec §3).
type SpanKind uint8

const (
	KindSpan SpanKind = iota
	KindEvent
	KindPropertiesOnly
)

// Property is one ordered (key, value) pair.
type Property struct {
	Key, Value string
}

// Properties is an ordered, append-only (while open) list of Property.
type Properties []Property

func (p Properties) Add(k, v string) Properties {
	return append(p, Property{Key: k, Value: v})
}

// RawSpan is the internal record produced by every span operation (spec
// §3). Once submitted to the collector it is immutable; it is always
// shared by reference, never deep-copied.
type RawSpan struct {
	ID       SpanID
	ParentID SpanID
	Begin    int64 // monotonic nanoseconds
	End      int64 // monotonic nanoseconds
	Name     string
	Props    Properties
	Kind     SpanKind
}

// Elapsed returns End-Begin.
func (r *RawSpan) Elapsed() int64 { return r.End - r.Begin }

// LocalSpans is a portable, ordered bundle of RawSpan drained from one
// SpanLine (spec §4.4/§4.6): either a whole LocalCollector's session or
// one LocalParentGuard's scope.
type LocalSpans struct {
	Spans []RawSpan
}

// Payload is the shared, reference-counted body of a SubmitSpans command:
// exactly one of Single or Batch is set.
type Payload struct {
	Single *RawSpan
	Batch  *LocalSpans
}

// CommandKind discriminates the four collector commands (spec §4.2).
type CommandKind uint8

const (
	CmdStartCollect CommandKind = iota
	CmdSubmitSpans
	CmdCommitCollect
	CmdDropCollect
)

// Command is one entry flowing through an SPSC ring into the collector.
type Command struct {
	Kind      CommandKind
	CollectID CollectID
	Entry     TokenEntry // valid for CmdSubmitSpans: which (collect_id, parent) this payload targets
	Payload   *Payload   // valid for CmdSubmitSpans
	TraceID   TraceID    // valid for CmdStartCollect: the trace this collect id belongs to
	RootCtx   SpanContext
}

// SpanContext is duplicated here (rather than aliased from the root
// package) to keep model import-free of fastrace; the root package's
// SpanContext is a type alias of this one.
type SpanContext struct {
	TraceID TraceID
	SpanID  SpanID
	Sampled bool
}

// Event is a zero-duration marker attached to a SpanRecord.
type Event struct {
	Name            string
	TimestampUnixNs int64
	Props           Properties
}

// SpanRecord is the fully materialized, reportable span (spec §3/§6).
type SpanRecord struct {
	TraceID        TraceID
	SpanID         SpanID
	ParentID       SpanID
	BeginUnixNanos int64
	DurationNanos  int64
	Name           string
	Props          Properties
	Events         []Event
}

// Reporter is the synchronous external-collaborator contract (spec
// §4.9/§6). report(records) must not block indefinitely; a slow reporter
// only ever backpressures through SPSC ring overflow, never blocks other
// producers directly.
type Reporter interface {
	Report(records []SpanRecord)
	Shutdown()
}
