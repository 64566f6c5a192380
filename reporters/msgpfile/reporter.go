// Package msgpfile provides a minimal fastrace.Reporter that appends
// every materialized SpanRecord to a file as a stream of MessagePack
// values, using github.com/tinylib/msgp/msgp's low-level Writer/Reader
// directly rather than struct-tag code generation (the teacher generates
// msgp (un)marshalers for its wire payload types via `go:generate msgp`;
// here there is no struct worth generating code for, so the encoding is
// written by hand against the same library's primitives). This exists to
// exercise the dependency with a real, if intentionally small, sink —
// concrete network reporters are out of scope (spec Non-goals).
package msgpfile

import (
	"io"
	"os"
	"sync"

	"github.com/tinylib/msgp/msgp"
	"golang.org/x/xerrors"

	"github.com/fast/fastrace"
	"github.com/fast/fastrace/internal/log"
)

// Reporter appends each Report call's records to an underlying file, each
// record as a MessagePack map of its scalar fields and properties
// immediately followed by a MessagePack array of its events.
type Reporter struct {
	mu sync.Mutex
	f  *os.File
	w  *msgp.Writer
}

// Open creates or appends to the file at path and returns a Reporter
// writing to it.
func Open(path string) (*Reporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, xerrors.Errorf("msgpfile: open %s: %w", path, err)
	}
	return &Reporter{f: f, w: msgp.NewWriter(f)}, nil
}

// Report implements fastrace.Reporter by appending records to the file.
// A write failure is logged and the remaining records in the batch are
// dropped; it never blocks the caller with a retry loop (spec: a slow or
// failing reporter must not stall the collector).
func (r *Reporter) Report(records []fastrace.SpanRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if err := encodeRecord(r.w, rec); err != nil {
			log.Error("fastrace/msgpfile: encode failed, dropping remaining batch", "error", err)
			return
		}
	}
	if err := r.w.Flush(); err != nil {
		log.Error("fastrace/msgpfile: flush failed", "error", err)
	}
}

// Shutdown flushes and closes the underlying file.
func (r *Reporter) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.w.Flush()
	_ = r.f.Close()
}

func encodeRecord(w *msgp.Writer, rec fastrace.SpanRecord) error {
	if err := w.WriteMapHeader(8); err != nil {
		return err
	}
	fields := []struct {
		key string
		val func() error
	}{
		{"trace_id_hi", func() error { return w.WriteUint64(rec.TraceID.Hi) }},
		{"trace_id_lo", func() error { return w.WriteUint64(rec.TraceID.Lo) }},
		{"span_id", func() error { return w.WriteUint64(uint64(rec.SpanID)) }},
		{"parent_id", func() error { return w.WriteUint64(uint64(rec.ParentID)) }},
		{"begin_unix_nanos", func() error { return w.WriteInt64(rec.BeginUnixNanos) }},
		{"duration_nanos", func() error { return w.WriteInt64(rec.DurationNanos) }},
		{"name", func() error { return w.WriteString(rec.Name) }},
		{"props", func() error { return encodeProperties(w, rec.Props) }},
	}
	for _, f := range fields {
		if err := w.WriteString(f.key); err != nil {
			return err
		}
		if err := f.val(); err != nil {
			return err
		}
	}
	if err := w.WriteArrayHeader(uint32(len(rec.Events))); err != nil {
		return err
	}
	for _, ev := range rec.Events {
		if err := encodeEvent(w, ev); err != nil {
			return err
		}
	}
	return nil
}

// encodeProperties writes an ordered list as an array of [key, value]
// pairs rather than a map, since MessagePack maps have no defined
// ordering and fastrace.Properties preserves insertion order.
func encodeProperties(w *msgp.Writer, props fastrace.Properties) error {
	if err := w.WriteArrayHeader(uint32(len(props))); err != nil {
		return err
	}
	for _, p := range props {
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteString(p.Key); err != nil {
			return err
		}
		if err := w.WriteString(p.Value); err != nil {
			return err
		}
	}
	return nil
}

func encodeEvent(w *msgp.Writer, ev fastrace.Event) error {
	if err := w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := w.WriteString("name"); err != nil {
		return err
	}
	if err := w.WriteString(ev.Name); err != nil {
		return err
	}
	if err := w.WriteString("timestamp_unix_nanos"); err != nil {
		return err
	}
	if err := w.WriteInt64(ev.TimestampUnixNs); err != nil {
		return err
	}
	if err := w.WriteString("props"); err != nil {
		return err
	}
	return encodeProperties(w, ev.Props)
}

// ReadAll decodes every record appended to the file at path, in order.
// It exists mainly to give the Reporter's format a round-trip test; real
// consumers of msgpfile output are expected to be other processes.
func ReadAll(path string) ([]fastrace.SpanRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("msgpfile: open %s: %w", path, err)
	}
	defer f.Close()

	r := msgp.NewReader(f)
	var out []fastrace.SpanRecord
	for {
		rec, err := decodeRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, xerrors.Errorf("msgpfile: decode: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(r *msgp.Reader) (fastrace.SpanRecord, error) {
	var rec fastrace.SpanRecord
	n, err := r.ReadMapHeader()
	if err != nil {
		return rec, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return rec, err
		}
		switch key {
		case "trace_id_hi":
			rec.TraceID.Hi, err = r.ReadUint64()
		case "trace_id_lo":
			rec.TraceID.Lo, err = r.ReadUint64()
		case "span_id":
			var v uint64
			v, err = r.ReadUint64()
			rec.SpanID = fastrace.SpanID(v)
		case "parent_id":
			var v uint64
			v, err = r.ReadUint64()
			rec.ParentID = fastrace.SpanID(v)
		case "begin_unix_nanos":
			rec.BeginUnixNanos, err = r.ReadInt64()
		case "duration_nanos":
			rec.DurationNanos, err = r.ReadInt64()
		case "name":
			rec.Name, err = r.ReadString()
		case "props":
			rec.Props, err = decodeProperties(r)
		default:
			err = r.Skip()
		}
		if err != nil {
			return rec, err
		}
	}

	evN, err := r.ReadArrayHeader()
	if err != nil {
		return rec, err
	}
	for i := uint32(0); i < evN; i++ {
		ev, err := decodeEvent(r)
		if err != nil {
			return rec, err
		}
		rec.Events = append(rec.Events, ev)
	}
	return rec, nil
}

func decodeProperties(r *msgp.Reader) (fastrace.Properties, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	props := make(fastrace.Properties, 0, n)
	for i := uint32(0); i < n; i++ {
		if _, err := r.ReadArrayHeader(); err != nil {
			return props, err
		}
		k, err := r.ReadString()
		if err != nil {
			return props, err
		}
		v, err := r.ReadString()
		if err != nil {
			return props, err
		}
		props = append(props, fastrace.Property{Key: k, Value: v})
	}
	return props, nil
}

func decodeEvent(r *msgp.Reader) (fastrace.Event, error) {
	var ev fastrace.Event
	n, err := r.ReadMapHeader()
	if err != nil {
		return ev, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return ev, err
		}
		switch key {
		case "name":
			ev.Name, err = r.ReadString()
		case "timestamp_unix_nanos":
			ev.TimestampUnixNs, err = r.ReadInt64()
		case "props":
			ev.Props, err = decodeProperties(r)
		default:
			err = r.Skip()
		}
		if err != nil {
			return ev, err
		}
	}
	return ev, nil
}
