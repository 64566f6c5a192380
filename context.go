package fastrace

import (
	"encoding/hex"
	"strconv"

	"github.com/fast/fastrace/internal/model"
	"golang.org/x/xerrors"
)

// SpanContext is the value-type context propagated across process
// boundaries (spec §3/§6): a trace id, the remote span id this context
// was extracted under, and whether the trace is sampled. The sampled bit
// is merely propagated here, never decided (cross-process sampling
// decisions are out of scope, spec §1).
type SpanContext = model.SpanContext

// RandomSpanContext creates a fresh root SpanContext with a freshly
// generated TraceID and a zero SpanID (no remote parent), carrying the
// given sampled decision. This is the Go name for spec's
// SpanContext::random().
func RandomSpanContext(sampled bool) SpanContext {
	return SpanContext{TraceID: RandomTraceID(), SpanID: 0, Sampled: sampled}
}

const traceparentVersion = "00"
const traceparentLen = 55

// EncodeW3CTraceparent renders c as the W3C Trace Context traceparent
// header value: "00-<trace_id:32hex>-<span_id:16hex>-<01|00>".
func (c SpanContext) EncodeW3CTraceparent() string {
	buf := make([]byte, 0, traceparentLen)
	buf = append(buf, traceparentVersion...)
	buf = append(buf, '-')
	buf = appendHex64(buf, c.TraceID.Hi)
	buf = appendHex64(buf, c.TraceID.Lo)
	buf = append(buf, '-')
	buf = appendHex64(buf, uint64(c.SpanID))
	buf = append(buf, '-')
	if c.Sampled {
		buf = append(buf, "01"...)
	} else {
		buf = append(buf, "00"...)
	}
	return string(buf)
}

func appendHex64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[7-i] = byte(v)
		v >>= 8
	}
	dst := make([]byte, hex.EncodedLen(len(tmp)))
	hex.Encode(dst, tmp[:])
	return append(buf, dst...)
}

// ErrMalformedTraceparent is the error (wrapped) that the internal
// traceparent decoder produces when it rejects its input.
// DecodeW3CTraceparent does not return it: decode failures are a boundary
// error, the caller gets only ok=false, nothing is logged, and no panic
// occurs (spec §7).
type ErrMalformedTraceparent struct {
	Reason string
}

func (e *ErrMalformedTraceparent) Error() string {
	return "fastrace: malformed traceparent: " + e.Reason
}

// DecodeW3CTraceparent parses a W3C Trace Context traceparent header
// value. It rejects any input whose length is not exactly 55 bytes or
// whose version is not "00", per spec §4.1/§8 property 9.
func DecodeW3CTraceparent(s string) (SpanContext, bool) {
	ctx, err := decodeW3CTraceparent(s)
	if err != nil {
		return SpanContext{}, false
	}
	return ctx, true
}

func decodeW3CTraceparent(s string) (SpanContext, error) {
	if len(s) != traceparentLen {
		return SpanContext{}, xerrors.Errorf("decode traceparent: %w", &ErrMalformedTraceparent{Reason: "wrong length"})
	}
	// "00-<32hex>-<16hex>-<2hex>"
	if s[0:2] != traceparentVersion || s[2] != '-' || s[35] != '-' || s[52] != '-' {
		return SpanContext{}, xerrors.Errorf("decode traceparent: %w", &ErrMalformedTraceparent{Reason: "bad version or separators"})
	}
	traceHex := s[3:35]
	spanHex := s[36:52]
	flagsHex := s[53:55]

	hi, err := strconv.ParseUint(traceHex[:16], 16, 64)
	if err != nil {
		return SpanContext{}, xerrors.Errorf("decode traceparent: %w", &ErrMalformedTraceparent{Reason: "bad trace id"})
	}
	lo, err := strconv.ParseUint(traceHex[16:], 16, 64)
	if err != nil {
		return SpanContext{}, xerrors.Errorf("decode traceparent: %w", &ErrMalformedTraceparent{Reason: "bad trace id"})
	}
	span, err := strconv.ParseUint(spanHex, 16, 64)
	if err != nil {
		return SpanContext{}, xerrors.Errorf("decode traceparent: %w", &ErrMalformedTraceparent{Reason: "bad span id"})
	}
	flags, err := strconv.ParseUint(flagsHex, 16, 8)
	if err != nil {
		return SpanContext{}, xerrors.Errorf("decode traceparent: %w", &ErrMalformedTraceparent{Reason: "bad flags"})
	}

	return SpanContext{
		TraceID: TraceID{Hi: hi, Lo: lo},
		SpanID:  SpanID(span),
		Sampled: flags&0x1 == 1,
	}, nil
}
