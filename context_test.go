package fastrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceparentRoundTrip(t *testing.T) {
	ctx := RandomSpanContext(true)
	ctx.SpanID = 0x0102030405060708

	s := ctx.EncodeW3CTraceparent()
	assert.Len(t, s, traceparentLen)
	assert.Equal(t, byte('0'), s[0])

	got, ok := DecodeW3CTraceparent(s)
	require.True(t, ok)
	assert.Equal(t, ctx, got)
}

func TestTraceparentSampledFlag(t *testing.T) {
	sampled := RandomSpanContext(true)
	unsampled := RandomSpanContext(false)

	s1 := sampled.EncodeW3CTraceparent()
	s2 := unsampled.EncodeW3CTraceparent()
	assert.Equal(t, "01", s1[len(s1)-2:])
	assert.Equal(t, "00", s2[len(s2)-2:])

	got1, ok := DecodeW3CTraceparent(s1)
	require.True(t, ok)
	assert.True(t, got1.Sampled)

	got2, ok := DecodeW3CTraceparent(s2)
	require.True(t, ok)
	assert.False(t, got2.Sampled)
}

func TestDecodeW3CTraceparentRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"00-short",
		"01-00000000000000000000000000000001-0000000000000001-01", // bad version
		"00_00000000000000000000000000000001-0000000000000001-01", // bad separator
		"00-zz000000000000000000000000000001-0000000000000001-01", // bad hex
	}
	for _, c := range cases {
		_, ok := DecodeW3CTraceparent(c)
		assert.False(t, ok, "expected rejection for %q", c)
	}
}

func TestRandomTraceIDIsNotAllZero(t *testing.T) {
	id := RandomTraceID()
	assert.False(t, id.IsZero())
}
