package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDIsZero(t *testing.T) {
	assert.True(t, TraceID{}.IsZero())
	assert.False(t, TraceID{Hi: 1}.IsZero())
	assert.False(t, TraceID{Lo: 1}.IsZero())
}

func TestCollectTokenCloneIsIndependent(t *testing.T) {
	orig := CollectToken{{CollectID: 1, IsRoot: true}}
	clone := orig.Clone()
	clone[0].CollectID = 2
	assert.Equal(t, CollectID(1), orig[0].CollectID)
	assert.Equal(t, CollectID(2), clone[0].CollectID)
}

func TestCollectTokenSampled(t *testing.T) {
	assert.False(t, CollectToken{{IsSampled: false}}.Sampled())
	assert.True(t, CollectToken{{IsSampled: false}, {IsSampled: true}}.Sampled())
}

func TestPropertiesAddPreservesOrder(t *testing.T) {
	var p Properties
	p = p.Add("a", "1")
	p = p.Add("b", "2")
	assert.Equal(t, Properties{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, p)
}

func TestRawSpanElapsed(t *testing.T) {
	r := RawSpan{Begin: 100, End: 350}
	assert.Equal(t, int64(250), r.Elapsed())
}
