package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowIsMonotonicNonDecreasing(t *testing.T) {
	Reset()
	a := Now()
	time.Sleep(time.Millisecond)
	b := Now()
	assert.Greater(t, b, a)
}

func TestWallNanosMatchesRealTimeWithinTolerance(t *testing.T) {
	Reset()
	before := time.Now().UnixNano()
	instant := Now()
	wall := WallNanos(instant)
	after := time.Now().UnixNano()

	assert.GreaterOrEqual(t, wall, before)
	assert.LessOrEqual(t, wall, after)
}

func TestWallNanosAnchorIsStableAcrossCalls(t *testing.T) {
	Reset()
	first := Now()
	wallFirst := WallNanos(first)
	time.Sleep(time.Millisecond)
	second := Now()
	wallSecond := WallNanos(second)

	assert.Equal(t, second-first, wallSecond-wallFirst)
}
