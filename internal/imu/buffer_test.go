package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func sampleAt(device string, nanos int64) Sample {
	return Sample{
		DeviceID:       device,
		TimestampNanos: nanos,
		Acceleration:   r3.Vec{Y: -9.81},
		Orientation:    quat.Number{Real: 1},
	}
}

func TestStreamBuffer_AppendKeepsOrder(t *testing.T) {
	b := NewStreamBuffer("pelvis")

	assert.True(t, b.Append(sampleAt("pelvis", 100)))
	assert.True(t, b.Append(sampleAt("pelvis", 200)))
	assert.True(t, b.Append(sampleAt("pelvis", 300)))

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(100), snap[0].TimestampNanos)
	assert.Equal(t, int64(300), snap[2].TimestampNanos)
}

func TestStreamBuffer_RejectsStaleSamples(t *testing.T) {
	b := NewStreamBuffer("pelvis")

	assert.True(t, b.Append(sampleAt("pelvis", 200)))
	assert.False(t, b.Append(sampleAt("pelvis", 200)), "equal timestamp is stale")
	assert.False(t, b.Append(sampleAt("pelvis", 100)), "older timestamp is stale")
	assert.True(t, b.Append(sampleAt("pelvis", 300)))

	assert.Equal(t, 2, b.StaleCount())
	assert.Equal(t, 2, b.Len())
}

func TestStreamBuffer_RejectsWrongDevice(t *testing.T) {
	b := NewStreamBuffer("pelvis")

	assert.False(t, b.Append(sampleAt("left_wrist", 100)))
	assert.Equal(t, 0, b.Len())
}

func TestStreamBuffer_DiscardBeforeKeepsBracketingSample(t *testing.T) {
	b := NewStreamBuffer("pelvis")
	for _, nanos := range []int64{1e9, 2e9, 3e9, 4e9} {
		require.True(t, b.Append(sampleAt("pelvis", nanos)))
	}

	// Discarding before t=2.5s must keep the 2s sample so interpolation
	// across the boundary stays possible.
	b.DiscardBefore(2.5)

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(2e9), snap[0].TimestampNanos)
}

func TestStreamBuffer_ResetClearsStateAndCounters(t *testing.T) {
	b := NewStreamBuffer("pelvis")
	require.True(t, b.Append(sampleAt("pelvis", 200)))
	require.False(t, b.Append(sampleAt("pelvis", 100)))

	b.Reset()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.StaleCount())
	// After reset old timestamps are acceptable again.
	assert.True(t, b.Append(sampleAt("pelvis", 100)))
}

func TestStreamBuffer_LatestReturnsNewest(t *testing.T) {
	b := NewStreamBuffer("pelvis")

	_, ok := b.Latest()
	assert.False(t, ok)

	b.Append(sampleAt("pelvis", 100))
	b.Append(sampleAt("pelvis", 200))

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(200), latest.TimestampNanos)
}
