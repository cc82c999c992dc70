package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/imu"
)

// stream builds n samples at a fixed step with acceleration linear in time,
// so interpolated values are exactly predictable.
func stream(device string, startNanos, stepNanos int64, n int) []imu.Sample {
	out := make([]imu.Sample, 0, n)
	for i := 0; i < n; i++ {
		nanos := startNanos + int64(i)*stepNanos
		out = append(out, imu.Sample{
			DeviceID:       device,
			TimestampNanos: nanos,
			Acceleration:   r3.Vec{Y: float64(nanos) / 1e9},
			Orientation:    quat.Number{Real: 1},
		})
	}
	return out
}

func TestAlign_OneSecondOverlapYieldsExactlyOneHundredFrames(t *testing.T) {
	// Device A covers [0.0, 1.5]s, device B [0.5, 1.5]s; the common window
	// is exactly 1.0s and must yield exactly 100 source-rate frames.
	streams := map[string][]imu.Sample{
		"a": stream("a", 0, 10e6, 151),
		"b": stream("b", 5e8, 10e6, 101),
	}

	frames, err := Align(streams, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, frames, 100)

	assert.InDelta(t, 0.5, frames[0].Seconds, 1e-9)
	assert.InDelta(t, 0.5+99*0.01, frames[99].Seconds, 1e-9)
	for _, f := range frames {
		assert.Len(t, f.PerDevice, 2)
	}
}

func TestAlign_InterpolatesLinearlyBetweenSamples(t *testing.T) {
	// Two samples one second apart; every aligned instant between them must
	// sit on the straight line.
	streams := map[string][]imu.Sample{
		"a": stream("a", 0, 1e9, 2),
	}

	frames, err := Align(streams, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, frames, 100)

	mid := frames[50]
	assert.InDelta(t, 0.5, mid.Seconds, 1e-9)
	assert.InDelta(t, 0.5, mid.PerDevice["a"].Acceleration.Y, 1e-9)
}

func TestAlign_NoOverlapRejected(t *testing.T) {
	streams := map[string][]imu.Sample{
		"a": stream("a", 0, 10e6, 10),
		"b": stream("b", 5e9, 10e6, 10),
	}

	_, err := Align(streams, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestAlign_RequiredDeviceWithoutSamplesRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredDevices = []string{"a", "b"}
	streams := map[string][]imu.Sample{
		"a": stream("a", 0, 10e6, 200),
		"b": nil,
	}

	_, err := Align(streams, cfg)
	assert.ErrorIs(t, err, ErrInsufficientDeviceCoverage)
}

func TestAlign_OptionalDeviceWithoutSamplesIgnored(t *testing.T) {
	streams := map[string][]imu.Sample{
		"a": stream("a", 0, 10e6, 101),
		"b": nil,
	}

	frames, err := Align(streams, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, frames, 100)
	for _, f := range frames {
		assert.Len(t, f.PerDevice, 1)
	}
}

func TestDecimate_StridePattern(t *testing.T) {
	// 100 source frames at indices 0..99; the 10/3 stride must pick
	// 0, 3, 6, 10, 13, 16, 20, ... giving exactly 30 output frames.
	src := make([]Frame, 100)
	for k := range src {
		src[k] = Frame{Index: k, Seconds: float64(k)}
	}

	out := Decimate(src, DefaultConfig())
	require.Len(t, out, 30)

	wantFirst := []float64{0, 3, 6, 10, 13, 16, 20}
	for i, want := range wantFirst {
		assert.Equal(t, want, out[i].Seconds, "source index of output frame %d", i)
		assert.Equal(t, i, out[i].Index, "output frames are renumbered")
	}
	assert.Equal(t, float64(29*10/3), out[29].Seconds)
}
