package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/align"
)

// window builds n aligned frames with constant per-device measurements, the
// shape a static capture hold produces.
func window(n int, devices map[string]align.Measurement) []align.Frame {
	frames := make([]align.Frame, 0, n)
	for k := 0; k < n; k++ {
		perDevice := make(map[string]align.Measurement, len(devices))
		for id, m := range devices {
			perDevice[id] = m
		}
		frames = append(frames, align.Frame{Index: k, Seconds: float64(k) / 30, PerDevice: perDevice})
	}
	return frames
}

func identityMeasurement(acc r3.Vec) align.Measurement {
	return align.Measurement{Acceleration: acc, Orientation: quat.Number{Real: 1}}
}

func TestCalibrator_InsufficientSamplesDoesNotAdvanceStage(t *testing.T) {
	c := NewCalibrator(DefaultConfig("pelvis"))

	// 50 frames is short of the 90 a 3s capture at 30Hz requires.
	short := window(50, map[string]align.Measurement{
		"pelvis": identityMeasurement(r3.Vec{Y: -9.81}),
	})
	err := c.CaptureReference(short)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
	assert.Equal(t, AwaitingReferenceCapture, c.Stage())

	// A retry with a full window succeeds from the unchanged stage.
	full := window(90, map[string]align.Measurement{
		"pelvis": identityMeasurement(r3.Vec{Y: -9.81}),
	})
	require.NoError(t, c.CaptureReference(full))
	assert.Equal(t, AwaitingTPoseCapture, c.Stage())
}

func TestCalibrator_CapturesOutOfOrderRejected(t *testing.T) {
	c := NewCalibrator(DefaultConfig("pelvis"))

	full := window(90, map[string]align.Measurement{
		"pelvis": identityMeasurement(r3.Vec{Y: -9.81}),
	})

	_, err := c.CaptureTPose(full)
	assert.ErrorIs(t, err, ErrWrongStage)
	assert.Equal(t, AwaitingReferenceCapture, c.Stage())

	require.NoError(t, c.CaptureReference(full))
	err = c.CaptureReference(full)
	assert.ErrorIs(t, err, ErrWrongStage)
	assert.Equal(t, AwaitingTPoseCapture, c.Stage())
}

func TestCalibrator_IdentityHoldYieldsIdentityCalibration(t *testing.T) {
	c := NewCalibrator(DefaultConfig("pelvis"))

	gravity := r3.Vec{Y: -9.81}
	hold := window(90, map[string]align.Measurement{
		"pelvis":     identityMeasurement(gravity),
		"left_wrist": identityMeasurement(gravity),
	})

	require.NoError(t, c.CaptureReference(hold))
	state, err := c.CaptureTPose(hold)
	require.NoError(t, err)
	assert.Equal(t, Calibrated, c.Stage())
	assert.ElementsMatch(t, []string{"pelvis", "left_wrist"}, state.Devices())

	// With identity orientations throughout, applying the calibration to the
	// same static reading yields zero acceleration and identity rotation.
	out := state.Apply(hold[0])
	require.Contains(t, out.PerDevice, "pelvis")
	m := out.PerDevice["pelvis"]
	assert.InDelta(t, 0, r3.Norm(m.Acceleration), 1e-12)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, m.Orientation.At(i, j), 1e-12)
		}
	}
}

func TestCalibrator_RotatedHoldIsUndoneByCalibration(t *testing.T) {
	c := NewCalibrator(DefaultConfig("pelvis"))

	// The device is mounted rotated 90 degrees about x. Gravity reads along
	// the rotated axis; calibration must map it back to the body frame and
	// then subtract it entirely.
	half := math.Pi / 4
	rot := quat.Number{Real: math.Cos(half), Imag: math.Sin(half)}
	m := align.Measurement{Acceleration: r3.Vec{Z: -9.81}, Orientation: rot}
	hold := window(90, map[string]align.Measurement{"pelvis": m})

	require.NoError(t, c.CaptureReference(hold))
	state, err := c.CaptureTPose(hold)
	require.NoError(t, err)

	out := state.Apply(hold[0])
	calibrated := out.PerDevice["pelvis"]
	assert.InDelta(t, 0, r3.Norm(calibrated.Acceleration), 1e-9,
		"static bias is fully absorbed into the offsets")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, calibrated.Orientation.At(i, j), 1e-9,
				"the mounting rotation is undone at (%d,%d)", i, j)
		}
	}
}

func TestCalibrator_DegenerateOrientationRejected(t *testing.T) {
	c := NewCalibrator(DefaultConfig("pelvis"))

	// All-zero quaternions carry no orientation; the mean is undefined.
	hold := window(90, map[string]align.Measurement{
		"pelvis": {Acceleration: r3.Vec{Y: -9.81}},
	})

	err := c.CaptureReference(hold)
	assert.ErrorIs(t, err, ErrDegenerateOrientation)
	assert.Equal(t, AwaitingReferenceCapture, c.Stage())
}

func TestState_ApplyIsPureAndOmitsUnknownDevices(t *testing.T) {
	c := NewCalibrator(DefaultConfig("pelvis"))
	hold := window(90, map[string]align.Measurement{
		"pelvis": identityMeasurement(r3.Vec{Y: -9.81}),
	})
	require.NoError(t, c.CaptureReference(hold))
	state, err := c.CaptureTPose(hold)
	require.NoError(t, err)

	frame := align.Frame{
		Index:   7,
		Seconds: 1.25,
		PerDevice: map[string]align.Measurement{
			"pelvis":  identityMeasurement(r3.Vec{X: 1, Y: -9.81}),
			"unknown": identityMeasurement(r3.Vec{X: 5}),
		},
	}

	first := state.Apply(frame)
	second := state.Apply(frame)

	assert.Equal(t, 7, first.Index)
	assert.NotContains(t, first.PerDevice, "unknown")
	assert.Equal(t, first.PerDevice["pelvis"].Acceleration, second.PerDevice["pelvis"].Acceleration)
	assert.InDelta(t, 1.0, first.PerDevice["pelvis"].Acceleration.X, 1e-12)
}
