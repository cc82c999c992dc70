package pose

import (
	"math"

	"github.com/relabs-tech/kinematic_computer/internal/calib"
)

// Estimator is the boundary to the external neural pose model. It consumes a
// calibrated sensor frame and emits full-body pose parameters. Errors are
// propagated verbatim; the pipeline treats them as "no frame produced" and
// keeps running.
type Estimator interface {
	EstimatePose(frame calib.Frame) (Frame, error)
}

// mockEstimator synthesizes a plausible running gait from sinusoids, in the
// same spirit as the mock orientation source: smooth, deterministic values
// for development and testing without the neural model.
type mockEstimator struct {
	rateHz     float64
	strideHz   float64
	forwardMPS float64
}

// NewMockEstimator creates a deterministic gait generator. rateHz is the
// frame rate driving the phase (the pipeline's target rate).
func NewMockEstimator(rateHz float64) Estimator {
	if rateHz <= 0 {
		rateHz = 30
	}
	return &mockEstimator{rateHz: rateHz, strideHz: 1.4, forwardMPS: 3.0}
}

// rotX builds a rotation of the given angle (radians) about the body x axis,
// the sagittal flexion axis.
func rotX(angle float64) Rotation {
	c, s := math.Cos(angle), math.Sin(angle)
	return Rotation{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

func (m *mockEstimator) EstimatePose(frame calib.Frame) (Frame, error) {
	t := float64(frame.Index) / m.rateHz
	phase := 2 * math.Pi * m.strideHz * t

	out := Frame{FrameIndex: frame.Index}
	for i := range out.JointRotations {
		out.JointRotations[i] = Identity()
	}

	// Legs swing in anti-phase; knees flex most during the swing phase.
	out.JointRotations[LHip] = rotX(0.6 * math.Sin(phase))
	out.JointRotations[RHip] = rotX(0.6 * math.Sin(phase+math.Pi))
	out.JointRotations[LKnee] = rotX(-0.5 * (1 - math.Cos(phase)))
	out.JointRotations[RKnee] = rotX(-0.5 * (1 - math.Cos(phase+math.Pi)))

	// Arms counter-swing, elbows held near 90 degrees with a small pump.
	out.JointRotations[LShoulder] = rotX(0.4 * math.Sin(phase+math.Pi))
	out.JointRotations[RShoulder] = rotX(0.4 * math.Sin(phase))
	out.JointRotations[LElbow] = rotX(-1.3 + 0.15*math.Sin(phase+math.Pi))
	out.JointRotations[RElbow] = rotX(-1.3 + 0.15*math.Sin(phase))

	// Slight constant forward lean through the spine.
	out.JointRotations[Spine1] = rotX(0.05)
	out.JointRotations[Spine2] = rotX(0.05)

	// Forward travel with vertical bob at twice the stride frequency.
	out.RootTranslation.Z = m.forwardMPS * t
	out.RootTranslation.Y = 0.95 + 0.03*math.Sin(2*phase)

	return out, nil
}
