package calib

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/align"
)

// State is the fixed calibration produced once per session. It is immutable
// after creation and applied functionally to every aligned frame, so it is
// safe to share across all frame-processing work of a session.
type State struct {
	smpl2imu    *mat.Dense
	device2bone map[string]*mat.Dense
	accOffsets  map[string]r3.Vec
}

// Devices returns the IDs covered by this calibration.
func (s *State) Devices() []string {
	ids := make([]string, 0, len(s.device2bone))
	for id := range s.device2bone {
		ids = append(ids, id)
	}
	return ids
}

// Measurement is one device's calibrated reading: acceleration in the body
// frame with static bias removed, orientation as a body-frame rotation
// matrix ready for the pose model.
type Measurement struct {
	Acceleration r3.Vec
	Orientation  *mat.Dense
}

// Frame is a calibrated aligned frame.
type Frame struct {
	Index     int
	Seconds   float64
	PerDevice map[string]Measurement
}

// Apply transforms one aligned frame into the body-relative frame:
//
//	acc' = smpl2imu*acc - accOffsets
//	R'   = smpl2imu * R_raw * device2bone
//
// Devices without a calibration entry are omitted. Apply is a pure function
// of the frame, independent of frame ordering.
func (s *State) Apply(f align.Frame) Frame {
	out := Frame{
		Index:     f.Index,
		Seconds:   f.Seconds,
		PerDevice: make(map[string]Measurement, len(f.PerDevice)),
	}
	for id, m := range f.PerDevice {
		d2b, ok := s.device2bone[id]
		if !ok {
			continue
		}
		acc := r3.Sub(mulVec(s.smpl2imu, m.Acceleration), s.accOffsets[id])

		var body mat.Dense
		body.Mul(s.smpl2imu, rotationMatrix(m.Orientation))
		var ori mat.Dense
		ori.Mul(&body, d2b)

		out.PerDevice[id] = Measurement{Acceleration: acc, Orientation: &ori}
	}
	return out
}

// rotationMatrix converts a unit quaternion to its 3x3 rotation matrix.
func rotationMatrix(q quat.Number) *mat.Dense {
	n := quat.Abs(q)
	if n == 0 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	q = quat.Scale(1/n, q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

func transpose(m *mat.Dense) *mat.Dense {
	var t mat.Dense
	t.CloneFrom(m.T())
	return &t
}

func mulVec(m *mat.Dense, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
