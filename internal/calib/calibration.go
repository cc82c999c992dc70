// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calib implements the two-stage session calibration that maps raw
// device readings into the body-relative frame the pose model expects.
//
// Stage one (reference capture) derives smpl2imu, the rotation from the
// reference device's axes to the canonical body axes (x=left, y=up,
// z=forward), from a static 3-second hold. Stage two (T-pose capture)
// derives each device's mounting offset (device2bone) and static
// acceleration bias (accOffsets).
package calib

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/align"
)

var (
	// ErrInsufficientSamples is returned when a capture window holds fewer
	// samples than the configured rate requires. The state machine does not
	// advance; the operator repeats the step.
	ErrInsufficientSamples = errors.New("calib: capture window has insufficient samples")

	// ErrDegenerateOrientation is returned when the captured orientations
	// cancel out and no mean rotation can be derived.
	ErrDegenerateOrientation = errors.New("calib: degenerate orientation in capture window")

	// ErrWrongStage is returned when a capture is requested out of order.
	ErrWrongStage = errors.New("calib: capture requested in wrong stage")
)

// Stage is the calibration state machine position.
type Stage int

const (
	AwaitingReferenceCapture Stage = iota
	ReferenceCaptured
	AwaitingTPoseCapture
	Calibrated
)

func (s Stage) String() string {
	switch s {
	case AwaitingReferenceCapture:
		return "AwaitingReferenceCapture"
	case ReferenceCaptured:
		return "ReferenceCaptured"
	case AwaitingTPoseCapture:
		return "AwaitingTPoseCapture"
	case Calibrated:
		return "Calibrated"
	default:
		return "Unknown"
	}
}

// Config fixes the capture geometry.
type Config struct {
	// CaptureSeconds is the fixed capture window length (3 s).
	CaptureSeconds int
	// RateHz is the aligned frame rate feeding the capture; the window must
	// contain CaptureSeconds*RateHz samples or the capture fails.
	RateHz int
	// ReferenceDevice is the device held in the known orientation during
	// the reference capture.
	ReferenceDevice string
}

// DefaultConfig matches the pipeline's 3-second captures at 30 Hz.
func DefaultConfig(referenceDevice string) Config {
	return Config{CaptureSeconds: 3, RateHz: 30, ReferenceDevice: referenceDevice}
}

// Calibrator runs the two capture stages and produces the immutable State.
type Calibrator struct {
	mu       sync.Mutex
	cfg      Config
	stage    Stage
	smpl2imu *mat.Dense
}

// NewCalibrator starts a fresh calibration in AwaitingReferenceCapture.
func NewCalibrator(cfg Config) *Calibrator {
	return &Calibrator{cfg: cfg, stage: AwaitingReferenceCapture}
}

// Stage reports the current state machine position.
func (c *Calibrator) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Calibrator) expectedSamples() int {
	return c.cfg.CaptureSeconds * c.cfg.RateHz
}

// CaptureReference consumes the aligned frames of the reference capture
// window and computes smpl2imu. On success the stage advances through
// ReferenceCaptured to AwaitingTPoseCapture; on failure the stage is
// unchanged and the operator retries.
func (c *Calibrator) CaptureReference(frames []align.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != AwaitingReferenceCapture {
		return fmt.Errorf("%w: stage %s", ErrWrongStage, c.stage)
	}

	oris := make([]quat.Number, 0, len(frames))
	for _, f := range frames {
		if m, ok := f.PerDevice[c.cfg.ReferenceDevice]; ok {
			oris = append(oris, m.Orientation)
		}
	}
	if len(oris) < c.expectedSamples() {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, len(oris), c.expectedSamples())
	}

	meanQ, err := meanOrientation(oris)
	if err != nil {
		return err
	}
	// smpl2imu maps device axes onto body axes: the inverse (transpose) of
	// the device's observed rotation during the known-orientation hold.
	r := rotationMatrix(meanQ)
	c.smpl2imu = transpose(r)
	c.stage = AwaitingTPoseCapture
	return nil
}

// CaptureTPose consumes the aligned frames of the T-pose capture window and
// produces the final State covering every device present throughout the
// window. On failure the stage is unchanged.
func (c *Calibrator) CaptureTPose(frames []align.Frame) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != AwaitingTPoseCapture {
		return nil, fmt.Errorf("%w: stage %s", ErrWrongStage, c.stage)
	}

	oris := make(map[string][]quat.Number)
	accs := make(map[string][]r3.Vec)
	for _, f := range frames {
		for id, m := range f.PerDevice {
			oris[id] = append(oris[id], m.Orientation)
			accs[id] = append(accs[id], m.Acceleration)
		}
	}

	need := c.expectedSamples()
	state := &State{
		smpl2imu:    c.smpl2imu,
		device2bone: make(map[string]*mat.Dense),
		accOffsets:  make(map[string]r3.Vec),
	}
	for id, qs := range oris {
		if len(qs) < need {
			return nil, fmt.Errorf("%w: device %s got %d, need %d", ErrInsufficientSamples, id, len(qs), need)
		}
		meanQ, err := meanOrientation(qs)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", id, err)
		}
		// device2bone = (smpl2imu * R_tpose)^T: the rotation undoing the
		// device's mounting offset relative to its bone in the body frame.
		var aligned mat.Dense
		aligned.Mul(c.smpl2imu, rotationMatrix(meanQ))
		state.device2bone[id] = transpose(&aligned)

		// accOffsets = smpl2imu * mean(acc): static gravity/mounting bias
		// expressed in the body frame.
		state.accOffsets[id] = mulVec(c.smpl2imu, meanVec(accs[id]))
	}
	if len(state.device2bone) == 0 {
		return nil, fmt.Errorf("%w: no devices in capture window", ErrInsufficientSamples)
	}

	c.stage = Calibrated
	return state, nil
}

// meanOrientation averages quaternion components with sign alignment to the
// first sample, so antipodal representations do not cancel.
func meanOrientation(qs []quat.Number) (quat.Number, error) {
	var sum quat.Number
	ref := qs[0]
	for _, q := range qs {
		if ref.Real*q.Real+ref.Imag*q.Imag+ref.Jmag*q.Jmag+ref.Kmag*q.Kmag < 0 {
			q = quat.Scale(-1, q)
		}
		sum = quat.Add(sum, q)
	}
	n := quat.Abs(sum)
	if n < 1e-6 {
		return quat.Number{}, ErrDegenerateOrientation
	}
	return quat.Scale(1/n, sum), nil
}

func meanVec(vs []r3.Vec) r3.Vec {
	var sum r3.Vec
	for _, v := range vs {
		sum = r3.Add(sum, v)
	}
	return r3.Scale(1/float64(len(vs)), sum)
}
