// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package kinematics derives running-form metrics from per-frame joint
// positions: knee and elbow angles, front/back leg classification, head
// tilt and spine curvature.
//
// Stride-phase (foot-strike) timing is deliberately not computed here:
// under IMU-only input it is too jittery to gate metrics on, so only
// whole-session aggregates are built downstream.
package kinematics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/pose"
)

// Side labels a leg.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// travelEpsilon is the minimum pelvis displacement magnitude accepted as a
// direction of travel; below it the knee-extension fallback is used.
const travelEpsilon = 1e-6

// Metrics are the per-frame kinematic features. Angles are in degrees.
type Metrics struct {
	FrameIndex int

	FrontKnee    float64
	BackKnee     float64
	FrontLegSide Side

	KneeLeft   float64
	KneeRight  float64
	ElbowLeft  float64
	ElbowRight float64

	// HeadTilt is the pelvis-to-head angle from vertical in the sagittal
	// plane; forward lean is positive.
	HeadTilt       float64
	SpineCurvature float64

	// FrontLegAmbiguous marks that the direction-of-travel classification
	// was unavailable or degenerate and the knee-extension fallback decided
	// the leg side. A confidence flag, not an error.
	FrontLegAmbiguous bool

	// ClampEvents counts dot products that had to be clamped into [-1, 1]
	// before acos. A numeric-quality signal.
	ClampEvents int

	// PelvisPosition feeds the next frame's direction-of-travel estimate.
	PelvisPosition r3.Vec
}

// Extractor computes Metrics frame by frame. Its only state is the previous
// pelvis position, kept for the direction-of-travel classification.
type Extractor struct {
	prevPelvis    r3.Vec
	havePrev      bool
	totalClamps   int
	totalFallback int
}

// NewExtractor returns an extractor with no pelvis history.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// TotalClampEvents reports the clamp count accumulated over the extractor's
// lifetime.
func (e *Extractor) TotalClampEvents() int { return e.totalClamps }

// TotalFallbacks reports how many frames used the knee-extension fallback.
func (e *Extractor) TotalFallbacks() int { return e.totalFallback }

// Extract computes the metrics for one frame of joint positions.
func (e *Extractor) Extract(joints [pose.JointCount]r3.Vec, frameIndex int) Metrics {
	m := Metrics{FrameIndex: frameIndex, PelvisPosition: joints[pose.Pelvis]}
	clamps := 0

	// Interior joint angles: vectors from the middle joint out to its
	// neighbours.
	m.KneeLeft = jointAngle(joints[pose.LHip], joints[pose.LKnee], joints[pose.LAnkle], &clamps)
	m.KneeRight = jointAngle(joints[pose.RHip], joints[pose.RKnee], joints[pose.RAnkle], &clamps)
	m.ElbowLeft = jointAngle(joints[pose.LShoulder], joints[pose.LElbow], joints[pose.LWrist], &clamps)
	m.ElbowRight = jointAngle(joints[pose.RShoulder], joints[pose.RElbow], joints[pose.RWrist], &clamps)

	m.FrontLegSide, m.FrontLegAmbiguous = e.classifyFrontLeg(joints, m.KneeLeft, m.KneeRight)
	if m.FrontLegSide == Left {
		m.FrontKnee, m.BackKnee = m.KneeLeft, m.KneeRight
	} else {
		m.FrontKnee, m.BackKnee = m.KneeRight, m.KneeLeft
	}

	m.HeadTilt = headTilt(joints[pose.Pelvis], joints[pose.Head])

	// Spine curvature: deviation between the lower and upper spine segments.
	m.SpineCurvature = vectorAngle(
		r3.Sub(joints[pose.Spine3], joints[pose.Pelvis]),
		r3.Sub(joints[pose.Head], joints[pose.Spine3]),
		&clamps,
	)

	m.ClampEvents = clamps
	e.totalClamps += clamps
	if m.FrontLegAmbiguous {
		e.totalFallback++
	}

	e.prevPelvis = joints[pose.Pelvis]
	e.havePrev = true
	return m
}

// classifyFrontLeg projects both feet onto the direction of travel derived
// from pelvis displacement; the more forward foot marks the front leg. With
// no usable displacement it falls back to knee extension: the straighter
// knee is front, ties go to the left leg.
func (e *Extractor) classifyFrontLeg(joints [pose.JointCount]r3.Vec, kneeLeft, kneeRight float64) (Side, bool) {
	if e.havePrev {
		travel := r3.Sub(joints[pose.Pelvis], e.prevPelvis)
		if r3.Norm(travel) >= travelEpsilon {
			dir := r3.Unit(travel)
			lProj := r3.Dot(r3.Sub(joints[pose.LFoot], joints[pose.Pelvis]), dir)
			rProj := r3.Dot(r3.Sub(joints[pose.RFoot], joints[pose.Pelvis]), dir)
			if lProj > rProj {
				return Left, false
			}
			return Right, false
		}
	}
	if kneeLeft >= kneeRight {
		return Left, true
	}
	return Right, true
}

// jointAngle returns the interior angle at b in the a-b-c triple, in
// degrees. The normalized dot product is clamped into [-1, 1] before acos so
// near-(anti)parallel segments never produce NaN.
func jointAngle(a, b, c r3.Vec, clamps *int) float64 {
	return vectorAngle(r3.Sub(a, b), r3.Sub(c, b), clamps)
}

// vectorAngle returns the angle between two vectors in degrees.
func vectorAngle(u, w r3.Vec, clamps *int) float64 {
	nu := r3.Norm(u)
	nw := r3.Norm(w)
	if nu == 0 || nw == 0 {
		return 0
	}
	dot := r3.Dot(u, w) / (nu * nw)
	if dot > 1 {
		dot = 1
		*clamps++
	} else if dot < -1 {
		dot = -1
		*clamps++
	}
	return math.Acos(dot) * 180 / math.Pi
}

// headTilt projects the pelvis-to-head vector onto the sagittal plane (up
// and forward axes) and measures its signed angle from vertical; forward
// lean is positive. Clamped to [-90, 90].
func headTilt(pelvis, head r3.Vec) float64 {
	v := r3.Sub(head, pelvis)
	if math.Abs(v.Y) < 1e-9 && math.Abs(v.Z) < 1e-9 {
		return 0
	}
	deg := math.Atan2(v.Z, v.Y) * 180 / math.Pi
	if deg > 90 {
		deg = 90
	} else if deg < -90 {
		deg = -90
	}
	return deg
}
