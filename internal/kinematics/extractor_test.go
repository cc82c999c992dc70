// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/pose"
)

// restJoints returns the joint positions of the neutral standing pose.
func restJoints() [pose.JointCount]r3.Vec {
	var f pose.Frame
	for i := range f.JointRotations {
		f.JointRotations[i] = pose.Identity()
	}
	f.RootTranslation = r3.Vec{Y: 1}
	positions, _ := f.JointPositions()
	return positions
}

func TestExtract_RestPoseIsNeutral(t *testing.T) {
	e := NewExtractor()
	m := e.Extract(restJoints(), 0)

	assert.InDelta(t, 180, m.KneeLeft, 1e-9)
	assert.InDelta(t, 180, m.KneeRight, 1e-9)
	assert.InDelta(t, 180, m.ElbowLeft, 1e-9)
	assert.InDelta(t, 180, m.ElbowRight, 1e-9)
	assert.InDelta(t, 0, m.HeadTilt, 1e-9)
	assert.InDelta(t, 0, m.SpineCurvature, 1e-9)

	// No pelvis history and equal knees: the fallback picks the left leg and
	// flags the frame.
	assert.Equal(t, Left, m.FrontLegSide)
	assert.True(t, m.FrontLegAmbiguous)
}

func TestExtract_NinetyDegreeKnee(t *testing.T) {
	joints := restJoints()
	// Bend the left ankle chain so hip-knee-ankle form a right angle.
	joints[pose.LAnkle] = r3.Add(joints[pose.LKnee], r3.Vec{Z: 0.45})

	e := NewExtractor()
	m := e.Extract(joints, 0)

	assert.InDelta(t, 90, m.KneeLeft, 0.01)
	assert.InDelta(t, 180, m.KneeRight, 0.01)
}

func TestExtract_FrontLegFromDirectionOfTravel(t *testing.T) {
	e := NewExtractor()

	first := restJoints()
	e.Extract(first, 0)

	// Move the body forward and stride the right foot ahead of the pelvis.
	second := restJoints()
	for i := range second {
		second[i] = r3.Add(second[i], r3.Vec{Z: 0.1})
	}
	second[pose.RFoot] = r3.Add(second[pose.RFoot], r3.Vec{Z: 0.4})

	m := e.Extract(second, 1)
	assert.Equal(t, Right, m.FrontLegSide)
	assert.False(t, m.FrontLegAmbiguous)
	assert.Equal(t, m.KneeRight, m.FrontKnee)
	assert.Equal(t, m.KneeLeft, m.BackKnee)
}

func TestExtract_StationaryPelvisFallsBackToKneeExtension(t *testing.T) {
	e := NewExtractor()

	joints := restJoints()
	e.Extract(joints, 0)

	// Same pelvis position: no direction of travel. The straighter knee is
	// classified as front.
	bent := joints
	bent[pose.LAnkle] = r3.Add(bent[pose.LKnee], r3.Vec{Z: 0.45})

	m := e.Extract(bent, 1)
	assert.Equal(t, Right, m.FrontLegSide, "right knee is straighter")
	assert.True(t, m.FrontLegAmbiguous)
	assert.Equal(t, 2, e.TotalFallbacks(), "both frames lacked a direction of travel")
}

func TestExtract_FallbackTieGoesLeft(t *testing.T) {
	e := NewExtractor()
	m := e.Extract(restJoints(), 0)

	assert.Equal(t, Left, m.FrontLegSide)
	assert.True(t, m.FrontLegAmbiguous)
}

func TestExtract_HeadTiltSignConvention(t *testing.T) {
	// Forward lean (head ahead of pelvis) is positive.
	forward := restJoints()
	forward[pose.Head] = r3.Add(forward[pose.Pelvis], r3.Vec{Y: 1, Z: 1})

	e := NewExtractor()
	m := e.Extract(forward, 0)
	assert.InDelta(t, 45, m.HeadTilt, 1e-9)

	backward := restJoints()
	backward[pose.Head] = r3.Add(backward[pose.Pelvis], r3.Vec{Y: 1, Z: -1})
	m = NewExtractor().Extract(backward, 0)
	assert.InDelta(t, -45, m.HeadTilt, 1e-9)
}

func TestExtract_HeadTiltClampedToNinety(t *testing.T) {
	// Head below and behind the pelvis projects past the clamp range.
	joints := restJoints()
	joints[pose.Head] = r3.Add(joints[pose.Pelvis], r3.Vec{Y: -0.1, Z: 0.5})

	m := NewExtractor().Extract(joints, 0)
	assert.InDelta(t, 90, m.HeadTilt, 1e-9)
}

func TestExtract_DegenerateSegmentsProduceNoNaN(t *testing.T) {
	// Collapse the whole left arm to a single point.
	joints := restJoints()
	joints[pose.LElbow] = joints[pose.LShoulder]
	joints[pose.LWrist] = joints[pose.LShoulder]

	m := NewExtractor().Extract(joints, 0)
	assert.False(t, math.IsNaN(m.ElbowLeft))
	assert.Equal(t, 0.0, m.ElbowLeft)
	assert.False(t, math.IsNaN(m.SpineCurvature))
}
