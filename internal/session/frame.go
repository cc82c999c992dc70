package session

import (
	"math"

	"github.com/relabs-tech/kinematic_computer/internal/kinematics"
)

// AngleSide is an angle labelled with the leg it belongs to.
type AngleSide struct {
	Angle float64 `json:"angle"`
	Side  string  `json:"side"`
}

// BackToHead carries the posture metrics.
type BackToHead struct {
	Angle          float64 `json:"angle"`
	SpineCurvature float64 `json:"spineCurvature"`
}

// Pair is a left/right measurement with its symmetry score.
type Pair struct {
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Symmetry int     `json:"symmetry"`
}

// Frame is the outbound live frame consumed by the display layer.
type Frame struct {
	FrontKnee       AngleSide  `json:"frontKnee"`
	BackKnee        AngleSide  `json:"backKnee"`
	BackToHead      BackToHead `json:"backToHead"`
	Elbow           Pair       `json:"elbow"`
	Knee            Pair       `json:"knee"`
	OverallSymmetry int        `json:"overallSymmetry"`
	AsymmetryScore  float64    `json:"asymmetryScore"`

	// Ambiguous marks frames whose front/back classification came from the
	// knee-extension fallback.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// Source is either a live metrics frame or a finalized session average; each
// variant converts into the one outbound Frame shape the display expects.
type Source interface {
	OutboundFrame() Frame
}

// Live wraps per-frame extractor output as a Source.
type Live kinematics.Metrics

// OutboundFrame converts live metrics into the outbound shape.
func (l Live) OutboundFrame() Frame {
	kneeSym := Symmetry(l.KneeLeft, l.KneeRight)
	elbowSym := Symmetry(l.ElbowLeft, l.ElbowRight)
	return Frame{
		FrontKnee:       AngleSide{Angle: l.FrontKnee, Side: string(l.FrontLegSide)},
		BackKnee:        AngleSide{Angle: l.BackKnee, Side: string(otherSide(l.FrontLegSide))},
		BackToHead:      BackToHead{Angle: l.HeadTilt, SpineCurvature: l.SpineCurvature},
		Elbow:           Pair{Left: l.ElbowLeft, Right: l.ElbowRight, Symmetry: elbowSym},
		Knee:            Pair{Left: l.KneeLeft, Right: l.KneeRight, Symmetry: kneeSym},
		OverallSymmetry: overallSymmetry(kneeSym, elbowSym),
		AsymmetryScore:  asymmetryScore(l.KneeLeft, l.KneeRight, l.ElbowLeft, l.ElbowRight),
		Ambiguous:       l.FrontLegAmbiguous,
	}
}

// Average wraps a finalized summary as a Source, so a finished session can
// feed the same display path as a live one.
type Average Summary

// OutboundFrame converts session averages into the outbound shape. An empty
// session yields the zero frame.
func (a Average) OutboundFrame() Frame {
	if a.JointAngles == nil {
		return Frame{}
	}
	ja := a.JointAngles
	return Frame{
		FrontKnee:       AngleSide{Angle: ja.FrontKnee.Angle, Side: ja.FrontKnee.Side},
		BackKnee:        AngleSide{Angle: ja.BackKnee.Angle, Side: ja.BackKnee.Side},
		BackToHead:      ja.BackToHead,
		Elbow:           ja.Elbow,
		Knee:            ja.Knee,
		OverallSymmetry: overallSymmetry(ja.Knee.Symmetry, ja.Elbow.Symmetry),
		AsymmetryScore: asymmetryScore(
			ja.Knee.Left, ja.Knee.Right, ja.Elbow.Left, ja.Elbow.Right),
	}
}

func otherSide(s kinematics.Side) kinematics.Side {
	if s == kinematics.Left {
		return kinematics.Right
	}
	return kinematics.Left
}

// overallSymmetry averages the per-pair symmetry scores.
func overallSymmetry(kneeSym, elbowSym int) int {
	return int(math.Round(float64(kneeSym+elbowSym) / 2))
}

// asymmetryScore is the mean absolute left/right difference in degrees
// across the knee and elbow pairs.
func asymmetryScore(kneeL, kneeR, elbowL, elbowR float64) float64 {
	return (math.Abs(kneeL-kneeR) + math.Abs(elbowL-elbowR)) / 2
}
