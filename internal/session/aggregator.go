// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"time"

	"github.com/relabs-tech/kinematic_computer/internal/kinematics"
)

// runningStat keeps an incremental mean/min/max without storing samples.
type runningStat struct {
	count int
	sum   float64
	min   float64
	max   float64
}

func (s *runningStat) add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.count++
	s.sum += v
}

func (s *runningStat) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// AngleStats is a session-average angle with its observed range.
type AngleStats struct {
	Angle float64 `json:"angle"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Side  string  `json:"side,omitempty"`
}

// SummaryAngles groups the per-metric session averages.
type SummaryAngles struct {
	FrontKnee  AngleStats `json:"frontKnee"`
	BackKnee   AngleStats `json:"backKnee"`
	Elbow      Pair       `json:"elbow"`
	Knee       Pair       `json:"knee"`
	BackToHead BackToHead `json:"backToHead"`
}

// Summary is the finalized end-of-session artifact. JointAngles is absent
// when no frames were processed.
type Summary struct {
	TotalFrames    int            `json:"totalFrames"`
	SessionEndTime time.Time      `json:"sessionEndTime"`
	JointAngles    *SummaryAngles `json:"jointAngles,omitempty"`
}

// Aggregator accumulates session averages incrementally, one frame at a
// time. It must be driven by a single writer; the owning Session serializes
// access.
type Aggregator struct {
	frames int

	frontKnee  runningStat
	backKnee   runningStat
	kneeLeft   runningStat
	kneeRight  runningStat
	elbowLeft  runningStat
	elbowRight runningStat
	headTilt   runningStat
	spineCurve runningStat

	frontLeft  int
	frontRight int

	finalized *Summary
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Frames returns the number of aggregated frames.
func (a *Aggregator) Frames() int { return a.frames }

// Add folds one frame of metrics into the running statistics. Adding after
// finalization is ignored.
func (a *Aggregator) Add(m kinematics.Metrics) {
	if a.finalized != nil {
		return
	}
	a.frames++
	a.frontKnee.add(m.FrontKnee)
	a.backKnee.add(m.BackKnee)
	a.kneeLeft.add(m.KneeLeft)
	a.kneeRight.add(m.KneeRight)
	a.elbowLeft.add(m.ElbowLeft)
	a.elbowRight.add(m.ElbowRight)
	a.headTilt.add(m.HeadTilt)
	a.spineCurve.add(m.SpineCurvature)
	if m.FrontLegSide == kinematics.Left {
		a.frontLeft++
	} else {
		a.frontRight++
	}
}

// Finalize freezes the aggregator into an immutable Summary. Idempotent:
// repeated calls return the same summary. A session with zero frames yields
// TotalFrames 0 and no joint angle block, never a division by zero.
func (a *Aggregator) Finalize(end time.Time) *Summary {
	if a.finalized != nil {
		return a.finalized
	}
	s := &Summary{TotalFrames: a.frames, SessionEndTime: end}
	if a.frames > 0 {
		frontSide, backSide := string(kinematics.Left), string(kinematics.Right)
		if a.frontRight > a.frontLeft {
			frontSide, backSide = backSide, frontSide
		}
		s.JointAngles = &SummaryAngles{
			FrontKnee: AngleStats{
				Angle: a.frontKnee.mean(), Min: a.frontKnee.min, Max: a.frontKnee.max, Side: frontSide,
			},
			BackKnee: AngleStats{
				Angle: a.backKnee.mean(), Min: a.backKnee.min, Max: a.backKnee.max, Side: backSide,
			},
			Elbow: Pair{
				Left:     a.elbowLeft.mean(),
				Right:    a.elbowRight.mean(),
				Symmetry: Symmetry(a.elbowLeft.mean(), a.elbowRight.mean()),
			},
			Knee: Pair{
				Left:     a.kneeLeft.mean(),
				Right:    a.kneeRight.mean(),
				Symmetry: Symmetry(a.kneeLeft.mean(), a.kneeRight.mean()),
			},
			BackToHead: BackToHead{
				Angle:          a.headTilt.mean(),
				SpineCurvature: a.spineCurve.mean(),
			},
		}
	}
	a.finalized = s
	return s
}
