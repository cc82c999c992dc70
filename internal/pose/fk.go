// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// orthoTolerance is the maximum orthogonality residual (max |R^T R - I|
// entry) accepted before a rotation is re-orthonormalized.
const orthoTolerance = 1e-4

// Rotation is one joint's rotation parameter as emitted by the pose model:
// a row-major 3x3 matrix.
type Rotation [9]float64

// Identity returns the identity rotation.
func Identity() Rotation {
	return Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Frame is the pose model's output for one aligned frame.
type Frame struct {
	JointRotations  [JointCount]Rotation
	RootTranslation r3.Vec
	FrameIndex      int
}

// JointPositions computes the 24 global joint positions by composing each
// joint's local rotation and rest-pose offset down the hierarchy. The root's
// parent transform is the identity composed with the root translation.
//
// The computation is deterministic and closed-form; identical input always
// yields identical positions. The returned count reports how many rotations
// had drifted off SO(3) beyond tolerance and were re-orthonormalized, a
// quality signal the caller may log.
func (f Frame) JointPositions() (positions [JointCount]r3.Vec, reorthonormalized int) {
	var global [JointCount]Rotation
	for i := 0; i < JointCount; i++ {
		local := f.JointRotations[i]
		if local.orthogonalityResidual() > orthoTolerance {
			local = local.orthonormalized()
			reorthonormalized++
		}
		p := parents[i]
		if p < 0 {
			global[i] = local
			positions[i] = f.RootTranslation
			continue
		}
		global[i] = global[p].mul(local)
		positions[i] = r3.Add(positions[p], global[p].apply(restOffsets[i]))
	}
	return positions, reorthonormalized
}

func (r Rotation) mul(o Rotation) Rotation {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = r[i*3]*o[j] + r[i*3+1]*o[3+j] + r[i*3+2]*o[6+j]
		}
	}
	return out
}

func (r Rotation) apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// orthogonalityResidual returns the largest absolute deviation of R^T R from
// the identity.
func (r Rotation) orthogonalityResidual() float64 {
	residual := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// (R^T R)[i][j] = column i . column j
			dot := r[i]*r[j] + r[3+i]*r[3+j] + r[6+i]*r[6+j]
			want := 0.0
			if i == j {
				want = 1.0
			}
			if d := math.Abs(dot - want); d > residual {
				residual = d
			}
		}
	}
	return residual
}

// orthonormalized rebuilds the rotation row basis by Gram-Schmidt, restoring
// it onto SO(3). Accumulated floating error otherwise leaks into downstream
// dot products as values outside [-1, 1].
func (r Rotation) orthonormalized() Rotation {
	r0 := r3.Vec{X: r[0], Y: r[1], Z: r[2]}
	r1 := r3.Vec{X: r[3], Y: r[4], Z: r[5]}

	u0 := r3.Unit(r0)
	u1 := r3.Sub(r1, r3.Scale(r3.Dot(u0, r1), u0))
	u1 = r3.Unit(u1)
	u2 := r3.Cross(u0, u1)

	return Rotation{
		u0.X, u0.Y, u0.Z,
		u1.X, u1.Y, u1.Z,
		u2.X, u2.Y, u2.Z,
	}
}
