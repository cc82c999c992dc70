package align

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// nlerpThreshold is the cosine above which the two quaternions are close
// enough to co-linear that normalized linear interpolation is used instead
// of the trigonometric form, whose denominator degenerates.
const nlerpThreshold = 0.9995

// Slerp spherically interpolates between two unit quaternions along the
// shortest arc. The sign of q1 is chosen to minimize angular distance to q0
// before interpolating, so the result never flips rotation direction at the
// midpoint. f=0 returns q0, f=1 returns q1 (up to sign and normalization).
func Slerp(q0, q1 quat.Number, f float64) quat.Number {
	q0 = normalize(q0)
	q1 = normalize(q1)

	dot := q0.Real*q1.Real + q0.Imag*q1.Imag + q0.Jmag*q1.Jmag + q0.Kmag*q1.Kmag
	if dot < 0 {
		q1 = quat.Scale(-1, q1)
		dot = -dot
	}
	if dot > nlerpThreshold {
		mix := quat.Add(quat.Scale(1-f, q0), quat.Scale(f, q1))
		return normalize(mix)
	}

	theta := math.Acos(math.Min(dot, 1))
	sinTheta := math.Sin(theta)
	w0 := math.Sin((1-f)*theta) / sinTheta
	w1 := math.Sin(f*theta) / sinTheta
	return normalize(quat.Add(quat.Scale(w0, q0), quat.Scale(w1, q1)))
}

// normalize scales q to unit length. The identity rotation is returned for a
// zero quaternion so downstream math never sees NaN.
func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// AngularDistance returns the rotation angle in radians between two unit
// quaternions, insensitive to quaternion sign.
func AngularDistance(q0, q1 quat.Number) float64 {
	q0 = normalize(q0)
	q1 = normalize(q1)
	dot := q0.Real*q1.Real + q0.Imag*q1.Imag + q0.Jmag*q1.Jmag + q0.Kmag*q1.Kmag
	dot = math.Abs(dot)
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}
