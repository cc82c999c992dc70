// Package session turns per-frame kinematic metrics into left/right symmetry
// scores, a bounded live display buffer, running session statistics and the
// finalized end-of-session summary.
package session

import "math"

// Symmetry scores how alike a left/right measurement pair is, as an integer
// percentage in [0, 100]:
//
//	max(0, 100 - |l-r| / ((l+r)/2) * 100)
//
// The score truncates to an integer, so 87.5 reports as 87. Two zero
// measurements are trivially symmetric, so (l+r) == 0 scores 100 rather than
// dividing by zero. Symmetric under swapped arguments by construction.
func Symmetry(l, r float64) int {
	if l+r == 0 {
		return 100
	}
	avg := (l + r) / 2
	score := 100 - math.Abs(l-r)/avg*100
	if score < 0 {
		return 0
	}
	return int(score)
}
