package pearls

import (
	"github.com/jmalvik/pearls/algorithms/shrinkage"
)

// sparseSolver produces the structured-sparse weight estimate by a
// fixed number of proximal gradient iterations on the decayed
// least-squares criterion. There is deliberately no convergence check:
// the iteration count bounds the per-sample cost, and the warm start
// from the previous sample's weights carries convergence across
// samples. Each iteration takes a gradient step on the quadratic data
// term, shrinks individual coefficients (l1), then shrinks each
// harmonic group as a unit (group l2) so a pitch's harmonics vanish
// together.
type sparseSolver struct {
	stepSize   float64
	iterations int
	v          []complex128 // gradient-step scratch
}

func newSparseSolver(stepSize float64, iterations, numCoefficients int) *sparseSolver {
	return &sparseSolver{
		stepSize:   stepSize,
		iterations: iterations,
		v:          make([]complex128, numCoefficients),
	}
}

// solve runs the proximal iterations in place on w.
func (ss *sparseSolver) solve(R, r, w []complex128, dict *Dictionary, p1, p2 float64) {
	n := len(w)
	step := complex(ss.stepSize, 0)

	for iter := 0; iter < ss.iterations; iter++ {
		// v = w + step * (r - R*w)
		for i := 0; i < n; i++ {
			row := R[i*n : (i+1)*n]
			var rw complex128
			for j, wj := range w {
				if wj != 0 {
					rw += row[j] * wj
				}
			}
			ss.v[i] = w[i] + step*(r[i]-rw)
		}

		shrinkage.SoftL1(ss.v, ss.stepSize*p1)

		for p := 0; p < dict.NumPitches(); p++ {
			lo, hi := dict.GroupRange(p)
			group := ss.v[lo:hi]
			p2Local := shrinkage.GroupPenalty(group, p2)
			copy(w[lo:hi], group)
			shrinkage.SoftL2(w[lo:hi], ss.stepSize*p2Local)
		}
	}
}
