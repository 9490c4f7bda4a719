package pearls

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jmalvik/pearls/logging"
)

// rlsRefiner recomputes amplitude/phase estimates for the active pitch
// groups by regularized least squares, one group at a time. The cross
// term between groups always uses the snapshot of the previous full
// estimate, never this sample's partial updates (Jacobi, not
// Gauss-Seidel); the per-group systems are H x H complex systems
// lowered to their 2H x 2H real embedding so gonum's dense solvers
// apply, with an SVD pseudo-inverse fallback when a system is
// near-singular.
type rlsRefiner struct {
	xi     float64
	h      int
	logger logging.Logger

	prev    []complex128
	rp      []complex128
	indices []int // scratch for the flat active coefficient set
}

// rcond bounds the singular values accepted by the pseudo-inverse
// fallback, relative to the largest.
const rlsRankTolerance = 1e-12

func newRLSRefiner(xi float64, harmonics, numCoefficients int, logger logging.Logger) *rlsRefiner {
	return &rlsRefiner{
		xi:      xi,
		h:       harmonics,
		logger:  logger,
		prev:    make([]complex128, numCoefficients),
		rp:      make([]complex128, harmonics),
		indices: make([]int, 0, numCoefficients),
	}
}

// refine updates rls in place from the decayed statistics and the
// current active set. Non-active groups are forced to exact zero.
func (rr *rlsRefiner) refine(R, r, rls []complex128, dict *Dictionary, active *activeSet, sampleIdx int) {
	n := len(rls)
	copy(rr.prev, rls)

	// Flat coefficient indices of all active groups, ascending.
	rr.indices = rr.indices[:0]
	for _, p := range active.indices {
		lo, hi := dict.GroupRange(p)
		for i := lo; i < hi; i++ {
			rr.indices = append(rr.indices, i)
		}
	}

	xi := complex(rr.xi, 0)
	for _, p := range active.indices {
		lo, hi := dict.GroupRange(p)

		// rp = r[gp] - R[gp, qp] * prev[qp], qp = active minus gp
		for i := lo; i < hi; i++ {
			row := R[i*n : (i+1)*n]
			acc := r[i]
			for _, q := range rr.indices {
				if q >= lo && q < hi {
					continue
				}
				acc -= row[q] * rr.prev[q]
			}
			rr.rp[i-lo] = acc
		}

		rr.solveGroup(R, rls, lo, hi, n, xi, p, sampleIdx)
	}

	for p := 0; p < dict.NumPitches(); p++ {
		if !active.active(p) {
			lo, hi := dict.GroupRange(p)
			for i := lo; i < hi; i++ {
				rls[i] = 0
			}
		}
	}
}

// solveGroup solves (R[gp,gp] + xi*I) z = rp + xi*prev[gp] for one
// group and writes z into rls[lo:hi].
func (rr *rlsRefiner) solveGroup(R, rls []complex128, lo, hi, n int, xi complex128, p, sampleIdx int) {
	h := hi - lo
	m := 2 * h

	// Real embedding: X+iY becomes [[X, -Y], [Y, X]] acting on
	// stacked (real, imag) coordinates.
	a := mat.NewDense(m, m, nil)
	b := mat.NewVecDense(m, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < h; j++ {
			v := R[(lo+i)*n+(lo+j)]
			if i == j {
				v += xi
			}
			a.Set(i, j, real(v))
			a.Set(i, h+j, -imag(v))
			a.Set(h+i, j, imag(v))
			a.Set(h+i, h+j, real(v))
		}
		rhs := rr.rp[i] + xi*rr.prev[lo+i]
		b.SetVec(i, real(rhs))
		b.SetVec(h+i, imag(rhs))
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		// Near-singular group system: continue the run on the
		// pseudo-inverse solution.
		rr.logger.Warn("near-singular RLS system, using pseudo-inverse", logging.Fields{
			"sample": sampleIdx,
			"pitch":  p,
		})

		var svd mat.SVD
		if !svd.Factorize(a, mat.SVDThin) {
			rr.logger.Warn("SVD fallback failed, keeping previous estimate", logging.Fields{
				"sample": sampleIdx,
				"pitch":  p,
			})
			copy(rls[lo:hi], rr.prev[lo:hi])
			return
		}
		rank := svd.Rank(rlsRankTolerance)
		if rank == 0 {
			for i := lo; i < hi; i++ {
				rls[i] = 0
			}
			return
		}
		svd.SolveVecTo(&x, b, rank)
	}

	for i := 0; i < h; i++ {
		rls[lo+i] = complex(x.AtVec(i), x.AtVec(h+i))
	}
}
