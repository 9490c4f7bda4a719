package shrinkage

import (
	"math"
	"math/cmplx"
)

// Soft-threshold (proximal) operators for complex-valued sparse
// regression. SoftL1 is the proximal map of the elementwise l1 penalty,
// SoftL2 the proximal map of the group l2 penalty; both preserve the
// direction of their input and shrink only the magnitude.
//
// References:
// - Kronvall, T., Elvander, F., Adalbjörnsson, S.I., Jakobsson, A. (2016).
//   "An Adaptive Penalty Multi-Pitch Estimator with Self-Regularization"
// - Parikh, N., Boyd, S. (2014). "Proximal Algorithms"

const (
	// divisionGuard keeps the shrink ratio finite when the residual
	// magnitude and threshold are both zero.
	divisionGuard = 1e-10

	// fundamentalFloor guards the reciprocal in GroupPenalty against a
	// vanishing fundamental coefficient.
	fundamentalFloor = 1e-5

	// Bounds for the adaptive group penalty multiplier.
	minPenaltyBoost = 1.0
	maxPenaltyBoost = 1000.0
)

// SoftL1 applies the elementwise complex soft-threshold operator with
// threshold alpha to dst in place: each coefficient keeps its phase and
// its magnitude shrinks by alpha, clipping at zero.
func SoftL1(dst []complex128, alpha float64) {
	for i, x := range dst {
		m := math.Max(cmplx.Abs(x)-alpha, 0)
		dst[i] = complex(m/(m+alpha+divisionGuard), 0) * x
	}
}

// SoftL2 applies the group soft-threshold operator with threshold alpha
// to dst in place: the Euclidean norm of the whole group shrinks by
// alpha, so all coefficients of the group vanish together once the
// group norm drops below the threshold.
func SoftL2(dst []complex128, alpha float64) {
	m := math.Max(Norm(dst)-alpha, 0)
	scale := complex(m/(m+alpha+divisionGuard), 0)
	for i := range dst {
		dst[i] *= scale
	}
}

// GroupPenalty scales the group penalty p2 for one pitch group by the
// reciprocal magnitude of its fundamental coefficient, clamped to
// [1, 1000]. A weak fundamental earns a stronger penalty, which keeps
// sub-octave candidates from surviving on upper harmonics alone.
func GroupPenalty(group []complex128, p2 float64) float64 {
	if len(group) == 0 {
		return p2
	}
	boost := 1.0 / (cmplx.Abs(group[0]) + fundamentalFloor)
	return p2 * math.Max(minPenaltyBoost, math.Min(maxPenaltyBoost, boost))
}

// Norm returns the Euclidean norm of a complex vector.
func Norm(v []complex128) float64 {
	sum := 0.0
	for _, x := range v {
		sum += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(sum)
}
