package pearls

import (
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// penaltyController re-derives the sparsity penalties from the most
// recent signal window. The penalties scale with the decay-weighted
// correlation between the basis and the signal, so louder or more
// structured recent input raises the bar for a candidate to enter the
// active set.
type penaltyController struct {
	mu      float64
	delta   int
	weights []float64 // lambda^(delta-1-i), oldest to newest
	scratch []float64
}

func newPenaltyController(mu, lambda float64, delta, numCoefficients int) *penaltyController {
	weights := make([]float64, delta)
	w := 1.0
	for i := delta - 1; i >= 0; i-- {
		weights[i] = w
		w *= lambda
	}
	return &penaltyController{
		mu:      mu,
		delta:   delta,
		weights: weights,
		scratch: make([]float64, numCoefficients),
	}
}

// update computes eta = mu * ||(Lambda*A)^H s||_inf over the window and
// returns the penalty pair (p1, p2) = (0.1*eta, eta). signalWindow is
// the last delta samples, zero-padded on the left while fewer than
// delta samples have elapsed; basisWindow rows align with it.
func (pc *penaltyController) update(signalWindow []float64, basisWindow [][]complex128) (p1, p2 float64) {
	for j := range pc.scratch {
		var acc complex128
		for i, s := range signalWindow {
			if s == 0 {
				continue
			}
			acc += complex(pc.weights[i]*s, 0) * cmplx.Conj(basisWindow[i][j])
		}
		pc.scratch[j] = cmplx.Abs(acc)
	}

	eta := pc.mu * floats.Max(pc.scratch)
	return 0.1 * eta, 1.0 * eta
}
