package pearls

import "github.com/jmalvik/pearls/algorithms/shrinkage"

// activeSet tags each pitch group as present or absent. Membership is
// computed once per sample from the sparse weight estimate and consumed
// read-only by the RLS refiner and the dictionary updater.
type activeSet struct {
	flags   []bool
	indices []int     // active pitch indices, ascending
	norms   []float64 // per-group norms from the last prune
}

func newActiveSet(numPitches int) *activeSet {
	return &activeSet{
		flags:   make([]bool, numPitches),
		indices: make([]int, 0, numPitches),
		norms:   make([]float64, numPitches),
	}
}

// prune zeroes every group whose norm falls below threshold times the
// largest group norm and records the survivors. Pruning is idempotent:
// zeroed groups stay below any relative bar, so a second prune of the
// same vector changes nothing. When all norms are zero no group beats
// the bar and every group stays tagged active; downstream refinement of
// a zero system yields zero.
func (as *activeSet) prune(w []complex128, dict *Dictionary, threshold float64) {
	maxNorm := 0.0
	for p := range as.flags {
		lo, hi := dict.GroupRange(p)
		as.norms[p] = shrinkage.Norm(w[lo:hi])
		if as.norms[p] > maxNorm {
			maxNorm = as.norms[p]
		}
	}

	as.indices = as.indices[:0]
	for p := range as.flags {
		if as.norms[p] < threshold*maxNorm {
			as.flags[p] = false
			lo, hi := dict.GroupRange(p)
			for i := lo; i < hi; i++ {
				w[i] = 0
			}
		} else {
			as.flags[p] = true
			as.indices = append(as.indices, p)
		}
	}
}

// active reports whether pitch group p is tagged present.
func (as *activeSet) active(p int) bool {
	return as.flags[p]
}
