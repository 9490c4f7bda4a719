package pearls

import (
	"fmt"
	"math"
	"math/cmplx"
)

// covarianceState holds the sliding window of complex exponentials and
// the exponentially decayed sufficient statistics of the signal
// projected onto it:
//
//	R <- lambda*R + a*a^H
//	r <- lambda*r + s*conj(a)
//
// where a is the basis row for the current sample. R and r are the only
// persistent statistics; the window exists for the penalty update and
// for cheap single-row advancement.
type covarianceState struct {
	dict   *Dictionary
	lambda float64
	fs     float64
	delta  int

	// window rows are ordered oldest to newest; row j corresponds to
	// sample index sampleIdx-delta+1+j.
	window [][]complex128

	n int          // coefficient count P*H
	R []complex128 // n x n, row-major, Hermitian
	r []complex128 // length n

	sampleIdx int // index of the newest sample in the window
}

func newCovarianceState(dict *Dictionary, lambda, fs float64, delta int) *covarianceState {
	n := dict.NumCoefficients()
	window := make([][]complex128, delta)
	rows := make([]complex128, delta*n)
	for j := range window {
		window[j] = rows[j*n : (j+1)*n]
	}
	return &covarianceState{
		dict:      dict,
		lambda:    lambda,
		fs:        fs,
		delta:     delta,
		window:    window,
		n:         n,
		R:         make([]complex128, n*n),
		r:         make([]complex128, n),
		sampleIdx: -1,
	}
}

// basisValue is the complex exponential of coefficient j at sample
// index k. Indices before the signal start are legal; the penalty
// update zero-pads the matching signal positions.
func (cs *covarianceState) basisValue(j, k int) complex128 {
	p := j / cs.dict.Harmonics()
	h := j % cs.dict.Harmonics()
	f := cs.dict.HarmonicFrequency(p, h)
	return cmplx.Exp(complex(0, 2*math.Pi*f*float64(k)/cs.fs))
}

// advance slides the window to the next sample and folds the sample
// into R and r. When the frequency grid changed since the previous
// step, the whole window is recomputed against the new grid; R and r
// are never reset, so past contributions decay onto the new basis.
func (cs *covarianceState) advance(sample float64, gridChanged bool) error {
	cs.sampleIdx++

	if gridChanged {
		cs.recomputeWindow()
	} else {
		// Recycle the oldest row as the newest.
		row := cs.window[0]
		copy(cs.window, cs.window[1:])
		cs.window[cs.delta-1] = row
		for j := 0; j < cs.n; j++ {
			row[j] = cs.basisValue(j, cs.sampleIdx)
		}
	}

	a := cs.window[cs.delta-1]
	lambda := complex(cs.lambda, 0)
	s := complex(sample, 0)
	for i := 0; i < cs.n; i++ {
		ai := a[i]
		row := cs.R[i*cs.n : (i+1)*cs.n]
		for j := 0; j < cs.n; j++ {
			row[j] = lambda*row[j] + ai*cmplx.Conj(a[j])
		}
		cs.r[i] = lambda*cs.r[i] + s*cmplx.Conj(a[i])
	}

	cs.symmetrize()
	return cs.checkFinite()
}

// recomputeWindow rebuilds every row of the basis window from the
// current grid, oldest sample first.
func (cs *covarianceState) recomputeWindow() {
	for j, row := range cs.window {
		k := cs.sampleIdx - cs.delta + 1 + j
		for c := range row {
			row[c] = cs.basisValue(c, k)
		}
	}
}

// rebuildPitchColumns recomputes only the window columns of candidate
// p's harmonic group, leaving the rest of the window and all
// accumulated statistics untouched. The dictionary updater uses this
// after moving a single grid entry.
func (cs *covarianceState) rebuildPitchColumns(p int) {
	lo, hi := cs.dict.GroupRange(p)
	for j, row := range cs.window {
		k := cs.sampleIdx - cs.delta + 1 + j
		for c := lo; c < hi; c++ {
			row[c] = cs.basisValue(c, k)
		}
	}
}

// symmetrize restores exact Hermitian symmetry, R = (R + R^H)/2.
// The rank-1 update is Hermitian in exact arithmetic but floating
// error accumulates over long runs.
func (cs *covarianceState) symmetrize() {
	for i := 0; i < cs.n; i++ {
		cs.R[i*cs.n+i] = complex(real(cs.R[i*cs.n+i]), 0)
		for j := i + 1; j < cs.n; j++ {
			avg := (cs.R[i*cs.n+j] + cmplx.Conj(cs.R[j*cs.n+i])) / 2
			cs.R[i*cs.n+j] = avg
			cs.R[j*cs.n+i] = cmplx.Conj(avg)
		}
	}
}

// checkFinite halts the run on NaN/Inf in the recursive statistics.
// A corrupted R or r would silently poison every subsequent sample.
func (cs *covarianceState) checkFinite() error {
	for i := 0; i < cs.n; i++ {
		if cmplx.IsNaN(cs.r[i]) || cmplx.IsInf(cs.r[i]) {
			return fmt.Errorf("non-finite cross-correlation at coefficient %d", i)
		}
		d := cs.R[i*cs.n+i]
		if cmplx.IsNaN(d) || cmplx.IsInf(d) {
			return fmt.Errorf("non-finite covariance diagonal at coefficient %d", i)
		}
	}
	return nil
}
