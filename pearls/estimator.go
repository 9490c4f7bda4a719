// Package pearls implements online multi-pitch estimation with a
// sparsity-regularized adaptive filter. The estimator tracks, sample by
// sample, which fundamental frequencies from a candidate grid are
// present in a signal and the complex amplitude of each of their
// harmonics.
//
// References:
//   - Kronvall, T., Elvander, F., Adalbjörnsson, S.I., Jakobsson, A.
//     (2016). "An Adaptive Penalty Multi-Pitch Estimator with
//     Self-Regularization", Signal Processing
//   - Elvander, F. (2020). "Multi-Pitch Estimation" (thesis, Lund)
//
// Each sample runs a fixed stage cycle: slide the complex-exponential
// basis and fold the sample into the decayed covariance statistics,
// re-derive the sparsity penalties from recent signal energy, take a
// handful of proximal gradient steps on the group-sparse weight
// estimate, prune the active pitch set, refine the survivors'
// amplitudes by regularized least squares, and periodically nudge the
// frequency grid itself. The stage order is load-bearing: every stage
// reads state the previous stage just wrote, and the RLS cross terms
// assume the active set of this very sample.
package pearls

import (
	"fmt"

	"github.com/jmalvik/pearls/logging"
)

// Estimator is the full per-sample estimation pipeline. It is a single
// mutable state record: one instance covers one pass over one signal,
// strictly sequentially. Not safe for concurrent use.
type Estimator struct {
	cfg  Config
	dict *Dictionary

	cov     *covarianceState
	penalty *penaltyController
	solver  *sparseSolver
	active  *activeSet
	refiner *rlsRefiner
	updater *dictionaryUpdater

	w   []complex128 // sparse weight estimate
	rls []complex128 // refined estimate, zero outside the active set
	p1  float64
	p2  float64

	recent    []float64 // last delta samples, zero-padded on the left
	delta     int
	sampleIdx int

	logger logging.Logger
}

// NewEstimator builds an estimator over the uniform candidate grid
// described by the configuration.
func NewEstimator(cfg *Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	dict, err := NewDictionary(cfg.MinPitch, cfg.MaxPitch, cfg.GridSpacing, cfg.MaxHarmonics)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return newEstimator(cfg, dict)
}

// NewEstimatorWithDictionary builds an estimator over an explicit
// candidate grid, for callers that already know where to look. The
// dictionary's harmonic count overrides cfg.MaxHarmonics.
func NewEstimatorWithDictionary(cfg *Config, dict *Dictionary) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return newEstimator(cfg, dict)
}

func newEstimator(cfg *Config, dict *Dictionary) (*Estimator, error) {
	delta := WindowLength(cfg.ForgettingFactor)
	n := dict.NumCoefficients()

	logger := logging.WithFields(logging.Fields{
		"component":  "pearls",
		"pitches":    dict.NumPitches(),
		"harmonics":  dict.Harmonics(),
		"window_len": delta,
	})

	return &Estimator{
		cfg:     *cfg,
		dict:    dict,
		cov:     newCovarianceState(dict, cfg.ForgettingFactor, cfg.SampleRate, delta),
		penalty: newPenaltyController(cfg.PenaltyRate, cfg.ForgettingFactor, delta, n),
		solver:  newSparseSolver(cfg.StepSize, cfg.GradientIterations, n),
		active:  newActiveSet(dict.NumPitches()),
		refiner: newRLSRefiner(cfg.SmoothingFactor, dict.Harmonics(), n, logger),
		updater: newDictionaryUpdater(dict.NumPitches(), logger),
		w:       make([]complex128, n),
		rls:     make([]complex128, n),
		recent:  make([]float64, delta),
		delta:   delta,
		logger:  logger,
	}, nil
}

// Run processes a whole signal and returns the per-sample history
// bundle. The run is atomic: a mid-run numerical failure aborts with an
// error and no result. An estimator holds recursive state, so each run
// wants a fresh instance.
func (e *Estimator) Run(signal []float64) (*Result, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	e.logger.Debug("starting run", logging.Fields{"samples": len(signal)})

	res := newResult(len(signal), e.dict.NumCoefficients(), e.dict.NumPitches())
	// At most every grid entry moves on each refinement pass, and the
	// pass at sample 0 makes it passes+1.
	passes := len(signal)/e.cfg.DictionaryInterval + 1
	res.Refinements = make([]RefinedPitch, 0, passes*e.dict.NumPitches())
	for t, s := range signal {
		refined, err := e.step(s)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", t, err)
		}
		res.Refinements = append(res.Refinements, refined...)
		res.record(t, e.w, e.rls, e.dict, e.p1, e.p2)
	}

	e.logger.Debug("run complete", logging.Fields{
		"samples":     len(signal),
		"active":      len(e.active.indices),
		"refinements": len(res.Refinements),
	})
	return res, nil
}

// ProcessSample advances the estimator by one sample without recording
// history, for callers that stream samples and poll the accessors.
func (e *Estimator) ProcessSample(s float64) error {
	_, err := e.step(s)
	return err
}

// step runs the six pipeline stages for one sample, in their fixed
// order.
func (e *Estimator) step(s float64) ([]RefinedPitch, error) {
	// The first step must lay down the whole basis window; afterwards
	// it slides one row at a time. Grid refinement rebuilds its own
	// columns directly, so it never forces the full-recompute path.
	gridChanged := e.sampleIdx == 0

	copy(e.recent, e.recent[1:])
	e.recent[e.delta-1] = s

	if err := e.cov.advance(s, gridChanged); err != nil {
		return nil, err
	}

	e.p1, e.p2 = e.penalty.update(e.recent, e.cov.window)
	e.solver.solve(e.cov.R, e.cov.r, e.w, e.dict, e.p1, e.p2)
	e.active.prune(e.w, e.dict, e.cfg.NormThreshold)

	if e.sampleIdx > e.cfg.RLSWarmup {
		e.refiner.refine(e.cov.R, e.cov.r, e.rls, e.dict, e.active, e.sampleIdx)
	}

	var refined []RefinedPitch
	if e.sampleIdx%e.cfg.DictionaryInterval == 0 {
		refined = e.updater.maybeRefine(e.rls, e.dict, e.cov, e.sampleIdx)
	}

	e.sampleIdx++
	return refined, nil
}

// ActivePitches returns the indices of the pitch groups currently
// tagged present, ascending.
func (e *Estimator) ActivePitches() []int {
	out := make([]int, len(e.active.indices))
	copy(out, e.active.indices)
	return out
}

// Pitches returns the current candidate grid.
func (e *Estimator) Pitches() []float64 {
	return e.dict.Pitches()
}

// Weights returns a copy of the current sparse weight estimate.
func (e *Estimator) Weights() []complex128 {
	out := make([]complex128, len(e.w))
	copy(out, e.w)
	return out
}

// RLSEstimate returns a copy of the current refined estimate.
func (e *Estimator) RLSEstimate() []complex128 {
	out := make([]complex128, len(e.rls))
	copy(out, e.rls)
	return out
}

// Penalties returns the penalty parameters derived at the last sample.
func (e *Estimator) Penalties() (p1, p2 float64) {
	return e.p1, e.p2
}

// Delta returns the effective memory window length in samples.
func (e *Estimator) Delta() int {
	return e.delta
}
