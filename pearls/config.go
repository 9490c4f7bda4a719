package pearls

import (
	"fmt"
	"math"
)

// Config contains the estimator parameters. All fields are validated at
// construction; invalid values are rejected, never clamped.
type Config struct {
	// ForgettingFactor is the exponential decay rate lambda of the
	// recursive covariance estimate, strictly inside (0, 1).
	ForgettingFactor float64 `json:"forgetting_factor"`

	// SmoothingFactor is the regularizer xi of the RLS refinement. It
	// stabilizes each group inversion and anchors the new estimate to
	// the previous one.
	SmoothingFactor float64 `json:"smoothing_factor"`

	// MaxHarmonics is the number of harmonics H modeled per pitch
	// candidate (harmonic k sits at k times the fundamental).
	MaxHarmonics int `json:"max_harmonics"`

	// SampleRate is the sampling frequency in Hz.
	SampleRate float64 `json:"sample_rate"`

	// MinPitch and MaxPitch bound the fundamental-frequency search
	// interval in Hz; GridSpacing is the initial distance between
	// neighboring candidates.
	MinPitch    float64 `json:"min_pitch"`
	MaxPitch    float64 `json:"max_pitch"`
	GridSpacing float64 `json:"grid_spacing"`

	// PenaltyRate is the rate mu scaling the penalty parameters derived
	// from recent signal energy. The penalties and the gradient driving
	// the sparse solver are built from the same decayed correlation, so
	// mu sets the sparsity pressure directly and independently of input
	// amplitude. Useful values sit well below one, around 0.01-0.05;
	// near one the group threshold dominates the gradient gain from a
	// cold start and every candidate shrinks straight back to zero.
	PenaltyRate float64 `json:"penalty_rate"`

	// StepSize and GradientIterations control the proximal gradient
	// solver. The iteration count is fixed; there is no convergence
	// check, so results depend on it.
	StepSize           float64 `json:"step_size"`
	GradientIterations int     `json:"gradient_iterations"`

	// NormThreshold is the relative group-norm bar for active-set
	// pruning, strictly inside (0, 1).
	NormThreshold float64 `json:"norm_threshold"`

	// RLSWarmup is the number of samples that must elapse before the
	// RLS refinement starts running.
	RLSWarmup int `json:"rls_warmup"`

	// DictionaryInterval is the number of samples between frequency
	// grid refinement attempts.
	DictionaryInterval int `json:"dictionary_interval"`
}

// DefaultConfig returns the estimator configuration used for the
// reference recordings (44.1 kHz material, pitch range 50-500 Hz).
func DefaultConfig() *Config {
	return &Config{
		ForgettingFactor:   0.995,
		SmoothingFactor:    1e4,
		MaxHarmonics:       3,
		SampleRate:         44100,
		MinPitch:           50,
		MaxPitch:           500,
		GridSpacing:        50,
		PenaltyRate:        0.03,
		StepSize:           1e-4,
		GradientIterations: 20,
		NormThreshold:      0.01,
		RLSWarmup:          50,
		DictionaryInterval: 100,
	}
}

// Validate checks every configuration constraint
func (c *Config) Validate() error {
	if c.ForgettingFactor <= 0 || c.ForgettingFactor >= 1 {
		return fmt.Errorf("forgetting factor must be in (0, 1), got %v", c.ForgettingFactor)
	}
	if c.SmoothingFactor <= 0 {
		return fmt.Errorf("smoothing factor must be positive, got %v", c.SmoothingFactor)
	}
	if c.MaxHarmonics < 1 {
		return fmt.Errorf("max harmonics must be at least 1, got %d", c.MaxHarmonics)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %v", c.SampleRate)
	}
	if c.MinPitch <= 0 {
		return fmt.Errorf("min pitch must be positive, got %v", c.MinPitch)
	}
	if c.MaxPitch <= c.MinPitch {
		return fmt.Errorf("max pitch %v must exceed min pitch %v", c.MaxPitch, c.MinPitch)
	}
	if c.GridSpacing <= 0 {
		return fmt.Errorf("grid spacing must be positive, got %v", c.GridSpacing)
	}
	if c.PenaltyRate <= 0 {
		return fmt.Errorf("penalty rate must be positive, got %v", c.PenaltyRate)
	}
	if c.StepSize <= 0 {
		return fmt.Errorf("step size must be positive, got %v", c.StepSize)
	}
	if c.GradientIterations < 1 {
		return fmt.Errorf("gradient iterations must be at least 1, got %d", c.GradientIterations)
	}
	if c.NormThreshold <= 0 || c.NormThreshold >= 1 {
		return fmt.Errorf("norm threshold must be in (0, 1), got %v", c.NormThreshold)
	}
	if c.RLSWarmup < 0 {
		return fmt.Errorf("RLS warmup must be non-negative, got %d", c.RLSWarmup)
	}
	if c.DictionaryInterval < 1 {
		return fmt.Errorf("dictionary interval must be at least 1, got %d", c.DictionaryInterval)
	}
	return nil
}

// WindowLength returns the effective memory window Delta of a
// forgetting factor: the number of steps after which a sample's
// contribution to the decayed statistics has fallen below 1%.
func WindowLength(forgettingFactor float64) int {
	delta := int(math.Ceil(math.Log(0.01) / math.Log(forgettingFactor)))
	if delta < 1 {
		delta = 1
	}
	return delta
}
