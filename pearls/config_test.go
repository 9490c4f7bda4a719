package pearls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lambda zero", func(c *Config) { c.ForgettingFactor = 0 }},
		{"lambda one", func(c *Config) { c.ForgettingFactor = 1 }},
		{"lambda negative", func(c *Config) { c.ForgettingFactor = -0.5 }},
		{"xi zero", func(c *Config) { c.SmoothingFactor = 0 }},
		{"no harmonics", func(c *Config) { c.MaxHarmonics = 0 }},
		{"bad sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"bad min pitch", func(c *Config) { c.MinPitch = 0 }},
		{"inverted pitch bounds", func(c *Config) { c.MaxPitch = c.MinPitch }},
		{"bad spacing", func(c *Config) { c.GridSpacing = 0 }},
		{"bad penalty rate", func(c *Config) { c.PenaltyRate = 0 }},
		{"bad step size", func(c *Config) { c.StepSize = 0 }},
		{"no iterations", func(c *Config) { c.GradientIterations = 0 }},
		{"threshold zero", func(c *Config) { c.NormThreshold = 0 }},
		{"threshold one", func(c *Config) { c.NormThreshold = 1 }},
		{"negative warmup", func(c *Config) { c.RLSWarmup = -1 }},
		{"zero dictionary interval", func(c *Config) { c.DictionaryInterval = 0 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewEstimatorRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ForgettingFactor = 1.5
	_, err := NewEstimator(cfg)
	assert.Error(t, err)
}

func TestWindowLength(t *testing.T) {
	t.Parallel()

	// Delta never collapses below one sample.
	assert.GreaterOrEqual(t, WindowLength(0.001), 1)

	// Delta is non-decreasing as lambda approaches one.
	lambdas := []float64{0.5, 0.9, 0.95, 0.99, 0.995, 0.999, 0.9999}
	prev := 0
	for _, l := range lambdas {
		d := WindowLength(l)
		assert.GreaterOrEqual(t, d, prev, "lambda %v", l)
		prev = d
	}
}
