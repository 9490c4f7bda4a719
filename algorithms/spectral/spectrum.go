package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum computes magnitude spectra for quick signal inspection.
type Spectrum struct {
	sampleRate float64
}

// NewSpectrum creates a spectrum analyzer for the given sampling rate
func NewSpectrum(sampleRate float64) *Spectrum {
	return &Spectrum{sampleRate: sampleRate}
}

// Magnitude computes the one-sided magnitude spectrum of x using
// mjibson/go-dsp. Any input length works, including non-power-of-2.
func (s *Spectrum) Magnitude(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	bins := fft.FFTReal(x)
	half := len(bins)/2 + 1
	mags := make([]float64, half)
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(bins[i])
	}
	return mags
}

// DominantFrequency returns the frequency and magnitude of the largest
// one-sided spectral bin above DC.
func (s *Spectrum) DominantFrequency(x []float64) (freq, magnitude float64) {
	mags := s.Magnitude(x)
	if len(mags) < 2 {
		return 0, 0
	}

	best := 1
	for i := 2; i < len(mags); i++ {
		if mags[i] > mags[best] {
			best = i
		}
	}
	return s.BinFrequency(best, len(x)), mags[best]
}

// BinFrequency converts an FFT bin index to Hz for a transform of the
// given window size.
func (s *Spectrum) BinFrequency(bin, windowSize int) float64 {
	if windowSize == 0 {
		return 0
	}
	return float64(bin) * s.sampleRate / float64(windowSize)
}
