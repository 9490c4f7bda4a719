package pearls

import "fmt"

// Dictionary owns the pitch-candidate grid and its harmonic expansion.
// Each of the P candidates expands into H harmonic frequencies, giving
// a flat coefficient space of P*H entries partitioned into P contiguous
// groups of H. The dictionary is the only component that changes
// frequency values, and only between sample-processing steps.
type Dictionary struct {
	pitches   []float64
	harmonics int
	minPitch  float64
	maxPitch  float64
}

// NewDictionary builds a uniformly spaced candidate grid over
// [minPitch, maxPitch] with the given spacing and harmonic count.
func NewDictionary(minPitch, maxPitch, spacing float64, harmonics int) (*Dictionary, error) {
	var pitches []float64
	// The small tolerance keeps maxPitch itself on the grid when the
	// interval is an exact multiple of the spacing.
	for f := minPitch; f <= maxPitch+1e-3; f += spacing {
		pitches = append(pitches, f)
	}
	return NewDictionaryFromPitches(pitches, harmonics, minPitch, maxPitch)
}

// NewDictionaryFromPitches builds a dictionary over an explicit
// candidate list, ascending in frequency.
func NewDictionaryFromPitches(pitches []float64, harmonics int, minPitch, maxPitch float64) (*Dictionary, error) {
	if len(pitches) == 0 {
		return nil, fmt.Errorf("empty pitch candidate grid")
	}
	for i, f := range pitches {
		if f <= 0 {
			return nil, fmt.Errorf("pitch candidate %d is not positive: %v", i, f)
		}
		if i > 0 && f <= pitches[i-1] {
			return nil, fmt.Errorf("pitch candidates must be strictly ascending at index %d", i)
		}
	}
	if harmonics < 1 {
		return nil, fmt.Errorf("harmonics must be at least 1, got %d", harmonics)
	}

	owned := make([]float64, len(pitches))
	copy(owned, pitches)
	return &Dictionary{
		pitches:   owned,
		harmonics: harmonics,
		minPitch:  minPitch,
		maxPitch:  maxPitch,
	}, nil
}

// NumPitches returns the number of pitch candidates P.
func (d *Dictionary) NumPitches() int {
	return len(d.pitches)
}

// Harmonics returns the harmonic count H per candidate.
func (d *Dictionary) Harmonics() int {
	return d.harmonics
}

// NumCoefficients returns the size P*H of the flat coefficient space.
func (d *Dictionary) NumCoefficients() int {
	return len(d.pitches) * d.harmonics
}

// Pitch returns the fundamental frequency of candidate p.
func (d *Dictionary) Pitch(p int) float64 {
	return d.pitches[p]
}

// Pitches returns a copy of the current candidate grid.
func (d *Dictionary) Pitches() []float64 {
	out := make([]float64, len(d.pitches))
	copy(out, d.pitches)
	return out
}

// HarmonicFrequency returns the frequency of harmonic h (0-based) of
// candidate p, i.e. (h+1) times the fundamental.
func (d *Dictionary) HarmonicFrequency(p, h int) float64 {
	return float64(h+1) * d.pitches[p]
}

// GroupRange returns the half-open coefficient index range [lo, hi) of
// candidate p's harmonic group.
func (d *Dictionary) GroupRange(p int) (lo, hi int) {
	return d.harmonics * p, d.harmonics * (p + 1)
}

// setPitch moves candidate p to a refined fundamental. Callers keep the
// grid strictly ascending; the frequency is clamped to the configured
// search bounds.
func (d *Dictionary) setPitch(p int, freq float64) {
	if freq < d.minPitch {
		freq = d.minPitch
	}
	if freq > d.maxPitch {
		freq = d.maxPitch
	}
	d.pitches[p] = freq
}
