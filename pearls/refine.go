package pearls

import (
	"math/cmplx"

	"github.com/jmalvik/pearls/algorithms/peaks"
	"github.com/jmalvik/pearls/algorithms/shrinkage"
	"github.com/jmalvik/pearls/logging"
)

// Frequency grid refinement. On a fixed cadence the updater scans the
// refined RLS estimate for pitches that stand out as local peaks of the
// per-group harmonic-norm profile and nudges each peak's grid entry
// toward the true fundamental.
//
// The refinement rule: fit a parabola through the peak's harmonic norm
// and its two grid neighbors (in frequency coordinates, so an already
// refined, unevenly spaced grid stays correct) and move the entry to
// the vertex, clamped inside the neighbor interval and the configured
// pitch bounds. Only the moved entry's basis columns are rebuilt; R and
// r are left alone so their accumulated statistics decay onto the new
// basis naturally.
type dictionaryUpdater struct {
	logger logging.Logger
	norms  []float64
}

// RefinedPitch describes one grid entry moved by a refinement pass.
type RefinedPitch struct {
	Index                int     // Pitch candidate index
	Frequency            float64 // Refined fundamental in Hz
	Previous             float64 // Grid value before the move
	SignificantHarmonics int     // Harmonics above 20% of the group's strongest
}

const (
	// peakFloor is the relative bar a harmonic norm must clear, against
	// the largest interior norm, to count as a peak.
	peakFloor = 0.05

	// harmonicFloor is the relative magnitude bar for counting a
	// harmonic as significant within its own group.
	harmonicFloor = 0.2

	// minFrequencyMove suppresses churn from sub-microhertz vertex
	// adjustments.
	minFrequencyMove = 1e-6
)

func newDictionaryUpdater(numPitches int, logger logging.Logger) *dictionaryUpdater {
	return &dictionaryUpdater{
		logger: logger,
		norms:  make([]float64, numPitches),
	}
}

// maybeRefine runs one refinement pass. Finding no peaks is a normal
// no-op. Returns the entries that moved.
func (du *dictionaryUpdater) maybeRefine(rls []complex128, dict *Dictionary, cov *covarianceState, sampleIdx int) []RefinedPitch {
	for p := range du.norms {
		lo, hi := dict.GroupRange(p)
		du.norms[p] = shrinkage.Norm(rls[lo:hi])
	}

	found := peaks.DetectInterior(du.norms, peakFloor)
	if len(found) == 0 {
		return nil
	}

	var refined []RefinedPitch
	for _, pk := range found {
		i := pk.Index
		prev := dict.Pitch(i)
		vertex := peaks.ParabolicVertex(
			dict.Pitch(i-1), du.norms[i-1],
			prev, du.norms[i],
			dict.Pitch(i+1), du.norms[i+1],
		)

		move := RefinedPitch{
			Index:                i,
			Frequency:            prev,
			Previous:             prev,
			SignificantHarmonics: du.significantHarmonics(rls, dict, i),
		}
		if diff := vertex - prev; diff > minFrequencyMove || diff < -minFrequencyMove {
			dict.setPitch(i, vertex)
			cov.rebuildPitchColumns(i)
			move.Frequency = dict.Pitch(i)

			du.logger.Debug("refined pitch candidate", logging.Fields{
				"sample":    sampleIdx,
				"pitch":     i,
				"from_hz":   prev,
				"to_hz":     move.Frequency,
				"harmonics": move.SignificantHarmonics,
			})
		}
		refined = append(refined, move)
	}
	return refined
}

// significantHarmonics counts the harmonics of candidate p up to and
// including the highest one whose magnitude clears 20% of the group's
// strongest harmonic.
func (du *dictionaryUpdater) significantHarmonics(rls []complex128, dict *Dictionary, p int) int {
	lo, hi := dict.GroupRange(p)
	maxMag := 0.0
	for i := lo; i < hi; i++ {
		if m := cmplx.Abs(rls[i]); m > maxMag {
			maxMag = m
		}
	}
	if maxMag == 0 {
		return 0
	}

	count := 0
	for i := lo; i < hi; i++ {
		if cmplx.Abs(rls[i]) > harmonicFloor*maxMag {
			count = i - lo + 1
		}
	}
	return count
}
