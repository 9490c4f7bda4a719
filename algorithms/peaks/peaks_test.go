package peaks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectInterior_ExcludesEnds(t *testing.T) {
	t.Parallel()

	// The largest value sits at the boundary and must not qualify.
	profile := []float64{5, 1, 2, 1, 4}
	found := DetectInterior(profile, 0.05)

	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].Index)
	assert.Equal(t, 2.0, found[0].Value)
}

func TestDetectInterior_RelativeFloor(t *testing.T) {
	t.Parallel()

	// The small bump at index 1 falls under 5% of the interior max.
	profile := []float64{0, 0.01, 0, 10, 0}
	found := DetectInterior(profile, 0.05)

	require.Len(t, found, 1)
	assert.Equal(t, 3, found[0].Index)
}

func TestDetectInterior_Degenerate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, DetectInterior(nil, 0.05))
	assert.Nil(t, DetectInterior([]float64{1, 2}, 0.05))
	// Flat profile has no strict local maxima.
	assert.Nil(t, DetectInterior([]float64{1, 1, 1, 1}, 0.05))
	// All-zero profile stays quiet.
	assert.Nil(t, DetectInterior(make([]float64, 8), 0.05))
}

func TestParabolicVertex_SymmetricPeakStaysPut(t *testing.T) {
	t.Parallel()

	got := ParabolicVertex(100, 1, 200, 3, 300, 1)
	assert.InDelta(t, 200, got, 1e-12)
}

func TestParabolicVertex_LeansTowardLargerNeighbor(t *testing.T) {
	t.Parallel()

	got := ParabolicVertex(200, 1, 300, 3, 400, 2)
	// Divided differences: d0=0.02, d1=-0.01, curvature=-1.5e-4,
	// vertex = 250 - 0.02/(2*-1.5e-4).
	assert.InDelta(t, 316.6666666667, got, 1e-6)
	assert.Greater(t, got, 300.0)
	assert.Less(t, got, 400.0)
}

func TestParabolicVertex_UnevenSpacing(t *testing.T) {
	t.Parallel()

	got := ParabolicVertex(100, 0, 250, 4, 300, 0)
	assert.Greater(t, got, 100.0)
	assert.Less(t, got, 300.0)
}

func TestParabolicVertex_DegenerateKeepsCenter(t *testing.T) {
	t.Parallel()

	// Collinear points have no curvature.
	assert.Equal(t, 200.0, ParabolicVertex(100, 1, 200, 2, 300, 3))
	// Upward-opening parabola has a minimum, not a peak.
	assert.Equal(t, 200.0, ParabolicVertex(100, 3, 200, 1, 300, 3))
}
