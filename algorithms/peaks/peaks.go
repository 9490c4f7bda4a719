package peaks

// Peak detection over value profiles sampled on an arbitrary,
// strictly-increasing grid. Unlike FFT-bin peak picking, the grid here
// may be unevenly spaced (a refined pitch dictionary drifts off its
// initial uniform spacing), so interpolation works on the grid
// coordinates directly.

// Peak is one detected interior local maximum.
type Peak struct {
	Index int     // Position in the profile
	Value float64 // Profile value at the peak
}

// DetectInterior finds interior local maxima of profile: index i is a
// peak iff profile[i] exceeds both neighbors and clears relativeFloor
// times the largest interior value. The two array ends never qualify.
func DetectInterior(profile []float64, relativeFloor float64) []Peak {
	if len(profile) < 3 {
		return nil
	}

	interiorMax := profile[1]
	for _, v := range profile[1 : len(profile)-1] {
		if v > interiorMax {
			interiorMax = v
		}
	}
	floor := relativeFloor * interiorMax

	var found []Peak
	for i := 1; i < len(profile)-1; i++ {
		if profile[i] > profile[i-1] && profile[i] > profile[i+1] && profile[i] > floor {
			found = append(found, Peak{Index: i, Value: profile[i]})
		}
	}
	return found
}

// ParabolicVertex returns the abscissa of the vertex of the parabola
// through (x0,y0), (x1,y1), (x2,y2). The points need not be evenly
// spaced. If the three points are (numerically) collinear or the
// parabola opens upward, x1 is returned unchanged.
func ParabolicVertex(x0, y0, x1, y1, x2, y2 float64) float64 {
	d0 := (y1 - y0) / (x1 - x0)
	d1 := (y2 - y1) / (x2 - x1)
	curvature := (d1 - d0) / (x2 - x0)
	if curvature >= -1e-12 {
		return x1
	}
	vertex := (x0+x1)/2 - d0/(2*curvature)

	// A vertex outside the bracketing interval means the quadratic
	// model is a poor local fit; keep the sample point.
	if vertex <= x0 || vertex >= x2 {
		return x1
	}
	return vertex
}
