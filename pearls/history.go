package pearls

// Result is the per-sample output history of a run. All buffers are
// sized once up front and written exactly once per sample; the core
// never reads them back.
type Result struct {
	// Weights[t] is the sparse weight estimate after sample t, length
	// P*H.
	Weights [][]complex128

	// RLS[t] is the refined amplitude/phase estimate after sample t,
	// length P*H; zero for samples before the warm-up.
	RLS [][]complex128

	// Frequencies[t] is the pitch-candidate grid after sample t,
	// length P.
	Frequencies [][]float64

	// P1 and P2 are the penalty parameters used at each sample.
	P1 []float64
	P2 []float64

	// Refinements collects every grid entry the dictionary updater
	// touched, across all passes.
	Refinements []RefinedPitch
}

func newResult(samples, numCoefficients, numPitches int) *Result {
	res := &Result{
		Weights:     make([][]complex128, samples),
		RLS:         make([][]complex128, samples),
		Frequencies: make([][]float64, samples),
		P1:          make([]float64, samples),
		P2:          make([]float64, samples),
	}

	wBack := make([]complex128, samples*numCoefficients)
	rlsBack := make([]complex128, samples*numCoefficients)
	fBack := make([]float64, samples*numPitches)
	for t := 0; t < samples; t++ {
		res.Weights[t] = wBack[t*numCoefficients : (t+1)*numCoefficients]
		res.RLS[t] = rlsBack[t*numCoefficients : (t+1)*numCoefficients]
		res.Frequencies[t] = fBack[t*numPitches : (t+1)*numPitches]
	}
	return res
}

// record appends one sample's outputs.
func (res *Result) record(t int, w, rls []complex128, dict *Dictionary, p1, p2 float64) {
	copy(res.Weights[t], w)
	copy(res.RLS[t], rls)
	for p := range res.Frequencies[t] {
		res.Frequencies[t][p] = dict.Pitch(p)
	}
	res.P1[t] = p1
	res.P2[t] = p2
}
