// Command pearls runs the online multi-pitch estimator over a WAV file
// and writes the per-sample histories to CSV, optionally with a
// pitch-track plot.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"

	"github.com/unixpickle/wav"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jmalvik/pearls/algorithms/shrinkage"
	"github.com/jmalvik/pearls/algorithms/spectral"
	"github.com/jmalvik/pearls/logging"
	"github.com/jmalvik/pearls/pearls"
)

func main() {
	var (
		inPath  = flag.String("in", "", "input WAV file (required)")
		outDir  = flag.String("out", "results", "output directory")
		offset  = flag.Int("offset", 0, "first sample to process")
		samples = flag.Int("samples", 0, "number of samples to process (0 = all)")
		plotOut = flag.Bool("plot", false, "write a pitch-track PNG")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)

	cfg := pearls.DefaultConfig()
	flag.Float64Var(&cfg.ForgettingFactor, "lambda", cfg.ForgettingFactor, "forgetting factor")
	flag.Float64Var(&cfg.SmoothingFactor, "xi", cfg.SmoothingFactor, "RLS smoothing factor")
	flag.IntVar(&cfg.MaxHarmonics, "harmonics", cfg.MaxHarmonics, "harmonics per pitch candidate")
	flag.Float64Var(&cfg.MinPitch, "min-pitch", cfg.MinPitch, "lower pitch search bound (Hz)")
	flag.Float64Var(&cfg.MaxPitch, "max-pitch", cfg.MaxPitch, "upper pitch search bound (Hz)")
	flag.Float64Var(&cfg.GridSpacing, "spacing", cfg.GridSpacing, "initial grid spacing (Hz)")
	flag.Float64Var(&cfg.PenaltyRate, "mu", cfg.PenaltyRate, "penalty update rate")
	flag.Float64Var(&cfg.StepSize, "step", cfg.StepSize, "gradient step size")
	flag.IntVar(&cfg.GradientIterations, "iterations", cfg.GradientIterations, "gradient iterations per sample")
	flag.Float64Var(&cfg.NormThreshold, "threshold", cfg.NormThreshold, "active-set norm threshold")
	flag.IntVar(&cfg.RLSWarmup, "warmup", cfg.RLSWarmup, "samples before RLS refinement")
	flag.IntVar(&cfg.DictionaryInterval, "dict-interval", cfg.DictionaryInterval, "samples between grid refinements")
	flag.Parse()

	if *debug {
		logging.SetLevel(logging.DebugLevel)
	}

	if *inPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	signal, sampleRate, err := loadWav(*inPath, *offset, *samples)
	if err != nil {
		logging.Fatal(err, "failed to load input")
	}
	cfg.SampleRate = sampleRate

	analyzer := spectral.NewSpectrum(sampleRate)
	domFreq, domMag := analyzer.DominantFrequency(signal)
	logging.Info("loaded input", logging.Fields{
		"file":         *inPath,
		"samples":      len(signal),
		"sample_rate":  sampleRate,
		"mean":         stat.Mean(signal, nil),
		"stddev":       stat.StdDev(signal, nil),
		"dominant_hz":  domFreq,
		"dominant_mag": domMag,
	})

	est, err := pearls.NewEstimator(cfg)
	if err != nil {
		logging.Fatal(err, "failed to build estimator")
	}

	res, err := est.Run(signal)
	if err != nil {
		logging.Fatal(err, "run failed")
	}
	logging.Info("run complete", logging.Fields{
		"active_pitches": est.ActivePitches(),
		"refinements":    len(res.Refinements),
	})

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logging.Fatal(err, "failed to create output directory")
	}
	if err := writeHistories(*outDir, res); err != nil {
		logging.Fatal(err, "failed to write results")
	}
	if *plotOut {
		harmonics := cfg.MaxHarmonics
		if err := writePitchPlot(filepath.Join(*outDir, "pitch_tracks.png"), res, harmonics); err != nil {
			logging.Fatal(err, "failed to write plot")
		}
	}
	logging.Info("results written", logging.Fields{"dir": *outDir})
}

// loadWav reads the first channel of a WAV file and selects the
// requested sample range.
func loadWav(path string, offset, count int) ([]float64, float64, error) {
	snd, err := wav.ReadSoundFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	channels := snd.Channels()
	raw := snd.Samples()
	mono := make([]float64, 0, len(raw)/channels)
	for i := 0; i < len(raw); i += channels {
		mono = append(mono, float64(raw[i]))
	}

	if offset < 0 || offset >= len(mono) {
		return nil, 0, fmt.Errorf("offset %d out of range for %d samples", offset, len(mono))
	}
	mono = mono[offset:]
	if count > 0 && count < len(mono) {
		mono = mono[:count]
	}
	return mono, float64(snd.SampleRate()), nil
}

// writeHistories dumps the frequency grid, penalty and final RLS
// histories as CSV.
func writeHistories(dir string, res *pearls.Result) error {
	freqRows := make([][]string, 0, len(res.Frequencies)+1)
	header := []string{"sample"}
	for p := range res.Frequencies[0] {
		header = append(header, "pitch_"+strconv.Itoa(p))
	}
	freqRows = append(freqRows, header)
	for t, freqs := range res.Frequencies {
		row := []string{strconv.Itoa(t)}
		for _, f := range freqs {
			row = append(row, strconv.FormatFloat(f, 'g', -1, 64))
		}
		freqRows = append(freqRows, row)
	}
	if err := writeCSV(filepath.Join(dir, "frequencies.csv"), freqRows); err != nil {
		return err
	}

	penRows := [][]string{{"sample", "p1", "p2"}}
	for t := range res.P1 {
		penRows = append(penRows, []string{
			strconv.Itoa(t),
			strconv.FormatFloat(res.P1[t], 'g', -1, 64),
			strconv.FormatFloat(res.P2[t], 'g', -1, 64),
		})
	}
	if err := writeCSV(filepath.Join(dir, "penalties.csv"), penRows); err != nil {
		return err
	}

	final := res.RLS[len(res.RLS)-1]
	rlsRows := [][]string{{"coefficient", "magnitude"}}
	for i, v := range final {
		rlsRows = append(rlsRows, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(cmplx.Abs(v), 'g', -1, 64),
		})
	}
	return writeCSV(filepath.Join(dir, "rls_final.csv"), rlsRows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// writePitchPlot draws the grid trajectory of every pitch candidate
// that ends the run with refined energy.
func writePitchPlot(path string, res *pearls.Result, harmonics int) error {
	p := plot.New()
	p.Title.Text = "Pitch tracks"
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "frequency (Hz)"

	final := res.RLS[len(res.RLS)-1]
	numPitches := len(res.Frequencies[0])
	for pitch := 0; pitch < numPitches; pitch++ {
		lo := pitch * harmonics
		if shrinkage.Norm(final[lo:lo+harmonics]) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(res.Frequencies))
		for t := range res.Frequencies {
			pts[t].X = float64(t)
			pts[t].Y = res.Frequencies[t][pitch]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		p.Add(line)
		p.Legend.Add("pitch "+strconv.Itoa(pitch), line)
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
