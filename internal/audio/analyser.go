package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// AnalyserOptions mirror the knobs of a browser AnalyserNode.
type AnalyserOptions struct {
	FFTSize   int     // power of two
	Smoothing float64 // time constant in [0, 1)
	MinDB     float64
	MaxDB     float64
}

// DefaultAnalyserOptions match the analyser used for the level meter:
// 512-point FFT with 0.6 smoothing over a -100..-30 dB range.
func DefaultAnalyserOptions() AnalyserOptions {
	return AnalyserOptions{
		FFTSize:   512,
		Smoothing: 0.6,
		MinDB:     -100,
		MaxDB:     -30,
	}
}

// FFTAnalyser computes smoothed byte magnitude spectra from a Signal.
type FFTAnalyser struct {
	sig      Signal
	opts     AnalyserOptions
	fft      *fourier.FFT
	samples  []float64
	coeffs   []complex128
	smoothed []float64
}

// NewFFTAnalyser attaches an analyser to sig.
func NewFFTAnalyser(sig Signal, opts AnalyserOptions) *FFTAnalyser {
	if opts.FFTSize < 32 || opts.FFTSize&(opts.FFTSize-1) != 0 {
		opts.FFTSize = DefaultAnalyserOptions().FFTSize
	}
	if opts.MaxDB <= opts.MinDB {
		d := DefaultAnalyserOptions()
		opts.MinDB, opts.MaxDB = d.MinDB, d.MaxDB
	}
	return &FFTAnalyser{
		sig:      sig,
		opts:     opts,
		fft:      fourier.NewFFT(opts.FFTSize),
		samples:  make([]float64, opts.FFTSize),
		smoothed: make([]float64, opts.FFTSize/2),
	}
}

// AnalyserFactory returns an AnalyzerFactory producing FFT analysers.
func AnalyserFactory(opts AnalyserOptions) AnalyzerFactory {
	return func(sig Signal) FrequencyAnalyzer {
		return NewFFTAnalyser(sig, opts)
	}
}

// BinCount is half the FFT size.
func (a *FFTAnalyser) BinCount() int {
	return a.opts.FFTSize / 2
}

// ByteFrequencyData implements FrequencyAnalyzer.
func (a *FFTAnalyser) ByteFrequencyData(dst []byte) {
	if a.sig == nil {
		return
	}
	a.sig.Latest(a.samples)
	window.Blackman(a.samples)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.samples)

	n := float64(a.opts.FFTSize)
	tau := a.opts.Smoothing
	span := a.opts.MaxDB - a.opts.MinDB
	bins := min(len(dst), len(a.smoothed))

	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) / n
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
	}
	for k := 0; k < bins; k++ {
		db := a.opts.MinDB
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		scaled := 255 * (db - a.opts.MinDB) / span
		dst[k] = byte(math.Max(0, math.Min(255, scaled)))
	}
}

// Close detaches the analyser from its signal.
func (a *FFTAnalyser) Close() {
	a.sig = nil
}
