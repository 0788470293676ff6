// Package spectrum is the capture-side FFT front end: it converts blocks of
// raw samples into normalized frequency-bin energies for the symbol
// detector.
package spectrum

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer computes windowed energy spectra over fixed-size blocks. One
// block should cover one symbol slot so each Work call yields one snapshot
// per symbol. Scratch buffers are reused between calls; an Analyzer belongs
// to a single goroutine.
type Analyzer struct {
	size       int
	sampleRate int
	fft        *fourier.FFT
	win        []float64
	seq        []float64
	coeffs     []complex128
}

func NewAnalyzer(size, sampleRate int) *Analyzer {
	return &Analyzer{
		size:       size,
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(size),
		win:        window.Hamming(size),
		seq:        make([]float64, size),
		coeffs:     make([]complex128, size/2+1),
	}
}

// Size returns the block length in samples.
func (a *Analyzer) Size() int {
	return a.size
}

// BinSize returns the width of one frequency bin in Hz.
func (a *Analyzer) BinSize() float64 {
	return float64(a.sampleRate) / float64(a.size)
}

func (a *Analyzer) PredictOutputSize(inputSize int) int {
	return a.size/2 + 1
}

// WorkBuffer analyzes one block. Input shorter than the block length is
// zero padded; input beyond it is ignored.
func (a *Analyzer) WorkBuffer(input []float32, output []float64) int {
	for i := 0; i < a.size; i++ {
		if i < len(input) {
			a.seq[i] = float64(input[i]) * a.win[i]
		} else {
			a.seq[i] = 0
		}
	}

	coeffs := a.fft.Coefficients(a.coeffs, a.seq)

	// Single-sided amplitude normalization: a full-scale tone at an exact
	// bin center shows up with its time-domain amplitude times the window's
	// coherent gain.
	n := float64(a.size)
	output[0] = cmplx.Abs(coeffs[0]) / n
	for i := 1; i < len(coeffs); i++ {
		output[i] = 2 * cmplx.Abs(coeffs[i]) / n
	}
	return len(coeffs)
}

func (a *Analyzer) Work(input []float32) []float64 {
	out := make([]float64, a.PredictOutputSize(len(input)))
	a.WorkBuffer(input, out)
	return out
}
