package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soniclink/soniclink/pkg/modem"
)

const binSize = 10.0 // Hz per bin, 4410-sample blocks at 44.1k

// synthBins builds a snapshot with the given energy spread around a
// frequency on top of a uniform noise floor.
func synthBins(noise float64, tones map[int]float64) []float64 {
	bins := make([]float64, 2206)
	for i := range bins {
		bins[i] = noise
	}
	for freq, energy := range tones {
		center := freq / int(binSize)
		for i := center - 1; i <= center+1; i++ {
			bins[i] = energy
		}
	}
	return bins
}

func newDetector() *Detector {
	return New(modem.DefaultCarrierConfig(), DefaultConfig())
}

func TestDetectSingleTone(t *testing.T) {
	d := newDetector()

	got := d.Detect(synthBins(1e-4, map[int]float64{6000: 0.1}), binSize)
	assert.Equal(t, modem.SymbolOne, got.Symbol)
	assert.Greater(t, got.Quality, 90)
	assert.Greater(t, got.SNR, 10.0)

	got = d.Detect(synthBins(1e-4, map[int]float64{4000: 0.1}), binSize)
	assert.Equal(t, modem.SymbolZero, got.Symbol)
	assert.Greater(t, got.Quality, 90)
}

func TestDetectSilence(t *testing.T) {
	d := newDetector()
	got := d.Detect(make([]float64, 2206), binSize)
	assert.Equal(t, modem.SymbolNone, got.Symbol)
}

func TestDetectEqualTonesIsAmbiguous(t *testing.T) {
	d := newDetector()
	got := d.Detect(synthBins(1e-4, map[int]float64{4000: 0.1, 6000: 0.1}), binSize)
	assert.Equal(t, modem.SymbolNone, got.Symbol)
}

func TestDetectBroadbandNoise(t *testing.T) {
	d := newDetector()
	// Loud across the whole band: plenty of absolute energy at both
	// carriers but no SNR against the floor.
	got := d.Detect(synthBins(0.1, nil), binSize)
	assert.Equal(t, modem.SymbolNone, got.Symbol)
}

func TestDetectBelowEnergyFloor(t *testing.T) {
	d := newDetector()
	got := d.Detect(synthBins(1e-6, map[int]float64{6000: 0.002}), binSize)
	assert.Equal(t, modem.SymbolNone, got.Symbol)
}

func TestDetectToneOffBinCenter(t *testing.T) {
	d := newDetector()
	// Energy two bins away from the nominal carrier bin still lands in
	// the averaging window.
	bins := make([]float64, 2206)
	bins[602] = 0.3
	got := d.Detect(bins, binSize)
	assert.Equal(t, modem.SymbolOne, got.Symbol)
}

func TestNoiseFloorExcludesCarrierSkirts(t *testing.T) {
	d := newDetector()
	bins := synthBins(1e-4, map[int]float64{6000: 0.1})
	// Skirt energy just inside the exclusion zone must not raise the
	// floor enough to block detection.
	for i := 596; i <= 604; i++ {
		if bins[i] < 0.05 {
			bins[i] = 0.05
		}
	}
	got := d.Detect(bins, binSize)
	assert.Equal(t, modem.SymbolOne, got.Symbol)
}

func TestQualityClamped(t *testing.T) {
	assert.Equal(t, 100, quality(2, 1))
	assert.Equal(t, 0, quality(-1, 1))
	assert.Equal(t, 50, quality(0.5, 1))
}

func TestDetectEmptyInput(t *testing.T) {
	d := newDetector()
	assert.Equal(t, modem.SymbolNone, d.Detect(nil, binSize).Symbol)
	assert.Equal(t, modem.SymbolNone, d.Detect(make([]float64, 100), 0).Symbol)
}
