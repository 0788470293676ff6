// Package detector turns one frequency-bin energy snapshot into a symbol
// decision. Detection is purely energy based: average energy in a small
// window around each carrier bin, an adaptive noise floor over the rest of
// the spectrum, and three thresholds that all must pass before a symbol is
// reported.
package detector

import (
	"math"

	"github.com/soniclink/soniclink/pkg/modem"
)

const noiseEpsilon = 1e-12

// Config holds the detection thresholds. These are empirically tuned and
// should be adjusted against the actual hardware and room.
type Config struct {
	// BinWindow is the half-width (in bins) of the energy window around each
	// carrier bin. Windowing trades frequency resolution for robustness
	// against bin-boundary misalignment and slow drift.
	BinWindow int

	// EnergyFloor is the absolute minimum energy for the stronger carrier.
	EnergyFloor float64

	// MinSNR is the minimum ratio of carrier energy to the noise floor.
	MinSNR float64

	// DiffFraction and DiffFloor gate the separation between the two
	// carrier energies: the difference must exceed both DiffFraction of the
	// stronger energy and the absolute DiffFloor. This rejects snapshots
	// where both tones are present equally, including silence and broadband
	// bursts.
	DiffFraction float64
	DiffFloor    float64
}

func DefaultConfig() Config {
	return Config{
		BinWindow:    3,
		EnergyFloor:  0.01,
		MinSNR:       2.5,
		DiffFraction: 0.35,
		DiffFloor:    0.005,
	}
}

// Detector is pure: Detect holds no state between calls.
type Detector struct {
	carrier modem.CarrierConfig
	cfg     Config
}

func New(carrier modem.CarrierConfig, cfg Config) *Detector {
	return &Detector{carrier: carrier, cfg: cfg}
}

// Detect evaluates one energy snapshot. binSize is the width of one bin in
// Hz (sample rate / FFT size).
func (d *Detector) Detect(bins []float64, binSize float64) modem.Decision {
	if len(bins) == 0 || binSize <= 0 {
		return modem.Decision{Symbol: modem.SymbolNone}
	}

	idx0 := int(math.Round(float64(d.carrier.ZeroFreq) / binSize))
	idx1 := int(math.Round(float64(d.carrier.OneFreq) / binSize))

	energy0 := windowAverage(bins, idx0, d.cfg.BinWindow)
	energy1 := windowAverage(bins, idx1, d.cfg.BinWindow)
	noise := d.noiseFloor(bins, idx0, idx1)

	maxEnergy := math.Max(energy0, energy1)
	snr := maxEnergy / math.Max(noise, noiseEpsilon)
	diff := math.Abs(energy0 - energy1)

	if maxEnergy < d.cfg.EnergyFloor ||
		snr < d.cfg.MinSNR ||
		diff < math.Max(d.cfg.DiffFraction*maxEnergy, d.cfg.DiffFloor) {
		return modem.Decision{Symbol: modem.SymbolNone, SNR: snr}
	}

	symbol := modem.SymbolZero
	if energy1 > energy0 {
		symbol = modem.SymbolOne
	}
	return modem.Decision{
		Symbol:  symbol,
		Quality: quality(diff, maxEnergy),
		SNR:     snr,
	}
}

// windowAverage averages energy over [center-k, center+k], clamped to the
// bin range.
func windowAverage(bins []float64, center, k int) float64 {
	lo := center - k
	hi := center + k
	if lo < 0 {
		lo = 0
	}
	if hi > len(bins)-1 {
		hi = len(bins) - 1
	}
	if lo > hi {
		return 0
	}
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += bins[i]
	}
	return sum / float64(hi-lo+1)
}

// noiseFloor is the mean energy over all bins outside a widened exclusion
// zone around both carriers, so the carriers' own skirts do not inflate it.
func (d *Detector) noiseFloor(bins []float64, idx0, idx1 int) float64 {
	exclusion := 2 * d.cfg.BinWindow
	var sum float64
	var count int
	for i := range bins {
		if abs(i-idx0) <= exclusion || abs(i-idx1) <= exclusion {
			continue
		}
		sum += bins[i]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// quality maps tone separation to a 0-100 confidence score. It biases
// acceptance downstream; it never changes a bit value.
func quality(diff, maxEnergy float64) int {
	q := int(math.Round(diff / maxEnergy * 100))
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
