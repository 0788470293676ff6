// Package fsk synthesizes the transmit waveform: each frame bit becomes a
// sustained tone at one of two carrier frequencies.
package fsk

import (
	"math"

	"github.com/soniclink/soniclink/pkg/modem"
	"github.com/soniclink/soniclink/pkg/modem/frame"
)

const tau = 2 * math.Pi

// Modulator turns text into a framed sample buffer. It is stateless between
// calls apart from its carrier parameters and safe to reuse across
// transmissions.
type Modulator struct {
	cfg            modem.CarrierConfig
	phaseIncrement [2]float64
}

// NewModulator validates the carrier parameters once at construction.
func NewModulator(cfg modem.CarrierConfig) (*Modulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Modulator{
		cfg: cfg,
		phaseIncrement: [2]float64{
			float64(cfg.ZeroFreq) * tau / float64(cfg.SampleRate),
			float64(cfg.OneFreq) * tau / float64(cfg.SampleRate),
		},
	}, nil
}

// Encode produces the frame bit sequence for text.
func (m *Modulator) Encode(text string) ([]byte, error) {
	return frame.Build(text)
}

// Synthesize renders frame bits to a sample buffer: a lead-in of silence,
// then one tone burst per bit. The phase accumulator carries across symbol
// boundaries so the waveform stays continuous when the tone switches, which
// keeps switching clicks out of the spectrum.
func (m *Modulator) Synthesize(bits []byte) []float32 {
	perSymbol := m.cfg.SamplesPerSymbol()
	lead := m.cfg.LeadInSamples()
	out := make([]float32, lead+len(bits)*perSymbol)

	var phase float64
	pos := lead
	for _, bit := range bits {
		inc := m.phaseIncrement[bit&1]
		for i := 0; i < perSymbol; i++ {
			out[pos] = float32(m.cfg.Amplitude * math.Sin(phase))
			pos++
			phase += inc
			if phase > tau {
				phase -= tau
			}
		}
	}
	return out
}

// Modulate is Encode followed by Synthesize.
func (m *Modulator) Modulate(text string) ([]float32, error) {
	bits, err := m.Encode(text)
	if err != nil {
		return nil, err
	}
	return m.Synthesize(bits), nil
}

// PredictOutputSize returns the sample count Synthesize will produce for a
// given bit count.
func (m *Modulator) PredictOutputSize(numBits int) int {
	return m.cfg.LeadInSamples() + numBits*m.cfg.SamplesPerSymbol()
}
