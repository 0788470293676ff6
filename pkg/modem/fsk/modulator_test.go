package fsk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniclink/soniclink/pkg/modem"
	"github.com/soniclink/soniclink/pkg/modem/frame"
)

func TestNewModulatorValidatesCarrier(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*modem.CarrierConfig)
	}{
		{"zero symbol duration", func(c *modem.CarrierConfig) { c.SymbolDuration = 0 }},
		{"negative symbol duration", func(c *modem.CarrierConfig) { c.SymbolDuration = -time.Second }},
		{"equal carriers", func(c *modem.CarrierConfig) { c.OneFreq = c.ZeroFreq }},
		{"carrier above nyquist", func(c *modem.CarrierConfig) { c.OneFreq = c.SampleRate }},
		{"zero amplitude", func(c *modem.CarrierConfig) { c.Amplitude = 0 }},
		{"no sample rate", func(c *modem.CarrierConfig) { c.SampleRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := modem.DefaultCarrierConfig()
			tt.mutate(&cfg)
			_, err := NewModulator(cfg)
			assert.ErrorIs(t, err, modem.ErrNotReady)
		})
	}
}

func TestModulateRejectsWideCharacters(t *testing.T) {
	m, err := NewModulator(modem.DefaultCarrierConfig())
	require.NoError(t, err)

	_, err = m.Modulate("день")
	assert.ErrorIs(t, err, modem.ErrInput)
}

func TestSynthesizeShape(t *testing.T) {
	cfg := modem.DefaultCarrierConfig()
	m, err := NewModulator(cfg)
	require.NoError(t, err)

	bits, err := m.Encode("hi")
	require.NoError(t, err)

	samples := m.Synthesize(bits)
	assert.Len(t, samples, m.PredictOutputSize(len(bits)))

	// Lead-in is silence.
	for _, s := range samples[:cfg.LeadInSamples()] {
		require.Zero(t, s)
	}

	// The waveform never exceeds the configured amplitude.
	for _, s := range samples {
		require.LessOrEqual(t, math.Abs(float64(s)), cfg.Amplitude+1e-6)
	}
}

func TestSynthesizeDominantFrequencyPerSymbol(t *testing.T) {
	cfg := modem.DefaultCarrierConfig()
	m, err := NewModulator(cfg)
	require.NoError(t, err)

	samples := m.Synthesize([]byte{0, 1, 0})
	perSymbol := cfg.SamplesPerSymbol()
	lead := cfg.LeadInSamples()

	freqs := []int{cfg.ZeroFreq, cfg.OneFreq, cfg.ZeroFreq}
	for i, want := range freqs {
		slot := samples[lead+i*perSymbol : lead+(i+1)*perSymbol]
		got := dominantFreq(slot, cfg.SampleRate)
		assert.InDelta(t, want, got, 15, "symbol %d", i)
	}
}

// dominantFreq estimates frequency by counting zero crossings.
func dominantFreq(samples []float32, sampleRate int) float64 {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			crossings++
		}
	}
	seconds := float64(len(samples)) / float64(sampleRate)
	return float64(crossings) / 2 / seconds
}

func TestFrameBitsMatchCodec(t *testing.T) {
	m, err := NewModulator(modem.DefaultCarrierConfig())
	require.NoError(t, err)

	got, err := m.Encode("hi")
	require.NoError(t, err)
	want, err := frame.Build("hi")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
