// Package modem holds the shared contract between the two ends of the
// acoustic link: the carrier parameters, the symbol decision type, and the
// error taxonomy. Both the modulator and the demodulator are built against
// this package; if the two ends disagree on any of it, decoding fails.
package modem

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInput reports text that cannot be carried on the link, i.e. any
	// character that does not fit in a single byte.
	ErrInput = errors.New("unencodable input")

	// ErrNotReady reports inconsistent carrier parameters. This is a
	// configuration bug, not a runtime condition.
	ErrNotReady = errors.New("carrier parameters not ready")

	// ErrDeviceUnavailable reports that an audio device could not be
	// acquired. Recoverable only by user action.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Symbol is the outcome of one spectrum snapshot.
type Symbol int

const (
	SymbolNone Symbol = iota
	SymbolZero
	SymbolOne
)

func (s Symbol) String() string {
	switch s {
	case SymbolZero:
		return "0"
	case SymbolOne:
		return "1"
	default:
		return "none"
	}
}

// Bit returns the bit value for a zero or one symbol. Calling it on
// SymbolNone is a programming error.
func (s Symbol) Bit() byte {
	switch s {
	case SymbolZero:
		return 0
	case SymbolOne:
		return 1
	}
	panic(fmt.Sprintf("no bit value for symbol %d", s))
}

// Decision is produced once per incoming spectrum snapshot and consumed
// immediately; it is never persisted.
type Decision struct {
	Symbol  Symbol
	Quality int // 0-100, confidence that the dominant tone is the right one
	SNR     float64
}

// CarrierConfig is the process-wide carrier contract. It is fixed at
// construction and must be identical on both ends of the link.
type CarrierConfig struct {
	SampleRate     int
	SymbolDuration time.Duration
	ZeroFreq       int
	OneFreq        int
	Amplitude      float64
	LeadIn         time.Duration
}

// DefaultCarrierConfig returns the parameters both stock binaries ship with.
// The tones sit well inside the passband of ordinary laptop speakers while
// staying clear of voice-band hum.
func DefaultCarrierConfig() CarrierConfig {
	return CarrierConfig{
		SampleRate:     44100,
		SymbolDuration: 100 * time.Millisecond,
		ZeroFreq:       4000,
		OneFreq:        6000,
		Amplitude:      0.25,
		// A whole number of symbol slots, so block-aligned capture stays
		// aligned with symbol boundaries after the silence.
		LeadIn: 200 * time.Millisecond,
	}
}

// Validate checks the carrier parameters for internal consistency.
func (c CarrierConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrNotReady, c.SampleRate)
	}
	if c.SymbolDuration <= 0 {
		return fmt.Errorf("%w: symbol duration %s", ErrNotReady, c.SymbolDuration)
	}
	if c.ZeroFreq <= 0 || c.OneFreq <= 0 {
		return fmt.Errorf("%w: carrier frequencies %d/%d", ErrNotReady, c.ZeroFreq, c.OneFreq)
	}
	if c.ZeroFreq == c.OneFreq {
		return fmt.Errorf("%w: carrier frequencies must differ", ErrNotReady)
	}
	if c.ZeroFreq >= c.SampleRate/2 || c.OneFreq >= c.SampleRate/2 {
		return fmt.Errorf("%w: carrier frequency above Nyquist for sample rate %d", ErrNotReady, c.SampleRate)
	}
	if c.Amplitude <= 0 || c.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude %f", ErrNotReady, c.Amplitude)
	}
	if c.LeadIn < 0 {
		return fmt.Errorf("%w: negative lead-in", ErrNotReady)
	}
	return nil
}

// SamplesPerSymbol returns the number of samples occupied by one symbol slot.
func (c CarrierConfig) SamplesPerSymbol() int {
	return int(float64(c.SampleRate) * c.SymbolDuration.Seconds())
}

// LeadInSamples returns the number of silence samples prepended to a
// transmission so the playback device and the capture side can settle.
func (c CarrierConfig) LeadInSamples() int {
	return int(float64(c.SampleRate) * c.LeadIn.Seconds())
}
