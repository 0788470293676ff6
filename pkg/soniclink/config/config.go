// Package config is the YAML-facing configuration of the soniclink binary.
// Durations appear as millisecond integers so a config file stays readable;
// conversion to the core types happens here.
package config

import (
	"time"

	"github.com/soniclink/soniclink/pkg/dsp/detector"
	"github.com/soniclink/soniclink/pkg/modem"
	"github.com/soniclink/soniclink/pkg/modem/frame"
)

type Config struct {
	SampleRate       int     `yaml:"sample_rate"`
	SymbolDurationMS int     `yaml:"symbol_duration_ms"`
	ZeroFreq         int     `yaml:"zero_freq"`
	OneFreq          int     `yaml:"one_freq"`
	Amplitude        float64 `yaml:"amplitude"`
	LeadInMS         int     `yaml:"lead_in_ms"`

	Detector Detector `yaml:"detector"`
	Decoder  Decoder  `yaml:"decoder"`

	// Device selects the audio boundary: "live" for the sound card, "wav"
	// for file playback/capture.
	Device    string `yaml:"device"`
	WAVOutput string `yaml:"wav_output"`
	WAVInput  string `yaml:"wav_input"`

	VizServer struct {
		Port             int `yaml:"port"`
		UpdateIntervalMS int `yaml:"update_interval_ms"`
	} `yaml:"viz_server"`

	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Detector struct {
	BinWindow    int     `yaml:"bin_window"`
	EnergyFloor  float64 `yaml:"energy_floor"`
	MinSNR       float64 `yaml:"min_snr"`
	DiffFraction float64 `yaml:"diff_fraction"`
	DiffFloor    float64 `yaml:"diff_floor"`
}

type Decoder struct {
	MaxBufferBits    int `yaml:"max_buffer_bits"`
	RetainTailBits   int `yaml:"retain_tail_bits"`
	RedetectWindowMS int `yaml:"redetect_window_ms"`
	HighConfidence   int `yaml:"high_confidence"`
}

// Default returns the shipped configuration. Loading a config file on top
// of it overrides only the fields the file names.
func Default() Config {
	var c Config
	carrier := modem.DefaultCarrierConfig()
	c.SampleRate = carrier.SampleRate
	c.SymbolDurationMS = int(carrier.SymbolDuration / time.Millisecond)
	c.ZeroFreq = carrier.ZeroFreq
	c.OneFreq = carrier.OneFreq
	c.Amplitude = carrier.Amplitude
	c.LeadInMS = int(carrier.LeadIn / time.Millisecond)

	det := detector.DefaultConfig()
	c.Detector = Detector{
		BinWindow:    det.BinWindow,
		EnergyFloor:  det.EnergyFloor,
		MinSNR:       det.MinSNR,
		DiffFraction: det.DiffFraction,
		DiffFloor:    det.DiffFloor,
	}

	asm := frame.DefaultAssemblerConfig()
	c.Decoder = Decoder{
		MaxBufferBits:    asm.MaxBufferBits,
		RetainTailBits:   asm.RetainTailBits,
		RedetectWindowMS: int(asm.RedetectWindow / time.Millisecond),
		HighConfidence:   asm.HighConfidence,
	}

	c.Device = "live"
	c.VizServer.UpdateIntervalMS = 500
	return c
}

// CarrierConfig converts to the core carrier contract.
func (c Config) CarrierConfig() modem.CarrierConfig {
	return modem.CarrierConfig{
		SampleRate:     c.SampleRate,
		SymbolDuration: time.Duration(c.SymbolDurationMS) * time.Millisecond,
		ZeroFreq:       c.ZeroFreq,
		OneFreq:        c.OneFreq,
		Amplitude:      c.Amplitude,
		LeadIn:         time.Duration(c.LeadInMS) * time.Millisecond,
	}
}

// DetectorConfig converts to the symbol detector thresholds.
func (c Config) DetectorConfig() detector.Config {
	return detector.Config{
		BinWindow:    c.Detector.BinWindow,
		EnergyFloor:  c.Detector.EnergyFloor,
		MinSNR:       c.Detector.MinSNR,
		DiffFraction: c.Detector.DiffFraction,
		DiffFloor:    c.Detector.DiffFloor,
	}
}

// AssemblerConfig converts to the frame assembler settings.
func (c Config) AssemblerConfig() frame.AssemblerConfig {
	return frame.AssemblerConfig{
		MaxBufferBits:  c.Decoder.MaxBufferBits,
		RetainTailBits: c.Decoder.RetainTailBits,
		RedetectWindow: time.Duration(c.Decoder.RedetectWindowMS) * time.Millisecond,
		HighConfidence: c.Decoder.HighConfidence,
	}
}
