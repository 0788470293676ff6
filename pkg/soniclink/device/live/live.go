// Package live drives the actual speaker and microphone through miniaudio.
package live

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/soniclink/soniclink/pkg/modem"
)

// Device owns one miniaudio context and hands out playback and capture
// sessions on it. Samples are mono 32-bit floats on both sides.
type Device struct {
	actx       *malgo.AllocatedContext
	sampleRate int
	blockSize  int
	logger     zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(sampleRate, blockSize int, logger zerolog.Logger) (*Device, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Str("source", "miniaudio").Msg(strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", modem.ErrDeviceUnavailable, err)
	}
	return &Device{
		actx:       actx,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		logger:     logger,
	}, nil
}

// Play renders the buffer to the default playback device and returns once
// the last sample has been handed to the hardware.
func (d *Device) Play(ctx context.Context, samples []float32) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(d.sampleRate)
	cfg.Alsa.NoMMap = 1

	done := make(chan struct{})
	var once sync.Once
	pos := 0

	onSamples := func(out, _ []byte, frames uint32) {
		for i := 0; i < int(frames); i++ {
			var v float32
			if pos < len(samples) {
				v = samples[pos]
				pos++
			}
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
		if pos >= len(samples) {
			once.Do(func() { close(done) })
		}
	}

	dev, err := malgo.InitDevice(d.actx.Context, cfg, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("%w: init playback: %v", modem.ErrDeviceUnavailable, err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("%w: start playback: %v", modem.ErrDeviceUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	// The callback has consumed the buffer; give the DAC a moment to drain
	// before tearing the device down.
	time.Sleep(50 * time.Millisecond)
	return nil
}

// Start captures from the default microphone and sends blockSize-sample
// blocks into samples until the context is canceled or Stop is called.
// Blocks are dropped, not queued, when the consumer falls behind.
func (d *Device) Start(ctx context.Context, samples chan<- []float32) error {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(d.sampleRate)
	cfg.Alsa.NoMMap = 1

	block := make([]float32, 0, d.blockSize)
	onRecv := func(_, in []byte, frames uint32) {
		for i := 0; i+4 <= len(in); i += 4 {
			block = append(block, math.Float32frombits(binary.LittleEndian.Uint32(in[i:])))
			if len(block) < d.blockSize {
				continue
			}
			b := block
			block = make([]float32, 0, d.blockSize)
			select {
			case samples <- b:
			default:
				d.logger.Warn().Msg("capture block dropped, consumer behind")
			}
		}
	}

	dev, err := malgo.InitDevice(d.actx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return fmt.Errorf("%w: init capture: %v", modem.ErrDeviceUnavailable, err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("%w: start capture: %v", modem.ErrDeviceUnavailable, err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Stop ends a running capture session.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	return nil
}

// Close releases the miniaudio context. The device is unusable afterwards.
func (d *Device) Close() error {
	err := d.actx.Uninit()
	d.actx.Free()
	return err
}
