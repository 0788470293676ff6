// Package wavfile implements the audio boundary against WAV files: a
// transmission can be rendered to disk instead of a speaker, and a recorded
// capture can be replayed through the decode pipeline at real-time pace.
package wavfile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/soniclink/soniclink/pkg/modem"
)

// Output writes each Play call to path as 16-bit mono PCM.
type Output struct {
	path       string
	sampleRate int
}

func NewOutput(path string, sampleRate int) *Output {
	return &Output{path: path, sampleRate: sampleRate}
}

func (o *Output) Play(ctx context.Context, samples []float32) error {
	f, err := os.Create(o.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", o.path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, o.sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: o.sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		v := int(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		buf.Data[i] = v
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", o.path, err)
	}
	return enc.Close()
}

func (o *Output) Close() error {
	return nil
}

// Input replays a WAV capture as fixed-size blocks, paced to the duration
// each block covers so the downstream timing logic sees realistic arrival
// times.
type Input struct {
	path       string
	sampleRate int
	blockSize  int

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewInput(path string, sampleRate, blockSize int) *Input {
	return &Input{path: path, sampleRate: sampleRate, blockSize: blockSize}
}

// Start streams the file's blocks into samples and returns nil once the
// file is exhausted.
func (i *Input) Start(ctx context.Context, samples chan<- []float32) error {
	ctx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.cancel = cancel
	i.mu.Unlock()
	defer cancel()

	data, err := i.load()
	if err != nil {
		return err
	}

	interval := time.Duration(float64(i.blockSize) / float64(i.sampleRate) * float64(time.Second))
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for off := 0; off < len(data); off += i.blockSize {
		end := off + i.blockSize
		if end > len(data) {
			end = len(data)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case samples <- data[off:end]:
		}
	}
	return nil
}

func (i *Input) load() ([]float32, error) {
	f, err := os.Open(i.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", i.path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid wav file", i.path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", i.path, err)
	}
	if buf.Format.SampleRate != i.sampleRate {
		return nil, fmt.Errorf("%w: wav sample rate %d, configured %d",
			modem.ErrNotReady, buf.Format.SampleRate, i.sampleRate)
	}
	if buf.Format.NumChannels != 1 {
		return nil, fmt.Errorf("%s: expected mono, got %d channels", i.path, buf.Format.NumChannels)
	}

	scale := float32(int(1) << (dec.BitDepth - 1))
	out := make([]float32, len(buf.Data))
	for n, v := range buf.Data {
		out[n] = float32(v) / scale
	}
	return out, nil
}

func (i *Input) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
	return nil
}
