// Package soniclink wires the modem core to the audio devices: one Link is
// one session end, able to transmit text and to run a listen pipeline that
// turns captured sample blocks into decoded messages.
package soniclink

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/soniclink/soniclink/pkg/dsp/detector"
	"github.com/soniclink/soniclink/pkg/dsp/spectrum"
	"github.com/soniclink/soniclink/pkg/dsp/viz"
	"github.com/soniclink/soniclink/pkg/modem"
	"github.com/soniclink/soniclink/pkg/modem/frame"
	"github.com/soniclink/soniclink/pkg/modem/fsk"
	"github.com/soniclink/soniclink/pkg/soniclink/device"
	"github.com/soniclink/soniclink/pkg/util"
)

// Options collects the modem core settings for one link end.
type Options struct {
	Carrier   modem.CarrierConfig
	Detector  detector.Config
	Assembler frame.AssemblerConfig
}

// Message is one decoded transmission.
type Message struct {
	Text       string
	ReceivedAt time.Time
}

// Link is a long-lived session object. Construct one per active session and
// reuse it across transmissions; the decode pipeline runs on a single
// goroutine inside Start.
type Link struct {
	opts   Options
	output device.Output
	input  device.Input

	logger    zerolog.Logger
	writeAPI  api.WriteAPI
	vizServer *viz.Server

	modulator *fsk.Modulator
	analyzer  *spectrum.Analyzer
	detector  *detector.Detector
	assembler *frame.Assembler

	spectrumPlot *viz.SpectrumPlotter
	qualityPlot  *viz.QualityPlotter

	messages chan Message

	mu     sync.Mutex
	cancel context.CancelFunc
}

type LinkOption func(l *Link) error

func WithLogger(logger zerolog.Logger) LinkOption {
	return func(l *Link) error {
		l.logger = logger
		return nil
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) LinkOption {
	return func(l *Link) error {
		l.writeAPI = writeAPI
		return nil
	}
}

func WithImageServer(vizServer *viz.Server) LinkOption {
	return func(l *Link) error {
		l.vizServer = vizServer
		return nil
	}
}

// NewLink validates the carrier contract once and builds the pipeline.
// output and input may each be nil for a one-directional end.
func NewLink(output device.Output, input device.Input, opts Options, options ...LinkOption) (*Link, error) {
	l := &Link{
		opts:     opts,
		output:   output,
		input:    input,
		logger:   log.Logger,
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		messages: make(chan Message, 8),
	}
	for _, opt := range options {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	modulator, err := fsk.NewModulator(opts.Carrier)
	if err != nil {
		return nil, err
	}
	l.modulator = modulator

	// One analysis block per symbol slot keeps the snapshot cadence equal
	// to the symbol cadence.
	l.analyzer = spectrum.NewAnalyzer(opts.Carrier.SamplesPerSymbol(), opts.Carrier.SampleRate)
	l.detector = detector.New(opts.Carrier, opts.Detector)
	l.assembler = frame.NewAssembler(opts.Assembler, l.logger)
	l.assembler.Events = l.events()

	if l.vizServer != nil {
		l.spectrumPlot = viz.NewSpectrumPlotter("spectrum", l.analyzer.BinSize(),
			[]int{opts.Carrier.ZeroFreq, opts.Carrier.OneFreq})
		l.qualityPlot = viz.NewQualityPlotter("quality", 200)
		l.vizServer.Register(l.spectrumPlot)
		l.vizServer.Register(l.qualityPlot)
	}

	return l, nil
}

func (l *Link) events() frame.Events {
	return frame.Events{
		SymbolAccepted: func(bit byte, d modem.Decision) {
			if l.qualityPlot != nil {
				l.qualityPlot.Append(d.Quality)
			}
			go l.writeAPI.WritePoint(influxdb2.NewPoint("symbol.accepted",
				map[string]string{"bit": fmt.Sprintf("%d", bit)},
				map[string]interface{}{"quality": d.Quality, "snr": d.SNR},
				time.Now()))
		},
		SymbolRejected: func(d modem.Decision) {
			if l.qualityPlot != nil {
				l.qualityPlot.Append(0)
			}
			go l.writeAPI.WritePoint(influxdb2.NewPoint("symbol.rejected",
				map[string]string{"symbol": d.Symbol.String()},
				map[string]interface{}{"quality": d.Quality, "snr": d.SNR},
				time.Now()))
		},
		SyncFound: func() {
			l.logger.Info().Msg("preamble detected, synchronized")
			go l.writeAPI.WritePoint(influxdb2.NewPoint("frame.sync",
				nil, map[string]interface{}{"count": 1}, time.Now()))
		},
		FrameDecoded: func(text string) {
			go l.writeAPI.WritePoint(influxdb2.NewPoint("frame.decoded",
				nil, map[string]interface{}{"bytes": len(text)}, time.Now()))
		},
	}
}

// Send modulates text and plays it through the output device, returning
// once playback completed.
func (l *Link) Send(ctx context.Context, text string) error {
	if l.output == nil {
		return fmt.Errorf("%w: no output device", modem.ErrNotReady)
	}
	samples, err := l.modulator.Modulate(text)
	if err != nil {
		return err
	}
	l.logger.Info().
		Int("bytes", len(text)).
		Int("samples", len(samples)).
		Dur("duration", time.Duration(float64(len(samples))/float64(l.opts.Carrier.SampleRate)*float64(time.Second))).
		Msg("transmitting")
	if err := l.output.Play(ctx, samples); err != nil {
		return err
	}
	l.logger.Info().Msg("transmission complete")
	return nil
}

// Messages returns the channel decoded texts arrive on. Messages are
// dropped, not queued indefinitely, when nothing reads the channel.
func (l *Link) Messages() <-chan Message {
	return l.messages
}

// Start runs the listen pipeline until the context is canceled, Stop is
// called, or a finite input (a WAV replay) is exhausted.
func (l *Link) Start(ctx context.Context) error {
	if l.input == nil {
		return fmt.Errorf("%w: no input device", modem.ErrNotReady)
	}

	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	if l.vizServer != nil {
		eg.Go(func() error {
			return l.vizServer.Run(ctx)
		})
	}

	samples := make(chan []float32, 8)
	eg.Go(func() error {
		defer close(samples)
		return l.input.Start(ctx, samples)
	})
	eg.Go(func() error {
		return l.receive(ctx, samples)
	})

	return eg.Wait()
}

func (l *Link) receive(ctx context.Context, samples <-chan []float32) error {
	defer l.assembler.Reset()

	bins := make([]float64, l.analyzer.PredictOutputSize(l.analyzer.Size()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-samples:
			if !ok {
				// Finite input exhausted; the session is over.
				l.mu.Lock()
				if l.cancel != nil {
					l.cancel()
				}
				l.mu.Unlock()
				return nil
			}
			l.analyzer.WorkBuffer(block, bins)
			if l.spectrumPlot != nil {
				l.spectrumPlot.Update(bins)
			}
			d := l.detector.Detect(bins, l.analyzer.BinSize())
			text, decoded := l.assembler.OnSymbol(d, time.Now())
			if !decoded {
				continue
			}
			msg := Message{Text: text, ReceivedAt: time.Now()}
			select {
			case l.messages <- msg:
			default:
				l.logger.Warn().Str("text", text).Msg("message dropped, consumer behind")
			}
		}
	}
}

// Stop ends a running listen session and shuts the diagnostic server down.
func (l *Link) Stop() error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()
	if l.vizServer != nil {
		return l.vizServer.Stop(context.TODO())
	}
	return nil
}
