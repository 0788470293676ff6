package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/soniclink/soniclink/pkg/dsp/viz"
	"github.com/soniclink/soniclink/pkg/soniclink"
	"github.com/soniclink/soniclink/pkg/soniclink/config"
	"github.com/soniclink/soniclink/pkg/soniclink/device"
	"github.com/soniclink/soniclink/pkg/soniclink/device/live"
	"github.com/soniclink/soniclink/pkg/soniclink/device/wavfile"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	configFile := flag.String("config", "", "YAML config file")
	sendText := flag.String("send", "", "text to transmit")
	listen := flag.Bool("listen", false, "listen for incoming messages")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *sendText == "" && !*listen {
		flag.Usage()
		os.Exit(1)
	}
	if *verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	opts := config.Default()
	if *configFile != "" {
		contents, err := os.ReadFile(*configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("error reading config file")
		}
		if err := yaml.Unmarshal(contents, &opts); err != nil {
			log.Fatal().Err(err).Msg("error unmarshaling yaml file")
		}
	}

	carrier := opts.CarrierConfig()

	var output device.Output
	var input device.Input
	var closeDevice func() error

	switch opts.Device {
	case "wav":
		if opts.WAVOutput != "" {
			output = wavfile.NewOutput(opts.WAVOutput, carrier.SampleRate)
		}
		if opts.WAVInput != "" {
			input = wavfile.NewInput(opts.WAVInput, carrier.SampleRate, carrier.SamplesPerSymbol())
		}
	default:
		log.Info().Str("device", "live").Msg("initializing audio device...")
		dev, err := live.New(carrier.SampleRate, carrier.SamplesPerSymbol(), log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize audio device")
		}
		output = dev
		input = dev
		closeDevice = dev.Close
	}
	if closeDevice != nil {
		defer closeDevice()
	}

	linkOptions := []soniclink.LinkOption{soniclink.WithLogger(log.Logger)}

	if opts.InfluxDB.Host != "" {
		writeAPI := influxdb2.NewClient(opts.InfluxDB.Host, "").
			WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
		linkOptions = append(linkOptions, soniclink.WithInfluxDB(writeAPI))
	}
	if opts.VizServer.Port > 0 {
		vizServer := viz.NewServer(opts.VizServer.Port,
			time.Duration(opts.VizServer.UpdateIntervalMS)*time.Millisecond)
		linkOptions = append(linkOptions, soniclink.WithImageServer(vizServer))
	}

	link, err := soniclink.NewLink(output, input, soniclink.Options{
		Carrier:   carrier,
		Detector:  opts.DetectorConfig(),
		Assembler: opts.AssemblerConfig(),
	}, linkOptions...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create link")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(rootCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		return link.Stop()
	})

	if *sendText != "" {
		eg.Go(func() error {
			if !*listen {
				defer cancel()
			}
			return link.Send(ctx, *sendText)
		})
	}

	if *listen {
		eg.Go(func() error {
			defer cancel()
			return link.Start(ctx)
		})
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg := <-link.Messages():
					log.Info().
						Str("text", msg.Text).
						Time("received_at", msg.ReceivedAt).
						Msg("message received")
				}
			}
		})
	}

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}
