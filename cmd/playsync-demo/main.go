// ABOUTME: Demo binary playing a tone or MP3 file through the sync engine
// ABOUTME: Wires flags, logging, quirks, the oto device and an audio renderer
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/playsync/playsync-go/internal/device"
	"github.com/playsync/playsync-go/internal/events"
	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/renderer"
	"github.com/playsync/playsync-go/internal/sink"
	"github.com/playsync/playsync-go/internal/source"
	"github.com/playsync/playsync-go/internal/version"
	"github.com/playsync/playsync-go/pkg/playback"
)

func main() {
	var (
		mp3Path    = flag.String("file", "", "MP3 file to play (empty plays a test tone)")
		toneHz     = flag.Float64("tone-hz", 440.0, "test tone frequency")
		durationS  = flag.Int("duration", 5, "test tone duration in seconds")
		speed      = flag.Float64("speed", 1.0, "playback speed")
		skipSilent = flag.Bool("skip-silence", false, "skip silent passages")
		quirksPath = flag.String("quirks", "", "device quirk table YAML")
		verbose    = flag.BoolP("verbose", "v", false, "debug logging")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.WithField("version", version.Version).Infof("%s starting", version.Product)

	quirks, err := device.LoadQuirks(*quirksPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading quirk table")
	}

	dec, format, closer, err := openSource(*mp3Path, *toneHz, int64(*durationS)*1_000_000)
	if err != nil {
		logrus.WithError(err).Fatal("opening source")
	}
	defer closer()

	ev := events.NewQueue()
	snk := sink.New(sink.Options{
		Factory: func(cfg sink.Configuration) (device.Output, error) {
			return device.OpenOto(cfg.OutputFormat.SampleRate, cfg.OutputFormat.Channels, cfg.BufferSize)
		},
		Events: ev,
		Quirks: quirks.Lookup(device.Identity{}),
	})
	audio := renderer.NewAudioRenderer(dec, snk, format)

	engine := playback.NewEngine(playback.Options{
		Events:         ev,
		Renderers:      []renderer.Renderer{audio},
		PositionSource: audio,
		Handler:        logEvent,
	})

	if *speed != 1.0 {
		audio.SetPlaybackParameters(sink.PlaybackParameters{Speed: *speed, Pitch: 1.0})
	}
	if *skipSilent {
		audio.SetSkipSilence(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.Play()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
				if engine.Ended() {
					stop()
					return
				}
			}
		}
	}()

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		logrus.WithError(err).Fatal("engine stopped")
	}
	logrus.Info("playback finished")
}

func openSource(path string, toneHz float64, toneDurationUs int64) (renderer.Decoder, pipeline.Format, func(), error) {
	if path == "" {
		tone := source.NewTone(toneHz, 48000, 2, toneDurationUs)
		return tone, tone.Format(), func() {}, nil
	}
	mp3, err := source.OpenMP3(path)
	if err != nil {
		return nil, pipeline.Format{}, nil, err
	}
	return mp3, mp3.Format(), func() { _ = mp3.Close() }, nil
}

func logEvent(e events.Event) {
	switch ev := e.(type) {
	case events.SinkError:
		logrus.WithError(ev.Err).Error("sink error")
	case events.Underrun:
		logrus.WithFields(logrus.Fields{
			"bufferSize": ev.BufferSize,
			"bufferUs":   ev.BufferDurationUs,
		}).Warn("device underrun")
	case events.PositionDiscontinuity:
		logrus.WithField("adjustmentUs", ev.AdjustmentUs).Warn("position discontinuity")
	case events.SilenceSkipped:
		logrus.WithField("durationUs", ev.DurationUs).Info("skipped silence")
	case events.DroppedFrames:
		logrus.WithFields(logrus.Fields{
			"count":     ev.Count,
			"elapsedMs": ev.ElapsedMs,
		}).Warn("dropped frames")
	default:
		logrus.WithField("event", e).Debug("engine event")
	}
}
