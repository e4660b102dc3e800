// ABOUTME: Playback engine facade owning the tick loop and presentation clock
// ABOUTME: Cross-goroutine mutations enter through a command queue drained per tick
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playsync/playsync-go/internal/clock"
	"github.com/playsync/playsync-go/internal/events"
	"github.com/playsync/playsync-go/internal/renderer"
)

// defaultTickInterval paces the render loop. Frame scheduling happens inside
// the renderers, so the loop only needs to run often enough to keep buffers
// fed.
const defaultTickInterval = 10 * time.Millisecond

// EventHandler receives engine events on the playback goroutine. Handlers
// must not block.
type EventHandler func(events.Event)

// Options configures an Engine.
type Options struct {
	Clock        clock.Clock
	Events       *events.Queue
	Renderers    []renderer.Renderer
	Handler      EventHandler
	TickInterval time.Duration

	// PositionSource, when set, drives the presentation clock from the
	// audio sink's media position. Without one the clock free-runs on the
	// system clock.
	PositionSource *renderer.AudioRenderer
}

// Engine runs all renderers from a single goroutine. Everything that touches
// renderer or clock state goes through Do; the tick loop drains those
// commands before rendering against one clock snapshot.
type Engine struct {
	clk       clock.Clock
	events    *events.Queue
	renderers []renderer.Renderer
	posSource *renderer.AudioRenderer
	handler   EventHandler
	tick      time.Duration

	mu       sync.Mutex
	commands []func()

	cancel context.CancelFunc
	done   chan struct{}

	playing          bool
	anchorPositionUs int64
	anchorElapsedUs  int64
}

// NewEngine creates an engine. Run starts the loop.
func NewEngine(opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewStandalone()
	}
	ev := opts.Events
	if ev == nil {
		ev = events.NewQueue()
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &Engine{
		clk:       clk,
		events:    ev,
		renderers: opts.Renderers,
		posSource: opts.PositionSource,
		handler:   opts.Handler,
		tick:      tick,
		done:      make(chan struct{}),
	}
}

// Events returns the queue shared with the renderers, for wiring sinks
// created outside the engine.
func (e *Engine) Events() *events.Queue { return e.events }

// Do posts fn to run on the playback goroutine at the start of the next
// tick. Commands run in post order.
func (e *Engine) Do(fn func()) {
	e.mu.Lock()
	e.commands = append(e.commands, fn)
	e.mu.Unlock()
}

// Run drives the tick loop until ctx is canceled. It blocks; callers that
// need it in the background start their own goroutine.
func (e *Engine) Run(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)
	defer close(e.done)
	defer e.teardown()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.step()
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// Play enables and starts every renderer.
func (e *Engine) Play() {
	e.Do(func() {
		for _, r := range e.renderers {
			if r.State() == renderer.StateDisabled {
				if err := r.Enable(0); err != nil {
					logrus.WithError(err).WithField("renderer", r.Name()).Error("enable failed")
					continue
				}
			}
			if r.State() != renderer.StateStarted {
				if err := r.Start(); err != nil {
					logrus.WithError(err).WithField("renderer", r.Name()).Error("start failed")
				}
			}
		}
		e.anchorElapsedUs = e.clk.ElapsedRealtimeUs()
		e.playing = true
	})
}

// Pause stops every started renderer, keeping buffered data.
func (e *Engine) Pause() {
	e.Do(func() {
		e.anchorPositionUs = e.currentPosition(e.clk.ElapsedRealtimeUs())
		e.playing = false
		for _, r := range e.renderers {
			if r.State() == renderer.StateStarted {
				if err := r.Stop(); err != nil {
					logrus.WithError(err).WithField("renderer", r.Name()).Error("stop failed")
				}
			}
		}
	})
}

// SeekTo resets every renderer to positionUs and re-anchors the clock.
func (e *Engine) SeekTo(positionUs int64) {
	e.Do(func() {
		for _, r := range e.renderers {
			r.OnPositionReset(positionUs)
		}
		e.anchorPositionUs = positionUs
		e.anchorElapsedUs = e.clk.ElapsedRealtimeUs()
	})
}

// Ended reports whether every renderer played out its track.
func (e *Engine) Ended() bool {
	for _, r := range e.renderers {
		if !r.IsEnded() {
			return false
		}
	}
	return true
}

// step is one tick: commands, then events, then one snapshot, then every
// renderer in order.
func (e *Engine) step() {
	e.mu.Lock()
	commands := e.commands
	e.commands = nil
	e.mu.Unlock()
	for _, fn := range commands {
		fn()
	}

	e.dispatchEvents()

	elapsedUs := e.clk.ElapsedRealtimeUs()
	snapshot := clock.Snapshot{
		PositionUs:        e.currentPosition(elapsedUs),
		ElapsedRealtimeUs: elapsedUs,
	}

	for _, r := range e.renderers {
		if err := r.Render(snapshot.PositionUs, snapshot.ElapsedRealtimeUs); err != nil {
			logrus.WithError(err).WithField("renderer", r.Name()).Error("render failed")
			e.events.Post(events.SinkError{Err: err})
		}
	}

	e.dispatchEvents()
}

// currentPosition reads the audio sink's media position when one exists,
// falling back to a free-running clock anchored at the last known position.
func (e *Engine) currentPosition(elapsedUs int64) int64 {
	if e.posSource != nil {
		posUs, err := e.posSource.PositionUs()
		if err != nil {
			logrus.WithError(err).Warn("position source failed")
		} else if posUs != clock.TimeUnset {
			e.anchorPositionUs = posUs
			e.anchorElapsedUs = elapsedUs
			return posUs
		}
	}
	if !e.playing {
		return e.anchorPositionUs
	}
	return e.anchorPositionUs + (elapsedUs - e.anchorElapsedUs)
}

func (e *Engine) dispatchEvents() {
	if e.handler == nil {
		e.events.Drain()
		return
	}
	for _, ev := range e.events.Drain() {
		e.handler(ev)
	}
}

// teardown disables the renderers on loop exit so device resources release.
func (e *Engine) teardown() {
	for _, r := range e.renderers {
		if r.State() == renderer.StateStarted {
			if err := r.Stop(); err != nil {
				logrus.WithError(err).WithField("renderer", r.Name()).Warn("stop on teardown failed")
			}
		}
		if r.State() != renderer.StateDisabled {
			if err := r.Disable(); err != nil {
				logrus.WithError(err).WithField("renderer", r.Name()).Warn("disable on teardown failed")
			}
		}
	}
	e.dispatchEvents()
}
