// ABOUTME: Oto-backed audio output device implementation
// ABOUTME: Non-blocking ring-buffered writes with a hardware-style frame counter
package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Oto adapts the oto/v3 playback context to the Output contract. Writes go
// into a bounded ring buffer; oto's player pulls from it on its own thread,
// so Write never blocks. The consumed byte count stands in for a hardware
// frame counter.
type Oto struct {
	handle     string
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
	frameBytes int

	mu       sync.Mutex
	ring     []byte
	start    int
	length   int
	consumed int64
	open     bool
}

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// OpenOto creates an oto-backed output for 16-bit little-endian PCM.
// bufferBytes bounds the ring; a full ring surfaces as short writes.
func OpenOto(sampleRate, channels, bufferBytes int) (*Oto, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		return nil, fmt.Errorf("oto context: %w", otoErr)
	}

	o := &Oto{
		handle:     uuid.New().String(),
		otoCtx:     otoCtx,
		sampleRate: sampleRate,
		channels:   channels,
		frameBytes: channels * 2,
		ring:       make([]byte, bufferBytes),
		open:       true,
	}
	o.player = otoCtx.NewPlayer(otoReader{o})

	logrus.WithFields(logrus.Fields{
		"handle":     o.handle,
		"sampleRate": sampleRate,
		"channels":   channels,
		"bufferSize": bufferBytes,
	}).Info("audio device opened")

	return o, nil
}

// Handle returns the device handle ID used for log correlation.
func (o *Oto) Handle() string { return o.handle }

func (o *Oto) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return 0, ErrNotOpen
	}

	free := len(o.ring) - o.length
	n := len(p)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		o.ring[(o.start+o.length+i)%len(o.ring)] = p[i]
	}
	o.length += n
	return n, nil
}

func (o *Oto) PositionFrames() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consumed / int64(o.frameBytes)
}

func (o *Oto) BufferSize() int { return len(o.ring) }

func (o *Oto) LatencyUs() int64 {
	// oto exposes no latency query; approximate with the ring capacity.
	frames := int64(len(o.ring) / o.frameBytes)
	return frames * 1_000_000 / int64(o.sampleRate)
}

func (o *Oto) Play() error {
	o.mu.Lock()
	open := o.open
	o.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	o.player.Play()
	return nil
}

func (o *Oto) Pause() error {
	o.mu.Lock()
	open := o.open
	o.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	o.player.Pause()
	return nil
}

func (o *Oto) Stop() error {
	if err := o.Pause(); err != nil {
		return err
	}
	o.mu.Lock()
	o.start = 0
	o.length = 0
	o.mu.Unlock()
	return nil
}

func (o *Oto) Release() error {
	o.mu.Lock()
	if !o.open {
		o.mu.Unlock()
		return nil
	}
	o.open = false
	o.mu.Unlock()

	err := o.player.Close()
	logrus.WithField("handle", o.handle).Info("audio device released")
	return err
}

func (o *Oto) Capabilities() Capabilities {
	// oto drives raw PCM only.
	return Capabilities{}
}

// otoReader feeds the oto player from the ring. On underrun it supplies
// silence so the player keeps running; silence does not advance the
// consumed counter.
type otoReader struct{ o *Oto }

func (r otoReader) Read(p []byte) (int, error) {
	o := r.o
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.open {
		return 0, io.EOF
	}
	if o.length == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := len(p)
	if n > o.length {
		n = o.length
	}
	for i := 0; i < n; i++ {
		p[i] = o.ring[(o.start+i)%len(o.ring)]
	}
	o.start = (o.start + n) % len(o.ring)
	o.length -= n
	o.consumed += int64(n)
	return n, nil
}
