// ABOUTME: Declarative audio transform chain for the PCM output path
// ABOUTME: Stages queue input, produce output and drain on reconfiguration
package pipeline

import "fmt"

// Stage is one transform in the processing chain. A stage that reports
// inactive after Configure is bypassed entirely.
type Stage interface {
	// Plan returns the output format the stage would produce for an input,
	// without touching any state. Safe while the stage is streaming.
	Plan(in Format) (Format, error)

	// Configure prepares the stage for an input format and returns its
	// output format. Called only between streams or after a drain.
	Configure(in Format) (Format, error)

	// Active reports whether the stage transforms data in its current
	// configuration.
	Active() bool

	// Queue accepts input bytes. The stage owns nothing beyond the call;
	// it must copy what it keeps.
	Queue(p []byte)

	// Output returns transformed bytes accumulated since the last call, or
	// nil. The caller consumes the returned slice before the next call.
	Output() []byte

	// Drain signals end of input so buffered state can be flushed through
	// Output.
	Drain()

	// Drained reports whether all input has been emitted after Drain.
	Drained() bool

	// Reset discards all buffered state.
	Reset()
}

// Chain is an ordered stage composition. It is operational only for PCM
// input; compressed formats bypass it at the sink level.
type Chain struct {
	stages  []Stage
	active  []Stage
	out     Format
	drained bool
}

// NewChain creates a chain. Stage order is the processing order.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Configure configures every stage and records which ones are active.
func (c *Chain) Configure(in Format) (Format, error) {
	if !in.Encoding.IsPCM() {
		return Format{}, fmt.Errorf("pipeline: chain requires PCM input, got %s", in.Encoding)
	}
	c.active = c.active[:0]
	format := in
	for _, s := range c.stages {
		out, err := s.Configure(format)
		if err != nil {
			return Format{}, err
		}
		if s.Active() {
			c.active = append(c.active, s)
			format = out
		}
	}
	c.out = format
	c.drained = false
	return format, nil
}

// Plan computes the format the chain would produce for an input without
// reconfiguring any stage, so a pending configuration can be shaped while the
// live stream keeps flowing.
func (c *Chain) Plan(in Format) (Format, error) {
	if !in.Encoding.IsPCM() {
		return Format{}, fmt.Errorf("pipeline: chain requires PCM input, got %s", in.Encoding)
	}
	format := in
	for _, s := range c.stages {
		out, err := s.Plan(format)
		if err != nil {
			return Format{}, err
		}
		format = out
	}
	return format, nil
}

// OutputFormat returns the format produced by the configured chain.
func (c *Chain) OutputFormat() Format { return c.out }

// Push feeds input through every active stage and returns what comes out the
// far end this call.
func (c *Chain) Push(p []byte) []byte {
	data := p
	for _, s := range c.active {
		if len(data) > 0 {
			s.Queue(data)
		}
		data = s.Output()
	}
	return data
}

// Drain flushes buffered state through the chain. Call Pull until Drained.
func (c *Chain) Drain() {
	c.drained = true
	for _, s := range c.active {
		s.Drain()
	}
}

// Pull collects output that became available after Drain.
func (c *Chain) Pull() []byte {
	var data []byte
	for _, s := range c.active {
		if len(data) > 0 {
			s.Queue(data)
		}
		data = s.Output()
	}
	return data
}

// Drained reports whether every active stage has flushed.
func (c *Chain) Drained() bool {
	if !c.drained {
		return false
	}
	for _, s := range c.active {
		if !s.Drained() {
			return false
		}
	}
	return true
}

// Reset discards buffered state in all stages.
func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
	c.drained = false
}
