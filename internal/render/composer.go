package render

import (
	"time"
)

// PassContext carries per-frame inputs available to every pass.
type PassContext struct {
	T     float64 // seconds since composer start
	Frame uint64
}

// Pass is one stage of the pixel-processing pipeline.
type Pass interface {
	Name() string
	Enabled() bool
	Apply(src Frame, pc PassContext) Frame
}

// Resizer is implemented by passes holding size-dependent buffers.
type Resizer interface {
	SetSize(w, h int)
}

// Composer runs the ordered pass list over a rendered frame.
type Composer struct {
	passes []Pass
	w, h   int
	frame  uint64
	t0     time.Time

	// metrics of the last Render
	Last Metrics
}

// Metrics describe one Render call.
type Metrics struct {
	PostMS float64 `json:"post_ms"`
	Passes int     `json:"passes"`
}

func NewComposer(w, h int) *Composer {
	return &Composer{w: w, h: h, t0: time.Now()}
}

func (c *Composer) AddPass(p Pass) {
	if p == nil {
		return
	}
	if r, ok := p.(Resizer); ok {
		r.SetSize(c.w, c.h)
	}
	c.passes = append(c.passes, p)
}

// RemovePass detaches p by identity. Returns false if p was not attached.
func (c *Composer) RemovePass(p Pass) bool {
	for i, x := range c.passes {
		if x == p {
			c.passes = append(c.passes[:i], c.passes[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Composer) Contains(p Pass) bool {
	for _, x := range c.passes {
		if x == p {
			return true
		}
	}
	return false
}

func (c *Composer) Passes() []Pass {
	out := make([]Pass, len(c.passes))
	copy(out, c.passes)
	return out
}

func (c *Composer) Size() (int, int) { return c.w, c.h }

func (c *Composer) SetSize(w, h int) {
	c.w, c.h = w, h
	for _, p := range c.passes {
		if r, ok := p.(Resizer); ok {
			r.SetSize(w, h)
		}
	}
}

// Render applies enabled passes in order. src is never mutated.
func (c *Composer) Render(src Frame) Frame {
	start := time.Now()
	pc := PassContext{T: time.Since(c.t0).Seconds(), Frame: c.frame}
	c.frame++

	out := src
	n := 0
	for _, p := range c.passes {
		if !p.Enabled() {
			continue
		}
		if res := p.Apply(out, pc); res != nil {
			out = res
		}
		n++
	}
	c.Last.Passes = n
	c.Last.PostMS = float64(time.Since(start).Microseconds()) / 1000.0
	return out
}
