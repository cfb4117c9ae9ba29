// Package texxform computes the UV transform applied to the live camera
// texture before it is sampled onto a model's stream surface.
package texxform

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// Baked is the fixed per-model feed orientation.
type Baked struct {
	Rotation float64
	Flip     float64
}

type Transform struct {
	Zoom     float64 `json:"zoom"`
	Rotation float64 `json:"rotation"`
	Flip     float64 `json:"flip"`
	OffsetX  float64 `json:"offset_x"`
	OffsetY  float64 `json:"offset_y"`
}

type State struct {
	table  map[string]Baked
	model  string
	t      Transform
	matrix mgl32.Mat3
}

func New(table map[string]Baked) *State {
	s := &State{
		table: table,
		t:     Transform{Zoom: 1, Flip: 1, OffsetX: 0.5, OffsetY: 0.5},
	}
	s.recompute()
	return s
}

// SetModel applies the baked orientation for key. Zoom and offset carry over.
func (s *State) SetModel(key string) error {
	b, ok := s.table[key]
	if !ok {
		return rigerr.InvalidControl("no texture orientation for model %q", key)
	}
	s.model = key
	s.t.Rotation = b.Rotation
	s.t.Flip = b.Flip
	if s.t.Flip == 0 {
		s.t.Flip = 1
	}
	s.recompute()
	log.Debug().Str("model", key).Float64("rotation", s.t.Rotation).Float64("flip", s.t.Flip).Msg("texture transform")
	return nil
}

func (s *State) SetZoom(z float64) error {
	if z <= 0 {
		return rigerr.InvalidControl("zoom must be positive, got %v", z)
	}
	s.t.Zoom = z
	s.recompute()
	return nil
}

func (s *State) SetOffset(x, y float64) error {
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return rigerr.InvalidControl("offset (%v,%v) outside [0,1]", x, y)
	}
	s.t.OffsetX, s.t.OffsetY = x, y
	s.recompute()
	return nil
}

func (s *State) Model() string      { return s.model }
func (s *State) Current() Transform { return s.t }
func (s *State) Matrix() mgl32.Mat3 { return s.matrix }

// Apply maps a surface UV to a feed UV.
func (s *State) Apply(u, v float32) (float32, float32) {
	p := s.matrix.Mul3x1(mgl32.Vec3{u, v, 1})
	return p.X(), p.Y()
}

// recompute builds offset * rotate * scale(zoom*flip, zoom) * translate(-0.5),
// i.e. the feed is rotated and scaled about its centre then placed at offset.
func (s *State) recompute() {
	z := float32(s.t.Zoom)
	m := mgl32.Translate2D(float32(s.t.OffsetX), float32(s.t.OffsetY))
	m = m.Mul3(mgl32.HomogRotate2D(float32(s.t.Rotation)))
	m = m.Mul3(mgl32.Scale2D(z*float32(s.t.Flip), z))
	s.matrix = m.Mul3(mgl32.Translate2D(-0.5, -0.5))
}
