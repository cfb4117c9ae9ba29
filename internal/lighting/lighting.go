// Package lighting holds the single scene light. Changing the kind rebuilds
// the light object; intensity and colour are mutated in place.
package lighting

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

type Kind string

const (
	Directional Kind = "directional"
	Ambient     Kind = "ambient"
	Point       Kind = "point"
	Spot        Kind = "spot"
)

var Kinds = []Kind{Directional, Ambient, Point, Spot}

// ParseKind accepts the short names and the panel's DirectionalLight style.
func ParseKind(s string) (Kind, error) {
	k := strings.TrimSuffix(strings.ToLower(s), "light")
	for _, kk := range Kinds {
		if string(kk) == k {
			return kk, nil
		}
	}
	return "", rigerr.InvalidControl("unknown light type %q", s)
}

const (
	DefaultIntensity = 4.0
	MaxIntensity     = 20.0
)

// DefaultPosition is where every rebuilt light is placed.
var DefaultPosition = mgl32.Vec3{5, 10, 20}

// Light is one light instance attached to the scene.
type Light struct {
	Kind      Kind
	Intensity float64
	Color     render.Color
	Position  mgl32.Vec3
	Distance  float64 // point
	Angle     float64 // spot
	Penumbra  float64 // spot

	disposed bool
}

func (l *Light) Dispose()       { l.disposed = true }
func (l *Light) Disposed() bool { return l.disposed }

func build(k Kind, intensity float64, c render.Color) *Light {
	l := &Light{Kind: k, Intensity: intensity, Color: c}
	switch k {
	case Directional:
		l.Position = DefaultPosition
	case Point:
		l.Position = DefaultPosition
		l.Distance = 50
	case Spot:
		l.Position = DefaultPosition
		l.Angle = math.Pi / 6
		l.Penumbra = 0.1
	}
	return l
}

// Snapshot is the serialisable lighting state.
type Snapshot struct {
	Kind      Kind    `json:"kind"`
	Intensity float64 `json:"intensity"`
	Color     string  `json:"color"`
	Z         float32 `json:"z"`
}

type State struct {
	scene render.Scene
	light *Light

	listeners []func(*Light)
}

// New adds the default white directional light to scene.
func New(scene render.Scene) *State {
	s := &State{scene: scene, light: build(Directional, DefaultIntensity, render.Color{R: 1, G: 1, B: 1})}
	scene.Add(s.light)
	return s
}

// OnChange registers fn to run after every light change.
func (s *State) OnChange(fn func(*Light)) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

func (s *State) notify() {
	for _, fn := range s.listeners {
		fn(s.light)
	}
}

// SetType removes the current light and builds one of kind k at the
// default position, keeping intensity and colour.
func (s *State) SetType(k Kind) error {
	if _, err := ParseKind(string(k)); err != nil {
		return err
	}
	s.Rebuild(k)
	return nil
}

// Rebuild replaces the light object.
func (s *State) Rebuild(k Kind) {
	old := s.light
	s.scene.Remove(old)
	old.Dispose()
	s.light = build(k, old.Intensity, old.Color)
	s.scene.Add(s.light)
	log.Debug().Str("kind", string(k)).Float64("intensity", s.light.Intensity).Msg("light rebuilt")
	s.notify()
}

func (s *State) SetIntensity(v float64) error {
	if v < 0 || math.IsNaN(v) {
		return rigerr.InvalidControl("light intensity %v below zero", v)
	}
	s.light.Intensity = v
	s.notify()
	return nil
}

func (s *State) SetColor(c render.Color) {
	s.light.Color = c
	s.notify()
}

// SetColorHSL sets the colour from hue in degrees, saturation and lightness in [0,1].
func (s *State) SetColorHSL(h, sat, l float64) {
	s.SetColor(fromColorful(colorful.Hsl(h, sat, l).Clamped()))
}

func (s *State) SetColorHex(hex string) error {
	c, err := colorful.Hex(hex)
	if err != nil {
		return rigerr.InvalidControl("light colour %q: %v", hex, err)
	}
	s.SetColor(fromColorful(c))
	return nil
}

// SetZ moves a directional light along z. Other kinds have no such preset.
func (s *State) SetZ(z float64) error {
	if s.light.Kind != Directional {
		return rigerr.Inconsistent("light z preset needs a directional light, have %s", s.light.Kind)
	}
	s.light.Position[2] = float32(z)
	s.notify()
	return nil
}

func (s *State) Light() *Light { return s.light }

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Kind:      s.light.Kind,
		Intensity: s.light.Intensity,
		Color:     Hex(s.light.Color),
		Z:         s.light.Position.Z(),
	}
}

// Sample is what the raster needs for shading.
func (s *State) Sample() render.LightSample {
	return render.LightSample{Color: s.light.Color, Intensity: s.light.Intensity, Ambient: s.light.Kind == Ambient}
}

func Hex(c render.Color) string {
	return colorful.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B)}.Clamped().Hex()
}

func fromColorful(c colorful.Color) render.Color {
	return render.Color{R: float32(c.R), G: float32(c.G), B: float32(c.B)}
}
