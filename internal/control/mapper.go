// Package control maps control-surface and panel input onto rig state.
package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/filter"
	"github.com/coreman2200/funtimes-camrig/internal/lighting"
	"github.com/coreman2200/funtimes-camrig/internal/midi"
	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
	"github.com/coreman2200/funtimes-camrig/internal/texxform"
)

// Event is one normalised input: class, control id and 0..127 value.
type Event = midi.Message

// RotationStep is added per rotate press; angles are left unwrapped.
const RotationStep = math.Pi / 4

// glitchPad shows whether glitch is on; anything that resets filters clears it.
const glitchPad uint8 = 46

// State is the explicit application state every input mutates.
type State struct {
	Filters *filter.Controller
	Lights  *lighting.State
	Texture *texxform.State
	Targets *render.Registry

	// Brightness scales the live feed on the stream surface.
	Brightness float64
}

// NewState assembles the rig state and keeps colour-tracking filters in
// step with the light.
func NewState(f *filter.Controller, l *lighting.State, t *texxform.State, reg *render.Registry) *State {
	l.OnChange(func(light *lighting.Light) { f.SetLightColor(light.Color) })
	f.SetLightColor(l.Light().Color)
	return &State{Filters: f, Lights: l, Texture: t, Targets: reg, Brightness: 1}
}

// Actions are the operations that leave the loop: asset loads, capture and
// full reload.
type Actions interface {
	CycleModel()
	SwapEnvironment(index int)
	Reload()
	Capture(format string)
}

// Feedback lights pads on the surface. Failures are never propagated.
type Feedback interface {
	SetPad(id, color uint8) error
}

type NoFeedback struct{}

func (NoFeedback) SetPad(uint8, uint8) error { return nil }

type Mapper struct {
	st  *State
	act Actions
	fb  Feedback

	envs    []string
	changed []func()
}

func New(st *State, act Actions, fb Feedback) *Mapper {
	if fb == nil {
		fb = NoFeedback{}
	}
	return &Mapper{st: st, act: act, fb: fb}
}

// SetFeedback swaps the feedback channel, e.g. when a surface connects.
func (m *Mapper) SetFeedback(fb Feedback) {
	if fb == nil {
		fb = NoFeedback{}
	}
	m.fb = fb
}

// OnChange registers fn to run after every successful mutation.
func (m *Mapper) OnChange(fn func()) {
	if fn != nil {
		m.changed = append(m.changed, fn)
	}
}

func (m *Mapper) notify() {
	for _, fn := range m.changed {
		fn()
	}
}

func (m *Mapper) pad(id, color uint8) {
	if err := m.fb.SetPad(id, color); err != nil {
		log.Debug().Err(err).Uint8("control_id", id).Msg("pad feedback dropped")
	}
}

// Handle dispatches one input event. Unmapped ids and missing
// prerequisites are returned as errors and leave state untouched.
func (m *Mapper) Handle(ev Event) error {
	if ev.Value > 127 || ev.ID > 127 {
		return rigerr.InvalidControl("control %d value %d out of range", ev.ID, ev.Value)
	}
	var err error
	switch ev.Class {
	case midi.Change:
		err = m.change(ev.ID, ev.Value)
	case midi.Press:
		err = m.press(ev.ID)
	case midi.Release:
		m.release(ev.ID)
		return nil
	default:
		return rigerr.InvalidControl("unknown event class %d", ev.Class)
	}
	if err == nil {
		m.notify()
	}
	return err
}

func (m *Mapper) change(id, v uint8) error {
	s, ok := LookupChange(id)
	if !ok {
		return rigerr.InvalidControl("unmapped slider %d", id)
	}
	x := s.Value(v)
	log.Debug().Uint8("control_id", id).Uint8("value", v).Float64("mapped", x).Msg("slider")

	st := m.st
	switch s.Param {
	case CameraZoom:
		st.Targets.Camera.Zoom = x
	case DOFFocus:
		return st.Filters.SetUniform("dof", "focus", x)
	case DOFAperture:
		return st.Filters.SetUniform("dof", "aperture", x)
	case WebcamZoom:
		return st.Texture.SetZoom(x)
	case PixelSize:
		st.Filters.SetPixelSize(x)
	case BloomThreshold:
		return st.Filters.SetUniform("bloom", "threshold", x)
	case ObjectX, ObjectY, ObjectZ:
		st.Targets.Transform.Position[int(s.Param-ObjectX)] = float32(x)
	case LightZPreset:
		return st.Lights.SetZ(LightZ(s.Index))
	}
	return nil
}

func (m *Mapper) press(id uint8) error {
	a, ok := LookupPress(id)
	if !ok {
		return rigerr.InvalidControl("unmapped pad %d", id)
	}
	log.Debug().Uint8("control_id", id).Str("action", a.Kind.String()).Msg("press")

	if err := m.dispatch(id, a); err != nil {
		return err
	}
	switch a.Kind {
	case AdjustLightColor, ToggleGlitch, AdjustSliderParam:
		// lit by dispatch
	case Reset:
		m.pad(id, midi.Red)
	default:
		m.pad(id, midi.Green)
	}
	return nil
}

func (m *Mapper) dispatch(id uint8, a Action) error {
	st := m.st
	switch a.Kind {
	case AdjustLightColor:
		hue, sat := PadHue(id)
		st.Lights.SetColorHSL(hue, sat, 0.5)
		m.pad(id, midi.HueColor(hue, sat))
	case MoveLight:
		return st.Lights.SetZ(LightZ(a.Index))
	case SelectFilter:
		if err := st.Filters.SelectPrimary(FilterPads[a.Index]); err != nil {
			return err
		}
		m.pad(glitchPad, midi.Off)
		m.asciiPads(-1)
	case ToggleGlitch:
		on := !st.Filters.State().Secondary.Glitch.Enabled
		if err := st.Filters.ToggleSecondary(filter.Glitch, on); err != nil {
			return err
		}
		if on {
			m.pad(id, midi.Red)
		} else {
			m.pad(id, midi.Off)
		}
	case Reset:
		st.Filters.Reset()
		m.pad(glitchPad, midi.Off)
		m.asciiPads(-1)
	case AdjustSliderParam:
		if st.Filters.Primary() != filter.ASCII {
			m.asciiPads(-1)
			return rigerr.Inconsistent("ascii contrast pad %d needs the ascii filter", id)
		}
		st.Filters.SetASCIIContrast(ASCIIContrastPresets[a.Index])
		m.asciiPads(a.Index)
	case AdjustBrightness:
		st.Brightness = Brightness(a.Index)
	case RotateModel:
		return m.rotate(a.Index)
	case SwapEnvironment:
		m.act.SwapEnvironment(a.Index)
	case CycleModel:
		m.act.CycleModel()
	case AdjustLightIntensity:
		return st.Lights.SetIntensity(Intensity(a.Index))
	case Reload:
		m.act.Reload()
	}
	return nil
}

// asciiPads lights the active contrast pad and clears the rest. A negative
// index clears the whole row.
func (m *Mapper) asciiPads(active int) {
	for i := 0; i < 8; i++ {
		c := midi.Off
		if i == active {
			c = midi.Full
		}
		m.pad(uint8(48+i), c)
	}
}

func (m *Mapper) rotate(index int) error {
	if m.st.Targets.Model() == nil {
		return rigerr.Inconsistent("no model loaded to rotate")
	}
	r := &m.st.Targets.Transform.Rotation
	switch index {
	case 0:
		r[2] += RotationStep
	case 1:
		r[2] -= RotationStep
	case 2:
		r[1] -= RotationStep
	case 3:
		r[1] += RotationStep
	}
	return nil
}

// release restores pad colours only; it never touches rig state.
func (m *Mapper) release(id uint8) {
	switch {
	case id < 32:
		m.pad(id, midi.Green)
	case id >= 40 && id <= 46:
		m.pad(id, midi.Blue)
	case id == 47:
		m.pad(id, midi.Red)
	default:
		if c, ok := midi.PaletteColor(id); ok {
			m.pad(id, c)
		}
	}
}

// ModelRotation returns the model rotation in degrees, for the panel.
func (s *State) ModelRotation() mgl32.Vec3 {
	r := s.Targets.Transform.Rotation
	return mgl32.Vec3{mgl32.RadToDeg(r[0]), mgl32.RadToDeg(r[1]), mgl32.RadToDeg(r[2])}
}
