package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/coreman2200/funtimes-camrig/internal/filter"
	"github.com/coreman2200/funtimes-camrig/internal/lighting"
	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

type Kind string

const (
	Range     Kind = "range"
	Select    Kind = "select"
	Checkbox  Kind = "checkbox"
	ColorPick Kind = "color"
	Button    Kind = "button"
)

// Descriptor is one typed panel control.
type Descriptor struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Kind    Kind     `json:"kind"`
	Folder  string   `json:"folder,omitempty"`
	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Descriptors returns the panel layout. envs names the selectable
// environment maps.
func Descriptors(envs []string) []Descriptor {
	primaries := make([]string, 0, len(filter.Primaries))
	for _, p := range filter.Primaries {
		primaries = append(primaries, string(p))
	}
	kinds := make([]string, 0, len(lighting.Kinds))
	for _, k := range lighting.Kinds {
		kinds = append(kinds, string(k))
	}
	return []Descriptor{
		{Key: "model.next", Label: "Next Model", Kind: Button, Folder: "Model"},
		{Key: "environment", Label: "Environment", Kind: Select, Folder: "Model", Options: envs},
		{Key: "webcam.brightness", Label: "Screen Brightness", Kind: Range, Folder: "Webcam", Min: -1, Max: 5, Step: 0.01},
		{Key: "webcam.zoom", Label: "Webcam Zoom", Kind: Range, Folder: "Webcam", Min: 0.1, Max: 5, Step: 0.01},
		{Key: "webcam.offset_x", Label: "Webcam Offset X", Kind: Range, Folder: "Webcam", Min: 0, Max: 1, Step: 0.01},
		{Key: "webcam.offset_y", Label: "Webcam Offset Y", Kind: Range, Folder: "Webcam", Min: 0, Max: 1, Step: 0.01},
		{Key: "pixel.enabled", Label: "Pixelation", Kind: Checkbox, Folder: "Effects"},
		{Key: "pixel.size", Label: "Pixel Level", Kind: Range, Folder: "Effects", Min: 1, Max: 600, Step: 1},
		{Key: "bloom.enabled", Label: "Bloom", Kind: Checkbox, Folder: "Bloom"},
		{Key: "bloom.threshold", Label: "Threshold", Kind: Range, Folder: "Bloom", Min: 0, Max: 3, Step: 0.01},
		{Key: "bloom.strength", Label: "Strength", Kind: Range, Folder: "Bloom", Min: 0, Max: 3, Step: 0.01},
		{Key: "bloom.radius", Label: "Radius", Kind: Range, Folder: "Bloom", Min: 0, Max: 1, Step: 0.01},
		{Key: "dof.enabled", Label: "Depth of Field", Kind: Checkbox, Folder: "DOF"},
		{Key: "dof.focus", Label: "Focus", Kind: Range, Folder: "DOF", Min: 0.1, Max: 20, Step: 0.1},
		{Key: "dof.aperture", Label: "Aperture", Kind: Range, Folder: "DOF", Min: 0.001, Max: 0.1, Step: 0.001},
		{Key: "dof.maxblur", Label: "Max Blur", Kind: Range, Folder: "DOF", Min: 0, Max: 0.1, Step: 0.001},
		{Key: "glitch.enabled", Label: "Glitch", Kind: Checkbox, Folder: "Glitch"},
		{Key: "glitch.wild", Label: "Glitch Me Wild", Kind: Checkbox, Folder: "Glitch"},
		{Key: "filter", Label: "Filter", Kind: Select, Folder: "Filters", Options: primaries},
		{Key: "effect.step", Label: "Effect Step", Kind: Range, Folder: "Filters", Min: 0, Max: 7, Step: 1},
		{Key: "reset", Label: "Reset Effects", Kind: Button, Folder: "Filters"},
		{Key: "ascii.contrast", Label: "Contrast", Kind: Range, Folder: "ASCII", Min: 0, Max: 100, Step: 1},
		{Key: "ascii.invert", Label: "Invert", Kind: Checkbox, Folder: "ASCII"},
		{Key: "ascii.font", Label: "Font", Kind: Select, Folder: "ASCII", Options: filter.Fonts},
		{Key: "object.x", Label: "Position X", Kind: Range, Folder: "Object", Min: -10, Max: 10, Step: 0.1},
		{Key: "object.y", Label: "Position Y", Kind: Range, Folder: "Object", Min: -10, Max: 10, Step: 0.1},
		{Key: "object.z", Label: "Position Z", Kind: Range, Folder: "Object", Min: -10, Max: 10, Step: 0.1},
		{Key: "object.rot_x", Label: "Rotation X", Kind: Range, Folder: "Object", Min: -180, Max: 180, Step: 1},
		{Key: "object.rot_y", Label: "Rotation Y", Kind: Range, Folder: "Object", Min: -180, Max: 180, Step: 1},
		{Key: "object.rot_z", Label: "Rotation Z", Kind: Range, Folder: "Object", Min: -180, Max: 180, Step: 1},
		{Key: "camera.zoom", Label: "Camera Zoom", Kind: Range, Folder: "Camera", Min: 0.1, Max: 10, Step: 0.1},
		{Key: "light.type", Label: "Light Type", Kind: Select, Folder: "Lighting", Options: kinds},
		{Key: "light.intensity", Label: "Intensity", Kind: Range, Folder: "Lighting", Min: 0, Max: lighting.MaxIntensity, Step: 0.1},
		{Key: "light.color", Label: "Color", Kind: ColorPick, Folder: "Lighting"},
		{Key: "capture", Label: "Capture Frame", Kind: Button, Folder: "Export", Options: []string{"png", "webp"}},
		{Key: "reload", Label: "Reload", Kind: Button},
	}
}

func descriptor(key string) (Descriptor, bool) {
	for _, d := range Descriptors(nil) {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ApplyPanel sets a panel control. value is the JSON-decoded payload:
// float64 for ranges, bool for checkboxes, string for selects and colours.
func (m *Mapper) ApplyPanel(key string, value any) error {
	d, ok := descriptor(key)
	if !ok {
		return rigerr.InvalidControl("unknown panel control %q", key)
	}
	err := m.applyPanel(d, value)
	if err == nil {
		m.notify()
	}
	return err
}

func (m *Mapper) applyPanel(d Descriptor, value any) error {
	st := m.st
	switch d.Kind {
	case Button:
		switch d.Key {
		case "model.next":
			m.act.CycleModel()
		case "reset":
			st.Filters.Reset()
		case "reload":
			m.act.Reload()
		case "capture":
			format, _ := value.(string)
			if format == "" {
				format = "png"
			}
			m.act.Capture(format)
		}
		return nil

	case Checkbox:
		on, ok := value.(bool)
		if !ok {
			return rigerr.InvalidControl("%s wants a bool, got %T", d.Key, value)
		}
		switch d.Key {
		case "pixel.enabled":
			return st.Filters.ToggleSecondary(filter.Pixelation, on)
		case "bloom.enabled":
			return st.Filters.ToggleSecondary(filter.Bloom, on)
		case "dof.enabled":
			return st.Filters.ToggleSecondary(filter.DOF, on)
		case "glitch.enabled":
			return st.Filters.ToggleSecondary(filter.Glitch, on)
		case "glitch.wild":
			st.Filters.SetGlitchWild(on)
		case "ascii.invert":
			st.Filters.SetASCIIInvert(on)
		}
		return nil

	case Select, ColorPick:
		s, ok := value.(string)
		if !ok {
			return rigerr.InvalidControl("%s wants a string, got %T", d.Key, value)
		}
		switch d.Key {
		case "filter":
			p, err := filter.ParsePrimary(s)
			if err != nil {
				return err
			}
			return st.Filters.SelectPrimary(p)
		case "ascii.font":
			return st.Filters.SetASCIIFont(s)
		case "light.type":
			k, err := lighting.ParseKind(s)
			if err != nil {
				return err
			}
			return st.Lights.SetType(k)
		case "light.color":
			return st.Lights.SetColorHex(s)
		case "environment":
			i, err := m.envIndex(s)
			if err != nil {
				return err
			}
			m.act.SwapEnvironment(i)
		}
		return nil
	}

	x, ok := value.(float64)
	if !ok {
		return rigerr.InvalidControl("%s wants a number, got %T", d.Key, value)
	}
	if math.IsNaN(x) || x < d.Min || x > d.Max {
		return rigerr.InvalidControl("%s=%v outside [%v,%v]", d.Key, x, d.Min, d.Max)
	}
	switch d.Key {
	case "webcam.brightness":
		st.Brightness = x
	case "webcam.zoom":
		return st.Texture.SetZoom(x)
	case "webcam.offset_x":
		return st.Texture.SetOffset(x, st.Texture.Current().OffsetY)
	case "webcam.offset_y":
		return st.Texture.SetOffset(st.Texture.Current().OffsetX, x)
	case "pixel.size":
		st.Filters.SetPixelSize(x)
	case "bloom.threshold", "bloom.strength", "bloom.radius":
		return st.Filters.SetUniform("bloom", d.Key[len("bloom."):], x)
	case "dof.focus", "dof.aperture", "dof.maxblur":
		return st.Filters.SetUniform("dof", d.Key[len("dof."):], x)
	case "effect.step":
		return st.Filters.AdjustActive(int(math.Round(x)))
	case "ascii.contrast":
		st.Filters.SetASCIIContrast(x)
	case "object.x":
		st.Targets.Transform.Position[0] = float32(x)
	case "object.y":
		st.Targets.Transform.Position[1] = float32(x)
	case "object.z":
		st.Targets.Transform.Position[2] = float32(x)
	case "object.rot_x":
		st.Targets.Transform.Rotation[0] = mgl32.DegToRad(float32(x))
	case "object.rot_y":
		st.Targets.Transform.Rotation[1] = mgl32.DegToRad(float32(x))
	case "object.rot_z":
		st.Targets.Transform.Rotation[2] = mgl32.DegToRad(float32(x))
	case "camera.zoom":
		st.Targets.Camera.Zoom = x
	case "light.intensity":
		return st.Lights.SetIntensity(x)
	}
	return nil
}

// SetEnvironments records the environment names selectable by the panel.
func (m *Mapper) SetEnvironments(names []string) { m.envs = names }

func (m *Mapper) envIndex(name string) (int, error) {
	for i, n := range m.envs {
		if n == name {
			return i, nil
		}
	}
	return 0, rigerr.InvalidControl("unknown environment %q", name)
}

// Snapshot is the full panel state, broadcast after every mutation so the
// panel reflects changes made from the hardware surface.
type Snapshot struct {
	Values  map[string]any    `json:"values"`
	Filters filter.State      `json:"filters"`
	Light   lighting.Snapshot `json:"light"`
	Camera  render.CameraInfo `json:"camera"`
	Model   string            `json:"model,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	f := s.Filters.State()
	ascii := s.Filters.ASCII()
	u := func(pass, key string) float64 {
		v, _ := s.Filters.Uniform(pass, key)
		return v
	}
	light := s.Lights.Snapshot()
	rot := s.ModelRotation()
	pos := s.Targets.Transform.Position
	tex := s.Texture.Current()

	snap := Snapshot{
		Filters: f,
		Light:   light,
		Camera:  render.Info(s.Targets.Camera.Zoom, u("dof", "focus"), u("dof", "aperture")),
		Model:   s.Targets.Entry().Key,
		Values: map[string]any{
			"webcam.brightness": s.Brightness,
			"webcam.zoom":       tex.Zoom,
			"webcam.offset_x":   tex.OffsetX,
			"webcam.offset_y":   tex.OffsetY,
			"pixel.enabled":     f.Secondary.Pixelation.Enabled,
			"pixel.size":        f.Secondary.Pixelation.Size,
			"bloom.enabled":     f.Secondary.Bloom,
			"bloom.threshold":   u("bloom", "threshold"),
			"bloom.strength":    u("bloom", "strength"),
			"bloom.radius":      u("bloom", "radius"),
			"dof.enabled":       f.Secondary.DOF,
			"dof.focus":         u("dof", "focus"),
			"dof.aperture":      u("dof", "aperture"),
			"dof.maxblur":       u("dof", "maxblur"),
			"glitch.enabled":    f.Secondary.Glitch.Enabled,
			"glitch.wild":       f.Secondary.Glitch.Wild,
			"filter":            string(f.ActivePrimary),
			"ascii.contrast":    ascii.Contrast,
			"ascii.invert":      ascii.Invert,
			"ascii.font":        ascii.Font,
			"object.x":          float64(pos[0]),
			"object.y":          float64(pos[1]),
			"object.z":          float64(pos[2]),
			"object.rot_x":      wrapDegrees(float64(rot[0])),
			"object.rot_y":      wrapDegrees(float64(rot[1])),
			"object.rot_z":      wrapDegrees(float64(rot[2])),
			"camera.zoom":       s.Targets.Camera.Zoom,
			"light.type":        string(light.Kind),
			"light.intensity":   light.Intensity,
			"light.color":       light.Color,
		},
	}
	return snap
}

// wrapDegrees folds d into [-180,180) so the snapshot stays inside the
// rot_* slider range after repeated hardware rotations.
func wrapDegrees(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
