// Package filter owns the post-processing chain: at most one primary
// stylisation filter plus the independently toggled secondary stages.
package filter

import (
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

type Primary string

const (
	None          Primary = "none"
	Sepia         Primary = "sepia"
	Film          Primary = "film"
	BlackAndWhite Primary = "blackandwhite"
	Halftone      Primary = "halftone"
	ASCII         Primary = "ascii"
	Anaglyph      Primary = "anaglyph"
)

var Primaries = []Primary{None, Sepia, Film, BlackAndWhite, Halftone, ASCII, Anaglyph}

func ParsePrimary(s string) (Primary, error) {
	for _, p := range Primaries {
		if string(p) == s {
			return p, nil
		}
	}
	return None, rigerr.InvalidControl("unknown filter %q", s)
}

type Secondary string

const (
	Bloom      Secondary = "bloom"
	DOF        Secondary = "dof"
	Glitch     Secondary = "glitch"
	Pixelation Secondary = "pixelation"
)

const (
	filmIntensity     = 0.35
	anaglyphBase      = 0.005
	defaultBloomStr   = 1.5
	defaultBloomRad   = 0.4
	defaultBloomTh    = 0.85
	defaultDOFFocus   = 1.0
	defaultDOFAper    = 0.025
	defaultDOFMaxBlur = 0.01
)

type GlitchState struct {
	Enabled bool `json:"enabled"`
	Wild    bool `json:"wild"`
}

type PixelState struct {
	Enabled bool    `json:"enabled"`
	Size    float64 `json:"size"`
}

type SecondaryState struct {
	Bloom      bool        `json:"bloom"`
	DOF        bool        `json:"dof"`
	Glitch     GlitchState `json:"glitch"`
	Pixelation PixelState  `json:"pixelation"`
}

// State is the single source of truth for which effects are live.
type State struct {
	ActivePrimary Primary        `json:"active_primary"`
	Secondary     SecondaryState `json:"secondary"`
}

// Controller drives the composer and the visible output container. It is
// not safe for concurrent use; the rig loop is its only caller.
type Controller struct {
	comp *render.Composer
	surf *render.Surface

	primary Primary
	pass    render.Pass
	overlay *ASCIIOverlay

	ascii ASCIISettings
	light render.Color

	pixel  *PixelPass
	bloom  *BloomPass
	dof    *DOFPass
	glitch *GlitchPass
}

// New attaches the secondary stages to comp in their fixed order. seed
// drives the glitch pattern.
func New(comp *render.Composer, surf *render.Surface, seed int64) *Controller {
	c := &Controller{
		comp:    comp,
		surf:    surf,
		primary: None,
		ascii:   DefaultASCII(),
		light:   render.Color{R: 1, G: 1, B: 1},
		pixel:   NewPixel(1),
		bloom:   NewBloom(defaultBloomStr, defaultBloomRad, defaultBloomTh),
		dof:     NewDOF(defaultDOFFocus, defaultDOFAper, defaultDOFMaxBlur),
		glitch:  NewGlitch(seed),
	}
	comp.AddPass(c.pixel)
	comp.AddPass(c.bloom)
	comp.AddPass(c.dof)
	comp.AddPass(c.glitch)
	return c
}

// SelectPrimary tears down the active primary then constructs p.
// A transition between two filters is always reset followed by setup.
func (c *Controller) SelectPrimary(p Primary) error {
	if _, err := ParsePrimary(string(p)); err != nil {
		return err
	}
	c.Reset()
	switch p {
	case None:
		return nil
	case Sepia:
		c.attach(NewSepia())
	case Film:
		c.attach(NewFilm(filmIntensity, false))
	case BlackAndWhite:
		c.attach(NewFilm(filmIntensity, true))
	case Halftone:
		c.attach(NewHalftone(c.light, c.ascii.Contrast/50, c.ascii.Contrast/10))
	case Anaglyph:
		c.attach(NewAnaglyph(anaglyphBase))
	case ASCII:
		c.showOverlay()
	}
	c.primary = p
	log.Info().Str("filter", string(p)).Msg("filter applied")
	return nil
}

func (c *Controller) attach(p render.Pass) {
	c.pass = p
	c.comp.AddPass(p)
}

func (c *Controller) showOverlay() {
	w, h := c.comp.Size()
	c.overlay = NewASCIIOverlay(c.ascii, c.light, w, h)
	c.surf.Container.Remove(c.surf.Canvas)
	c.surf.Container.Append(c.overlay)
}

// Reset removes the primary pass and overlay, forces glitch off and puts
// the raster canvas back. Other secondary stages are left alone.
func (c *Controller) Reset() {
	if c.pass != nil {
		c.comp.RemovePass(c.pass)
		c.pass = nil
	}
	if c.overlay != nil {
		c.surf.Container.Remove(c.overlay)
		c.overlay = nil
	}
	c.glitch.SetEnabled(false)
	c.surf.Container.Append(c.surf.Canvas)
	if c.primary != None {
		log.Debug().Str("filter", string(c.primary)).Msg("filter reset")
	}
	c.primary = None
}

func (c *Controller) ToggleSecondary(which Secondary, on bool) error {
	switch which {
	case Bloom:
		c.bloom.SetEnabled(on)
	case DOF:
		c.dof.SetEnabled(on)
	case Glitch:
		c.glitch.SetEnabled(on)
	case Pixelation:
		c.pixel.SetEnabled(on)
	default:
		return rigerr.InvalidControl("unknown stage %q", which)
	}
	log.Debug().Str("stage", string(which)).Bool("enabled", on).Msg("stage toggled")
	return nil
}

func (c *Controller) SetGlitchWild(on bool) { c.glitch.SetWild(on) }

func (c *Controller) SetPixelSize(size float64) {
	if size < 1 {
		size = 1
	}
	c.pixel.Params["size"] = size
}

// SetUniform sets one uniform of an attached pass. A missing pass or key
// is a no-op reported as a state inconsistency.
func (c *Controller) SetUniform(pass, key string, v float64) error {
	for _, p := range c.comp.Passes() {
		if p.Name() != pass {
			continue
		}
		u, ok := p.(Uniformed)
		if !ok {
			break
		}
		if _, ok := u.Uniforms()[key]; !ok {
			return rigerr.Inconsistent("pass %s has no uniform %s", pass, key)
		}
		u.Uniforms()[key] = v
		return nil
	}
	return rigerr.Inconsistent("pass %s is not attached", pass)
}

// Uniform reads a uniform of an attached pass.
func (c *Controller) Uniform(pass, key string) (float64, bool) {
	for _, p := range c.comp.Passes() {
		if p.Name() != pass {
			continue
		}
		if u, ok := p.(Uniformed); ok {
			v, ok := u.Uniforms()[key]
			return v, ok
		}
	}
	return 0, false
}

// SetASCIIContrast also retunes the halftone screen and, while ASCII is
// showing, rebuilds the overlay with the new ramp.
func (c *Controller) SetASCIIContrast(v float64) {
	c.ascii.Contrast = v
	if h, ok := c.pass.(*HalftonePass); ok {
		h.Params["contrast"] = v / 50
		h.Params["scale"] = v / 10
	}
	c.rebuildOverlay()
}

func (c *Controller) SetASCIIInvert(on bool) {
	c.ascii.Invert = on
	c.rebuildOverlay()
}

func (c *Controller) SetASCIIFont(font string) error {
	for _, f := range Fonts {
		if f == font {
			c.ascii.Font = font
			c.rebuildOverlay()
			return nil
		}
	}
	return rigerr.InvalidControl("unknown font %q", font)
}

func (c *Controller) rebuildOverlay() {
	if c.overlay == nil {
		return
	}
	c.surf.Container.Remove(c.overlay)
	c.overlay = nil
	c.showOverlay()
}

// SetLightColor keeps colour-tracking effects in step with the light.
func (c *Controller) SetLightColor(col render.Color) {
	c.light = col
	if c.overlay != nil {
		c.overlay.Color = col
	}
	if h, ok := c.pass.(*HalftonePass); ok {
		h.SetColor(col)
	}
}

// AdjustActive applies one of eight steps to the active effect's main
// parameter.
func (c *Controller) AdjustActive(index int) error {
	if index < 0 || index > 7 {
		return rigerr.InvalidControl("effect step %d outside 0..7", index)
	}
	step := float64(index) / 7
	switch c.primary {
	case ASCII:
		c.SetASCIIContrast(10 + float64(index)*12.857)
		return nil
	case Anaglyph:
		return c.SetUniform("anaglyph", "separation", anaglyphBase+step*0.02)
	case Halftone:
		return c.SetUniform("halftone", "scale", 1+step*9)
	}
	if c.glitch.Enabled() {
		c.glitch.SetWild(index > 3)
		return nil
	}
	return rigerr.Inconsistent("no adjustable parameters for %s", c.primary)
}

// SetSize keeps the composer and any overlay at the display size.
func (c *Controller) SetSize(w, h int) {
	c.comp.SetSize(w, h)
	if c.overlay != nil {
		c.overlay.SetSize(w, h)
	}
}

// Render runs the chain over src. When the ASCII overlay is visible it is
// regenerated from the composited frame and returned as text.
func (c *Controller) Render(src render.Frame) (render.Frame, string) {
	out := c.comp.Render(src)
	if c.overlay == nil {
		return out, ""
	}
	return out, c.overlay.Render(out)
}

func (c *Controller) State() State {
	return State{
		ActivePrimary: c.primary,
		Secondary: SecondaryState{
			Bloom: c.bloom.Enabled(),
			DOF:   c.dof.Enabled(),
			Glitch: GlitchState{
				Enabled: c.glitch.Enabled(),
				Wild:    c.glitch.Wild(),
			},
			Pixelation: PixelState{
				Enabled: c.pixel.Enabled(),
				Size:    c.pixel.p("size"),
			},
		},
	}
}

func (c *Controller) Primary() Primary         { return c.primary }
func (c *Controller) ASCII() ASCIISettings     { return c.ascii }
func (c *Controller) Overlay() *ASCIIOverlay   { return c.overlay }
func (c *Controller) PrimaryPass() render.Pass { return c.pass }
