package filter

import (
	"image/color"
	"math"
	"math/rand"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/noise"
	"github.com/anthonynsimon/bild/transform"
	xdraw "golang.org/x/image/draw"

	"github.com/coreman2200/funtimes-camrig/internal/render"
)

// base carries the shared pass bookkeeping. Params are the pass's tunable
// uniforms; a key that is not present is not adjustable.
type base struct {
	name    string
	enabled bool
	Params  map[string]float64
}

func (b *base) Name() string                 { return b.name }
func (b *base) Enabled() bool                { return b.enabled }
func (b *base) SetEnabled(on bool)           { b.enabled = on }
func (b *base) Uniforms() map[string]float64 { return b.Params }
func (b *base) p(key string) float64         { return b.Params[key] }

// Uniformed is implemented by passes exposing adjustable uniforms.
type Uniformed interface {
	Uniforms() map[string]float64
}

// ---- primary passes ----

type SepiaPass struct{ base }

func NewSepia() *SepiaPass {
	return &SepiaPass{base{name: "sepia", enabled: true, Params: map[string]float64{}}}
}

func (s *SepiaPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	return effect.Sepia(src)
}

// FilmPass adds per-frame grain; with grayscale it is the black and white filter.
type FilmPass struct {
	base
	grayscale bool
}

func NewFilm(intensity float64, grayscale bool) *FilmPass {
	name := "film"
	if grayscale {
		name = "blackandwhite"
	}
	return &FilmPass{
		base:      base{name: name, enabled: true, Params: map[string]float64{"intensity": intensity}},
		grayscale: grayscale,
	}
}

func (f *FilmPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	b := src.Bounds()
	grain := noise.Generate(b.Dx(), b.Dy(), &noise.Options{NoiseFn: noise.Uniform, Monochrome: true})
	k := f.p("intensity")
	out := render.NewFrame(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			n := clamp01(0.1 + float64(grain.Pix[grain.PixOffset(x, y)])/255)
			oi := out.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(src.Pix[si+c]) / 255
				grained := v + v*n
				out.Pix[oi+c] = to8(v + (grained-v)*k)
			}
			out.Pix[oi+3] = 255
		}
	}
	if !f.grayscale {
		return out
	}
	gray := effect.Grayscale(out)
	res := render.NewFrame(b.Dx(), b.Dy())
	xdraw.Draw(res, res.Bounds(), gray, gray.Bounds().Min, xdraw.Src)
	return res
}

// HalftonePass draws a rotated dot screen tinted by the light colour.
type HalftonePass struct{ base }

func NewHalftone(col render.Color, contrast, scale float64) *HalftonePass {
	return &HalftonePass{base{name: "halftone", enabled: true, Params: map[string]float64{
		"angle":    math.Pi / 4,
		"scale":    scale,
		"contrast": contrast,
		"size":     256,
		"color_r":  float64(col.R),
		"color_g":  float64(col.G),
		"color_b":  float64(col.B),
	}}}
}

func (h *HalftonePass) SetColor(c render.Color) {
	h.Params["color_r"], h.Params["color_g"], h.Params["color_b"] = float64(c.R), float64(c.G), float64(c.B)
}

func (h *HalftonePass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	b := src.Bounds()
	w, ht := float64(b.Dx()), float64(b.Dy())
	s, c := math.Sincos(h.p("angle"))
	size, scale, contrast := h.p("size"), h.p("scale"), h.p("contrast")
	tint := [3]float64{h.p("color_r"), h.p("color_g"), h.p("color_b")}
	out := render.NewFrame(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			u, v := (float64(x)+0.5)/w, (float64(y)+0.5)/ht
			cx, cy := (u-0.5)*size, (v-0.5)*size
			rx, ry := cx*c-cy*s, cx*s+cy*c
			gx, gy := fract(rx*scale)-0.5, fract(ry*scale)-0.5
			dot := smoothstep(0.5, 0.4, math.Hypot(gx, gy)*contrast)
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			oi := out.PixOffset(x, y)
			for k := 0; k < 3; k++ {
				out.Pix[oi+k] = to8(float64(src.Pix[si+k]) / 255 * tint[k] * dot)
			}
			out.Pix[oi+3] = 255
		}
	}
	return out
}

// AnaglyphPass splits red from green/blue horizontally.
type AnaglyphPass struct{ base }

func NewAnaglyph(separation float64) *AnaglyphPass {
	return &AnaglyphPass{base{name: "anaglyph", enabled: true, Params: map[string]float64{"separation": separation}}}
}

func (a *AnaglyphPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	b := src.Bounds()
	off := int(math.Round(a.p("separation") * float64(b.Dx())))
	out := render.NewFrame(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r := src.RGBAAt(b.Min.X+clampInt(x+off, 0, b.Dx()-1), b.Min.Y+y)
			gb := src.RGBAAt(b.Min.X+clampInt(x-off, 0, b.Dx()-1), b.Min.Y+y)
			out.SetRGBA(x, y, color.RGBA{r.R, gb.G, gb.B, 255})
		}
	}
	return out
}

// ---- secondary passes ----

// BloomPass adds a blurred bright-pass back onto the frame. The luminance
// threshold may exceed 1, which disables the glow entirely.
type BloomPass struct{ base }

func NewBloom(strength, radius, threshold float64) *BloomPass {
	return &BloomPass{base{name: "bloom", enabled: true, Params: map[string]float64{
		"strength": strength, "radius": radius, "threshold": threshold,
	}}}
}

func (p *BloomPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	th, strength := p.p("threshold"), p.p("strength")
	if th >= 1 || strength <= 0 {
		return src
	}
	bright := adjust.Apply(src, func(c color.RGBA) color.RGBA {
		if luminance(c) < th {
			return color.RGBA{A: 255}
		}
		return c
	})
	r := 1 + p.p("radius")*0.02*float64(src.Bounds().Dx())
	glow := adjust.Apply(blur.Gaussian(bright, r), func(c color.RGBA) color.RGBA {
		return color.RGBA{
			to8(float64(c.R) / 255 * strength),
			to8(float64(c.G) / 255 * strength),
			to8(float64(c.B) / 255 * strength),
			255,
		}
	})
	return blend.Add(src, glow)
}

// DOFPass blurs by circle of confusion. The raster has no depth buffer, so
// the subject sits at a single scene depth.
type DOFPass struct{ base }

func NewDOF(focus, aperture, maxblur float64) *DOFPass {
	return &DOFPass{base{name: "dof", enabled: true, Params: map[string]float64{
		"focus": focus, "aperture": aperture, "maxblur": maxblur, "depth": 6,
	}}}
}

// Radius returns the blur radius in pixels for width w.
func (d *DOFPass) Radius(w int) float64 {
	coc := math.Abs(d.p("depth")-d.p("focus")) * d.p("aperture")
	return math.Min(coc, d.p("maxblur")) * float64(w)
}

func (d *DOFPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	r := d.Radius(src.Bounds().Dx())
	if r < 0.5 {
		return src
	}
	return blur.Gaussian(src, r)
}

// PixelPass quantises the frame into size x size blocks.
type PixelPass struct{ base }

func NewPixel(size float64) *PixelPass {
	return &PixelPass{base{name: "pixelation", enabled: true, Params: map[string]float64{"size": size}}}
}

func (p *PixelPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	size := int(p.p("size"))
	if size <= 1 {
		return src
	}
	b := src.Bounds()
	sw, sh := max(1, b.Dx()/size), max(1, b.Dy()/size)
	small := transform.Resize(src, sw, sh, transform.Box)
	out := render.NewFrame(b.Dx(), b.Dy())
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	return out
}

// GlitchPass displaces random horizontal bands and splits channels. Strong
// glitches fire on a random cadence, or on every frame when wild.
type GlitchPass struct {
	base
	rng   *rand.Rand
	cur   int
	randX int
}

func NewGlitch(seed int64) *GlitchPass {
	g := &GlitchPass{
		base: base{name: "glitch", Params: map[string]float64{"wild": 0}},
		rng:  rand.New(rand.NewSource(seed)),
	}
	g.reroll()
	return g
}

func (g *GlitchPass) Wild() bool      { return g.p("wild") != 0 }
func (g *GlitchPass) SetWild(on bool) { g.Params["wild"] = b2f(on) }

func (g *GlitchPass) reroll() { g.randX = 120 + g.rng.Intn(120) }

func (g *GlitchPass) Apply(src render.Frame, _ render.PassContext) render.Frame {
	g.cur++
	var amount float64
	switch {
	case g.Wild() || g.cur%g.randX == 0:
		amount = 0.05 + g.rng.Float64()*0.25
		if g.cur%g.randX == 0 {
			g.cur = 0
			g.reroll()
		}
	case g.cur%g.randX < g.randX/5:
		amount = g.rng.Float64() * 0.03
	default:
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := render.NewFrame(w, h)
	xdraw.Draw(out, out.Bounds(), src, b.Min, xdraw.Src)

	split := int(amount * 0.3 * float64(w))
	bands := 1 + g.rng.Intn(6)
	for i := 0; i < bands; i++ {
		y0 := g.rng.Intn(h)
		bh := 1 + g.rng.Intn(max(1, h/8))
		shift := int((g.rng.Float64()*2 - 1) * amount * float64(w))
		for y := y0; y < min(h, y0+bh); y++ {
			for x := 0; x < w; x++ {
				sx := clampInt(x-shift, 0, w-1)
				r := src.RGBAAt(b.Min.X+clampInt(sx+split, 0, w-1), b.Min.Y+y)
				c := src.RGBAAt(b.Min.X+sx, b.Min.Y+y)
				out.SetRGBA(x, y, color.RGBA{r.R, c.G, c.B, 255})
			}
		}
	}
	return out
}

// ---- helpers ----

func luminance(c color.RGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

func smoothstep(e0, e1, x float64) float64 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

func fract(x float64) float64 { return x - math.Floor(x) }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func to8(x float64) uint8 {
	return uint8(clamp01(x)*255 + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
