package filter

import (
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

func newChain(w, h int) (*Controller, *render.Composer, *render.Surface) {
	comp := render.NewComposer(w, h)
	surf := render.NewSurface(w, h)
	c := New(comp, surf, 1)
	surf.OnResize(c.SetSize)
	return c, comp, surf
}

// attachedPrimaries counts primary-filter resources currently attached
// anywhere: composer passes plus overlay elements.
func attachedPrimaries(comp *render.Composer, surf *render.Surface) int {
	n := 0
	for _, p := range comp.Passes() {
		switch Primary(p.Name()) {
		case Sepia, Film, BlackAndWhite, Halftone, Anaglyph:
			n++
		}
	}
	for _, e := range surf.Container.Children() {
		if e.ElementKind() == "ascii" {
			n++
		}
	}
	return n
}

func layout(comp *render.Composer, surf *render.Surface) ([]string, []string) {
	var passes, elems []string
	for _, p := range comp.Passes() {
		passes = append(passes, p.Name())
	}
	for _, e := range surf.Container.Children() {
		elems = append(elems, e.ElementKind())
	}
	return passes, elems
}

func TestAtMostOnePrimaryAttached(t *testing.T) {
	c, comp, surf := newChain(32, 16)
	for _, a := range Primaries {
		for _, b := range Primaries {
			require.NoError(t, c.SelectPrimary(a))
			require.NoError(t, c.SelectPrimary(b))
			want := 1
			if b == None {
				want = 0
			}
			assert.Equal(t, want, attachedPrimaries(comp, surf), "%s -> %s", a, b)
			assert.Equal(t, b, c.State().ActivePrimary)
			assert.Equal(t, b != ASCII, surf.CanvasAttached(), "%s -> %s", a, b)
		}
	}
}

func TestResetThenSelectMatchesFreshSelect(t *testing.T) {
	for _, x := range Primaries {
		fresh, fcomp, fsurf := newChain(32, 16)
		require.NoError(t, fresh.SelectPrimary(x))
		wantPasses, wantElems := layout(fcomp, fsurf)

		used, ucomp, usurf := newChain(32, 16)
		require.NoError(t, used.SelectPrimary(Halftone))
		require.NoError(t, used.SelectPrimary(ASCII))
		used.Reset()
		require.NoError(t, used.SelectPrimary(x))
		gotPasses, gotElems := layout(ucomp, usurf)

		assert.Equal(t, wantPasses, gotPasses, string(x))
		assert.Equal(t, wantElems, gotElems, string(x))
		assert.Equal(t, fresh.State(), used.State(), string(x))
	}
}

func TestSecondaryOrderAndPrimaryLast(t *testing.T) {
	c, comp, surf := newChain(8, 8)
	require.NoError(t, c.SelectPrimary(Sepia))
	passes, elems := layout(comp, surf)
	assert.Equal(t, []string{"pixelation", "bloom", "dof", "glitch", "sepia"}, passes)
	assert.Equal(t, []string{"canvas"}, elems)
}

func TestASCIIReplacesCanvasAndResetRestores(t *testing.T) {
	c, _, surf := newChain(100, 20)
	require.NoError(t, c.SelectPrimary(ASCII))
	require.NotNil(t, c.Overlay())
	assert.False(t, surf.CanvasAttached())

	c.Reset()
	assert.Nil(t, c.Overlay())
	assert.True(t, surf.CanvasAttached())
	_, elems := layout(render.NewComposer(1, 1), surf)
	assert.Equal(t, []string{"canvas"}, elems)
}

func TestResetForcesGlitchOffOnly(t *testing.T) {
	c, _, _ := newChain(8, 8)
	require.NoError(t, c.ToggleSecondary(Glitch, true))
	require.NoError(t, c.ToggleSecondary(Bloom, false))
	require.NoError(t, c.SelectPrimary(Film))

	c.Reset()
	st := c.State()
	assert.False(t, st.Secondary.Glitch.Enabled)
	assert.False(t, st.Secondary.Bloom, "bloom untouched by reset")
	assert.True(t, st.Secondary.DOF)
	assert.Equal(t, None, st.ActivePrimary)
}

func TestSelectingNewPrimaryClearsGlitch(t *testing.T) {
	c, _, _ := newChain(8, 8)
	require.NoError(t, c.ToggleSecondary(Glitch, true))
	require.NoError(t, c.SelectPrimary(Sepia))
	assert.False(t, c.State().Secondary.Glitch.Enabled)
}

func TestUnknownInputsAreInvalidControl(t *testing.T) {
	c, _, _ := newChain(8, 8)
	err := c.SelectPrimary("vaporwave")
	assert.True(t, errors.Is(err, rigerr.ErrInvalidControl))
	assert.Error(t, c.ToggleSecondary("lensflare", true))
	assert.Error(t, c.SetASCIIFont("Comic Sans"))
	assert.Error(t, c.AdjustActive(8))
}

func TestAdjustActive(t *testing.T) {
	c, _, _ := newChain(16, 16)

	err := c.AdjustActive(3)
	assert.True(t, errors.Is(err, rigerr.ErrStateInconsistency), "nothing active")

	require.NoError(t, c.SelectPrimary(ASCII))
	require.NoError(t, c.AdjustActive(7))
	assert.InDelta(t, 99.999, c.ASCII().Contrast, 1e-9)
	assert.NotNil(t, c.Overlay(), "overlay rebuilt, still shown")

	require.NoError(t, c.SelectPrimary(Anaglyph))
	require.NoError(t, c.AdjustActive(7))
	v, ok := c.Uniform("anaglyph", "separation")
	require.True(t, ok)
	assert.InDelta(t, 0.025, v, 1e-9)

	require.NoError(t, c.SelectPrimary(Halftone))
	require.NoError(t, c.AdjustActive(0))
	v, _ = c.Uniform("halftone", "scale")
	assert.InDelta(t, 1.0, v, 1e-9)

	c.Reset()
	require.NoError(t, c.ToggleSecondary(Glitch, true))
	require.NoError(t, c.AdjustActive(5))
	assert.True(t, c.State().Secondary.Glitch.Wild)
	require.NoError(t, c.AdjustActive(2))
	assert.False(t, c.State().Secondary.Glitch.Wild)
}

func TestSetUniformOnAbsentPassIsNoop(t *testing.T) {
	c, comp, _ := newChain(8, 8)
	before := len(comp.Passes())
	err := c.SetUniform("halftone", "scale", 4)
	assert.True(t, errors.Is(err, rigerr.ErrStateInconsistency))
	err = c.SetUniform("bloom", "nope", 4)
	assert.True(t, errors.Is(err, rigerr.ErrStateInconsistency))
	assert.Len(t, comp.Passes(), before)

	require.NoError(t, c.SetUniform("bloom", "threshold", 2.5))
	v, _ := c.Uniform("bloom", "threshold")
	assert.Equal(t, 2.5, v)
}

func TestHalftoneTracksLightAndContrast(t *testing.T) {
	c, _, _ := newChain(8, 8)
	require.NoError(t, c.SelectPrimary(Halftone))
	c.SetLightColor(render.Color{R: 1, G: 0.5, B: 0})
	c.SetASCIIContrast(80)

	h := c.PrimaryPass().(*HalftonePass)
	assert.Equal(t, 0.5, h.Params["color_g"])
	assert.InDelta(t, 1.6, h.Params["contrast"], 1e-9)
	assert.InDelta(t, 8.0, h.Params["scale"], 1e-9)
	assert.InDelta(t, 0.7853981, h.Params["angle"], 1e-6)
}

func TestCharsetBands(t *testing.T) {
	assert.Equal(t, " ._|", Charset(0))
	assert.Equal(t, " WhatisSignal?Noise?", Charset(10))
	assert.Equal(t, " ._:-+*=%|", Charset(50))
	assert.Equal(t, " ._:-+*=%@|", Charset(69.9))
	assert.Contains(t, Charset(85), "XYZ|")
	assert.Contains(t, Charset(100), "ñÑ")
}

func fill(f render.Frame, c color.RGBA) {
	b := f.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			f.SetRGBA(x, y, c)
		}
	}
}

func TestASCIIOverlayRender(t *testing.T) {
	o := NewASCIIOverlay(DefaultASCII(), render.Color{R: 1}, 100, 20)
	cols, rows := o.Grid()
	assert.Equal(t, 15, cols)
	assert.Equal(t, 3, rows)

	f := render.NewFrame(100, 20)
	fill(f, color.RGBA{0, 0, 0, 255})
	txt := o.Render(f)
	assert.Equal(t, "|||||||||||||||\n|||||||||||||||\n|||||||||||||||\n", txt)

	fill(f, color.RGBA{255, 255, 255, 255})
	o.Settings.Invert = true
	txt = o.Render(f)
	assert.Equal(t, "|||||||||||||||\n", txt[:16])
	assert.Equal(t, txt, o.Text())
}

func TestResizeReachesOverlay(t *testing.T) {
	c, comp, surf := newChain(100, 20)
	require.NoError(t, c.SelectPrimary(ASCII))
	surf.Resize(200, 40)
	cols, rows := c.Overlay().Grid()
	assert.Equal(t, 30, cols)
	assert.Equal(t, 6, rows)
	w, h := comp.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 40, h)
}

func TestRenderNeverMutatesSource(t *testing.T) {
	c, _, _ := newChain(16, 16)
	src := render.NewFrame(16, 16)
	fill(src, color.RGBA{200, 100, 50, 255})
	orig := append([]uint8(nil), src.Pix...)

	for _, p := range Primaries {
		require.NoError(t, c.SelectPrimary(p))
		require.NoError(t, c.ToggleSecondary(Glitch, true))
		c.SetGlitchWild(true)
		c.SetPixelSize(4)
		out, txt := c.Render(src)
		require.NotNil(t, out)
		assert.Equal(t, p == ASCII, txt != "", string(p))
		assert.Equal(t, orig, src.Pix, string(p))
	}
}

func TestPixelPassMakesBlocks(t *testing.T) {
	src := render.NewFrame(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 0, 255})
		}
	}
	out := NewPixel(4).Apply(src, render.PassContext{})
	assert.Equal(t, out.RGBAAt(0, 0), out.RGBAAt(3, 3))
	assert.Equal(t, out.RGBAAt(4, 4), out.RGBAAt(7, 7))
	assert.NotEqual(t, out.RGBAAt(0, 0), out.RGBAAt(4, 4))

	assert.Same(t, src, NewPixel(1).Apply(src, render.PassContext{}))
}

func TestAnaglyphSplitsChannels(t *testing.T) {
	src := render.NewFrame(100, 1)
	src.SetRGBA(50, 0, color.RGBA{255, 255, 255, 255})
	out := NewAnaglyph(0.02).Apply(src, render.PassContext{})
	assert.Equal(t, uint8(255), out.RGBAAt(48, 0).R)
	assert.Equal(t, uint8(0), out.RGBAAt(48, 0).G)
	assert.Equal(t, uint8(255), out.RGBAAt(52, 0).G)
	assert.Equal(t, uint8(0), out.RGBAAt(52, 0).R)
}

func TestBloomThresholdAboveOneDisablesGlow(t *testing.T) {
	src := render.NewFrame(8, 8)
	fill(src, color.RGBA{255, 255, 255, 255})
	assert.Same(t, src, NewBloom(1.5, 0.4, 3).Apply(src, render.PassContext{}))
}

func TestDOFRadius(t *testing.T) {
	d := NewDOF(1, 0.025, 0.01)
	assert.InDelta(t, 1.0, d.Radius(100), 1e-9, "clamped to maxblur")
	d.Params["focus"] = 6
	assert.Equal(t, 0.0, d.Radius(100))
}
