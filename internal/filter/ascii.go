package filter

import (
	"image"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/coreman2200/funtimes-camrig/internal/render"
)

// Fonts the ASCII overlay can be styled with.
var Fonts = []string{"monospace", "Courier New", "Digital7", "Pixel Arial", "Pockota", "Your Groovy Font"}

// Charset returns the character ramp for an ASCII contrast level. Higher
// contrast gives a denser ramp and so finer tonal detail.
func Charset(contrast float64) string {
	switch {
	case contrast < 10:
		return " ._|"
	case contrast < 20:
		return " WhatisSignal?Noise?"
	case contrast < 30:
		return " ._:-|"
	case contrast < 40:
		return " ._amb|"
	case contrast < 50:
		return " ba._:-+*maBa|Ma"
	case contrast < 60:
		return " ._:-+*=%|"
	case contrast < 70:
		return " ._:-+*=%@|"
	case contrast < 80:
		return " ._:-+*=%@#abcdefghijklmnopqrstuvwxyz|"
	case contrast < 90:
		return " ._:-+*=%@#abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ|"
	default:
		return " ._:|-+*=%@#abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZâäàåçêëèïîìÄÅÉæÆôöòûùÿÖÜø£Ø×ƒáíóúñÑ"
	}
}

type ASCIISettings struct {
	Contrast float64 `json:"contrast"`
	Invert   bool    `json:"invert"`
	Font     string  `json:"font"`
}

func DefaultASCII() ASCIISettings {
	return ASCIISettings{Contrast: 50, Font: "monospace"}
}

// ASCIIOverlay replaces the raster canvas with a text block regenerated
// from every rendered frame.
type ASCIIOverlay struct {
	Settings   ASCIISettings
	Color      render.Color
	Background string
	Resolution float64

	chars      []rune
	w, h       int
	cols, rows int
	small      *image.RGBA
	text       string
}

func NewASCIIOverlay(s ASCIISettings, col render.Color, w, h int) *ASCIIOverlay {
	o := &ASCIIOverlay{
		Settings:   s,
		Color:      col,
		Background: "black",
		Resolution: 0.15,
		chars:      []rune(Charset(s.Contrast)),
	}
	o.SetSize(w, h)
	return o
}

func (o *ASCIIOverlay) ElementKind() string { return "ascii" }

func (o *ASCIIOverlay) SetSize(w, h int) {
	o.w, o.h = w, h
	o.cols = max(1, int(math.Round(float64(w)*o.Resolution)))
	o.rows = max(1, int(math.Round(float64(h)*o.Resolution)))
	o.small = image.NewRGBA(image.Rect(0, 0, o.cols, o.rows))
}

func (o *ASCIIOverlay) Grid() (cols, rows int) { return o.cols, o.rows }

// Render converts f into text. Brighter cells pick earlier (sparser)
// characters unless inverted.
func (o *ASCIIOverlay) Render(f render.Frame) string {
	xdraw.ApproxBiLinear.Scale(o.small, o.small.Bounds(), f, f.Bounds(), xdraw.Src, nil)
	n := len(o.chars)
	var sb strings.Builder
	sb.Grow((o.cols + 1) * o.rows)
	for y := 0; y < o.rows; y++ {
		for x := 0; x < o.cols; x++ {
			c := o.small.RGBAAt(x, y)
			br := (0.3*float64(c.R) + 0.59*float64(c.G) + 0.11*float64(c.B)) / 255
			if c.A == 0 {
				br = 1
			}
			idx := int(math.Floor((1 - br) * float64(n-1)))
			if o.Settings.Invert {
				idx = n - idx - 1
			}
			sb.WriteRune(o.chars[clampInt(idx, 0, n-1)])
		}
		sb.WriteByte('\n')
	}
	o.text = sb.String()
	return o.text
}

// Text is the most recently generated block.
func (o *ASCIIOverlay) Text() string { return o.text }
