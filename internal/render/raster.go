package render

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightSample is what the raster needs from the current light.
type LightSample struct {
	Color     Color
	Intensity float64
	Ambient   bool
}

type RasterInput struct {
	Env        *Environment
	Light      LightSample
	Model      *Model
	Feed       image.Image // nil until the camera is ready
	UV         mgl32.Mat3  // feed texture transform
	Brightness float64
	Transform  ModelTransform
	Camera     *Camera // nil uses a default camera at the frame's aspect
}

// deviceFace is the device front in model space, counter-clockwise from
// bottom left, with the feed's texture coordinates.
var deviceFace = [4]struct {
	pos  mgl32.Vec3
	u, v float32
}{
	{mgl32.Vec3{-0.7, -0.5, 0}, 0, 1},
	{mgl32.Vec3{0.7, -0.5, 0}, 1, 1},
	{mgl32.Vec3{0.7, 0.5, 0}, 1, 0},
	{mgl32.Vec3{-0.7, 0.5, 0}, 0, 0},
}

// streamInset is the bezel width, in texture units, around the stream surface.
const streamInset = 0.05

// Raster is a small software stand-in for the GPU scene renderer: it draws a
// backdrop, the device body lit by the current light and the live feed on
// the device's stream surface.
type Raster struct{}

type vertex struct {
	x, y   float64 // pixels
	invW   float64
	uw, vw float64 // u/w, v/w for perspective-correct interpolation
}

func (Raster) Render(dst Frame, in RasterInput) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()

	bg := Color{0.04, 0.04, 0.05}
	if in.Env != nil && (in.Env.Tint != Color{}) {
		bg = in.Env.Tint
	}
	for y := 0; y < h; y++ {
		// simple vertical falloff
		k := float32(1.0 - 0.5*float64(y)/float64(h))
		c := color.RGBA{to8(bg.R * k), to8(bg.G * k), to8(bg.B * k), 255}
		for x := 0; x < w; x++ {
			dst.SetRGBA(b.Min.X+x, b.Min.Y+y, c)
		}
	}
	if in.Model == nil {
		return
	}

	cam := in.Camera
	if cam == nil {
		cam = NewCamera(w, h)
	}
	mvp := cam.Projection().Mul4(cam.View()).Mul4(in.Transform.Matrix())

	var vs [4]vertex
	for i, c := range deviceFace {
		clip := mvp.Mul4x1(c.pos.Vec4(1))
		if clip.W() <= cam.Near {
			return // face crosses the camera plane
		}
		iw := 1 / float64(clip.W())
		vs[i] = vertex{
			x:    (float64(clip.X())*iw + 1) / 2 * float64(w),
			y:    (1 - float64(clip.Y())*iw) / 2 * float64(h),
			invW: iw,
			uw:   float64(c.u) * iw,
			vw:   float64(c.v) * iw,
		}
	}

	shade := float32(0.35)
	if in.Light.Intensity > 0 {
		shade += float32(math.Min(in.Light.Intensity/20, 1)) * 0.65
	}
	body := Color{in.Light.Color.R * shade, in.Light.Color.G * shade, in.Light.Color.B * shade}
	stream := in.Model.StreamSurfaces() > 0

	for _, tri := range [2][3]int{{0, 1, 2}, {0, 2, 3}} {
		a, bv, c := vs[tri[0]], vs[tri[1]], vs[tri[2]]
		area := edge(a, bv, c.x, c.y)
		if math.Abs(area) < 1e-9 {
			continue
		}
		x0 := clampInt(int(math.Floor(math.Min(a.x, math.Min(bv.x, c.x)))), 0, w)
		x1 := clampInt(int(math.Ceil(math.Max(a.x, math.Max(bv.x, c.x))))+1, 0, w)
		y0 := clampInt(int(math.Floor(math.Min(a.y, math.Min(bv.y, c.y)))), 0, h)
		y1 := clampInt(int(math.Ceil(math.Max(a.y, math.Max(bv.y, c.y))))+1, 0, h)
		for y := y0; y < y1; y++ {
			py := float64(y) + 0.5
			for x := x0; x < x1; x++ {
				px := float64(x) + 0.5
				l0 := edge(bv, c, px, py) / area
				l1 := edge(c, a, px, py) / area
				l2 := 1 - l0 - l1
				if l0 < 0 || l1 < 0 || l2 < 0 {
					continue
				}
				iw := l0*a.invW + l1*bv.invW + l2*c.invW
				u := (l0*a.uw + l1*bv.uw + l2*c.uw) / iw
				v := (l0*a.vw + l1*bv.vw + l2*c.vw) / iw

				col := body
				if stream && u >= streamInset && u <= 1-streamInset && v >= streamInset && v <= 1-streamInset {
					su := float32((u - streamInset) / (1 - 2*streamInset))
					sv := float32((v - streamInset) / (1 - 2*streamInset))
					col = sampleFeed(in.Feed, in.UV, su, sv, in.Brightness)
				}
				dst.SetRGBA(b.Min.X+x, b.Min.Y+y, color.RGBA{to8(col.R), to8(col.G), to8(col.B), 255})
			}
		}
	}
}

// edge is twice the signed area of (p, q, (x, y)).
func edge(p, q vertex, x, y float64) float64 {
	return (q.x-p.x)*(y-p.y) - (q.y-p.y)*(x-p.x)
}

func sampleFeed(feed image.Image, uv mgl32.Mat3, u, v float32, brightness float64) Color {
	if feed == nil {
		return Color{}
	}
	p := uv.Mul3x1(mgl32.Vec3{u, v, 1})
	fb := feed.Bounds()
	fx := clampInt(fb.Min.X+int(p.X()*float32(fb.Dx())), fb.Min.X, fb.Max.X-1)
	fy := clampInt(fb.Min.Y+int(p.Y()*float32(fb.Dy())), fb.Min.Y, fb.Max.Y-1)
	r, g, bb, _ := feed.At(fx, fy).RGBA()
	k := float32(brightness) / 65535
	return Color{float32(r) * k, float32(g) * k, float32(bb) * k}
}

func to8(x float32) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(x*255 + 0.5)
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
