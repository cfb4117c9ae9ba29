package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Camera struct {
	Fov      float32
	Aspect   float32
	Near     float32
	Far      float32
	Zoom     float64
	Position mgl32.Vec3
	Target   mgl32.Vec3
}

func NewCamera(w, h int) *Camera {
	c := &Camera{
		Fov:      45,
		Near:     0.25,
		Far:      20,
		Zoom:     1,
		Position: mgl32.Vec3{5, 1, 3},
		Target:   mgl32.Vec3{0, 0, -0.2},
	}
	c.SetViewport(w, h)
	return c
}

func (c *Camera) SetViewport(w, h int) {
	if h <= 0 {
		h = 1
	}
	c.Aspect = float32(w) / float32(h)
}

func (c *Camera) Projection() mgl32.Mat4 {
	z := c.Zoom
	if z <= 0 {
		z = 1
	}
	// zoom narrows the vertical field of view
	half := math.Tan(float64(mgl32.DegToRad(c.Fov))/2) / z
	return mgl32.Perspective(float32(2*math.Atan(half)), c.Aspect, c.Near, c.Far)
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, mgl32.Vec3{0, 1, 0})
}

// CameraInfo is the photographic readout shown next to the panel.
type CameraInfo struct {
	FocalLengthMM  int     `json:"focal_length_mm"`
	FocalDistanceM float64 `json:"focal_distance_m"`
	FNumber        float64 `json:"f_number"`
}

// Info derives focal length from zoom against a 35mm base.
func Info(zoom, focus, aperture float64) CameraInfo {
	ci := CameraInfo{
		FocalLengthMM:  int(math.Round(zoom * 35)),
		FocalDistanceM: math.Round(focus),
	}
	if aperture > 0 {
		ci.FNumber = math.Round(10/aperture) / 10
	}
	return ci
}

// Registry holds the active scene, camera and currently loaded model.
type Registry struct {
	Scene     Scene
	Camera    *Camera
	Transform ModelTransform

	model *Model
	entry ModelEntry
}

func NewRegistry(scene Scene, cam *Camera) *Registry {
	return &Registry{Scene: scene, Camera: cam}
}

func (r *Registry) Model() *Model { return r.model }

// Entry is the ModelEntry of the attached model; zero when none.
func (r *Registry) Entry() ModelEntry { return r.entry }

// SwapModel releases the outgoing model before attaching m.
func (r *Registry) SwapModel(entry ModelEntry, m *Model) {
	r.ClearModel()
	if m == nil {
		return
	}
	r.model = m
	r.entry = entry
	r.Scene.Add(m)
}

func (r *Registry) ClearModel() {
	if r.model == nil {
		return
	}
	r.Scene.Remove(r.model)
	r.model.Dispose()
	r.model = nil
	r.entry = ModelEntry{}
}
