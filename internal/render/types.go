package render

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

type Color struct{ R, G, B float32 }

// Frame is one composited raster frame. Alpha is always opaque.
type Frame = *image.RGBA

func NewFrame(w, h int) Frame {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Node is anything attached to the scene that owns releasable resources.
type Node interface {
	Dispose()
}

// Scene is the renderer's scene graph.
type Scene interface {
	Add(n Node)
	Remove(n Node)
	SetEnvironment(env *Environment)
}

// ModelEntry is one selectable model.
type ModelEntry struct {
	Key             string
	AssetPath       string
	TextureRotation float64
	TextureFlip     float64
}

type Mesh struct {
	Name      string
	Material  string
	Stream    bool // receives the live camera feed
	Triangles int
}

// Model is a loaded scene graph for one ModelEntry.
type Model struct {
	Key      string
	Meshes   []Mesh
	disposed bool
}

func (m *Model) Dispose() { m.disposed = true }

func (m *Model) Disposed() bool { return m.disposed }

// StreamSurfaces counts meshes that sample the camera feed.
func (m *Model) StreamSurfaces() int {
	n := 0
	for _, mm := range m.Meshes {
		if mm.Stream {
			n++
		}
	}
	return n
}

// Environment is a loaded reflection/background map.
type Environment struct {
	Name          string
	Path          string
	Width, Height int
	Tint          Color
}

// ModelTransform is the user-adjustable object placement.
type ModelTransform struct {
	Position mgl32.Vec3 // each axis in [-10,10]
	Rotation mgl32.Vec3 // radians
}

func (t ModelTransform) Matrix() mgl32.Mat4 {
	m := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	m = m.Mul4(mgl32.HomogRotate3DX(t.Rotation.X()))
	m = m.Mul4(mgl32.HomogRotate3DY(t.Rotation.Y()))
	return m.Mul4(mgl32.HomogRotate3DZ(t.Rotation.Z()))
}
