// Package assets loads device models and environment maps from disk.
package assets

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// ModelLoader produces a scene graph for one model entry.
type ModelLoader interface {
	LoadModel(ctx context.Context, entry render.ModelEntry) (*render.Model, error)
}

// EnvLoader produces an environment map.
type EnvLoader interface {
	LoadEnvironment(ctx context.Context, name, path string) (*render.Environment, error)
}

// Loader reads assets relative to Root.
type Loader struct {
	Root string
}

func New(root string) *Loader { return &Loader{Root: root} }

func (l *Loader) resolve(p string) string {
	if filepath.IsAbs(p) || l.Root == "" {
		return p
	}
	return filepath.Join(l.Root, p)
}

// IsStreamMaterial reports whether a material name marks the surface that
// shows the live camera feed (macbookstream, iphonestream, ...).
func IsStreamMaterial(name string) bool {
	return strings.Contains(strings.ToLower(name), "stream")
}

// LoadModel opens a .gltf or .glb file and flattens its primitives into
// render meshes.
func (l *Loader) LoadModel(ctx context.Context, entry render.ModelEntry) (*render.Model, error) {
	path := l.resolve(entry.AssetPath)
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, rigerr.Unavailable(err, "model %q at %s", entry.Key, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &render.Model{Key: entry.Key}
	for mi, mesh := range doc.Meshes {
		name := mesh.Name
		if name == "" {
			name = "mesh" + strconv.Itoa(mi)
		}
		for _, prim := range mesh.Primitives {
			mat := materialName(doc, prim)
			m.Meshes = append(m.Meshes, render.Mesh{
				Name:      name,
				Material:  mat,
				Stream:    IsStreamMaterial(mat),
				Triangles: triangles(doc, prim),
			})
		}
	}
	if len(m.Meshes) == 0 {
		return nil, rigerr.Unavailable(nil, "model %q has no meshes", entry.Key)
	}
	if m.StreamSurfaces() == 0 {
		log.Warn().Str("model", entry.Key).Msg("model has no stream material; feed will not be shown")
	}
	log.Debug().Str("model", entry.Key).Int("meshes", len(m.Meshes)).Int("stream", m.StreamSurfaces()).Msg("model parsed")
	return m, nil
}

func materialName(doc *gltf.Document, p *gltf.Primitive) string {
	if p.Material == nil || int(*p.Material) >= len(doc.Materials) {
		return ""
	}
	return doc.Materials[*p.Material].Name
}

func triangles(doc *gltf.Document, p *gltf.Primitive) int {
	var count uint32
	if p.Indices != nil {
		if int(*p.Indices) < len(doc.Accessors) {
			count = doc.Accessors[*p.Indices].Count
		}
	} else if pos, ok := p.Attributes[gltf.POSITION]; ok && int(pos) < len(doc.Accessors) {
		count = doc.Accessors[pos].Count
	}
	switch p.Mode {
	case gltf.PrimitiveTriangles:
		return int(count / 3)
	case gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
		if count >= 3 {
			return int(count - 2)
		}
	}
	return 0
}
