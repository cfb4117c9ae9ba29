package assets

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	doc := &gltf.Document{Asset: gltf.Asset{Version: "2.0"}}
	doc.Accessors = []*gltf.Accessor{
		{Count: 36, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentUshort},
		{Count: 6, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentUshort},
	}
	doc.Materials = []*gltf.Material{{Name: "aluminium"}, {Name: "macbookstream"}}
	doc.Meshes = []*gltf.Mesh{
		{Name: "body", Primitives: []*gltf.Primitive{{Indices: gltf.Index(0), Material: gltf.Index(0)}}},
		{Name: "screen", Primitives: []*gltf.Primitive{{Indices: gltf.Index(1), Material: gltf.Index(1)}}},
	}
	doc.Nodes = []*gltf.Node{{Name: "body", Mesh: gltf.Index(0)}, {Name: "screen", Mesh: gltf.Index(1)}}
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0, 1}}}
	doc.Scene = gltf.Index(0)

	path := filepath.Join(dir, "macbook.gltf")
	require.NoError(t, gltf.Save(doc, path))
	return path
}

func TestLoadModelFindsStreamSurface(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir)

	l := New(dir)
	m, err := l.LoadModel(context.Background(), render.ModelEntry{Key: "macbook", AssetPath: "macbook.gltf"})
	require.NoError(t, err)
	require.Len(t, m.Meshes, 2)
	assert.Equal(t, "macbook", m.Key)
	assert.False(t, m.Meshes[0].Stream)
	assert.True(t, m.Meshes[1].Stream)
	assert.Equal(t, 12, m.Meshes[0].Triangles)
	assert.Equal(t, 1, m.StreamSurfaces())
}

func TestLoadModelMissing(t *testing.T) {
	_, err := New(t.TempDir()).LoadModel(context.Background(), render.ModelEntry{Key: "ghost", AssetPath: "nope.gltf"})
	assert.True(t, errors.Is(err, rigerr.ErrResourceUnavailable))
}

func TestLoadModelCancelled(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(dir).LoadModel(ctx, render.ModelEntry{Key: "macbook", AssetPath: "macbook.gltf"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsStreamMaterial(t *testing.T) {
	for _, n := range []string{"macbookstream", "iphonestream", "macclassicstream", "Stream_Glass"} {
		assert.True(t, IsStreamMaterial(n), n)
	}
	assert.False(t, IsStreamMaterial("keyboard"))
	assert.False(t, IsStreamMaterial(""))
}

// hdr builds a small radiance file. rle selects the adaptive run-length
// scanline layout (width must be >= 8).
func hdr(w, h int, px [4]byte, rle bool) []byte {
	var b bytes.Buffer
	b.WriteString("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\nEXPOSURE=1.0\n\n")
	b.WriteString("-Y " + strconv.Itoa(h) + " +X " + strconv.Itoa(w) + "\n")
	for y := 0; y < h; y++ {
		if rle {
			b.Write([]byte{2, 2, byte(w >> 8), byte(w)})
			for ch := 0; ch < 4; ch++ {
				b.Write([]byte{byte(128 + w), px[ch]})
			}
			continue
		}
		for x := 0; x < w; x++ {
			b.Write(px[:])
		}
	}
	return b.Bytes()
}

func TestLoadEnvironment(t *testing.T) {
	dir := t.TempDir()
	half := [4]byte{128, 128, 128, 128} // 0.5 linear
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flat.hdr"), hdr(4, 3, half, false), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rle.hdr"), hdr(16, 2, half, true), 0644))

	l := New(dir)
	for _, name := range []string{"flat.hdr", "rle.hdr"} {
		env, err := l.LoadEnvironment(context.Background(), name, name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1.0/3, env.Tint.R, 1e-4, name)
		assert.InDelta(t, 1.0/3, env.Tint.B, 1e-4, name)
	}
	env, _ := l.LoadEnvironment(context.Background(), "rle", "rle.hdr")
	assert.Equal(t, 16, env.Width)
	assert.Equal(t, 2, env.Height)
}

func TestReadHDRHeaderRejects(t *testing.T) {
	cases := map[string]string{
		"magic":  "P6\n1 1\n",
		"format": "#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n",
		"res":    "#?RADIANCE\n\nY 1 X 1\n",
		"width":  "#?RGBE\n\n-Y 2 +X zero\n",
		"huge":   "#?RGBE\n\n-Y 1 +X 4611686018427387904\n",
		"area":   "#?RGBE\n\n-Y 16384 +X 16384\n",
	}
	for name, in := range cases {
		_, err := ReadHDRHeader(bufio.NewReader(bytes.NewBufferString(in)))
		assert.Error(t, err, name)
	}
}

func TestLoadEnvironmentTruncated(t *testing.T) {
	dir := t.TempDir()
	data := hdr(8, 4, [4]byte{1, 1, 1, 128}, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cut.hdr"), data[:len(data)-5], 0644))
	_, err := New(dir).LoadEnvironment(context.Background(), "cut", "cut.hdr")
	assert.True(t, errors.Is(err, rigerr.ErrResourceUnavailable))
}

func TestLoadEnvironmentOversizedHeader(t *testing.T) {
	dir := t.TempDir()
	data := []byte("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 1 +X 4611686018427387904\n\x01\x01\x01\x80")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.hdr"), data, 0644))
	var err error
	require.NotPanics(t, func() {
		_, err = New(dir).LoadEnvironment(context.Background(), "big", "big.hdr")
	})
	assert.True(t, errors.Is(err, rigerr.ErrResourceUnavailable))
}
