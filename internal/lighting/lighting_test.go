package lighting

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

func TestDefaultLight(t *testing.T) {
	g := render.NewGraph()
	s := New(g)
	l := s.Light()
	assert.Equal(t, Directional, l.Kind)
	assert.Equal(t, 4.0, l.Intensity)
	assert.Equal(t, DefaultPosition, l.Position)
	assert.True(t, g.Contains(l))
	assert.Equal(t, "#ffffff", s.Snapshot().Color)
}

func TestSetTypeRebuilds(t *testing.T) {
	g := render.NewGraph()
	s := New(g)
	require.NoError(t, s.SetIntensity(7))
	require.NoError(t, s.SetZ(-8))
	old := s.Light()

	require.NoError(t, s.SetType(Spot))
	l := s.Light()
	assert.NotSame(t, old, l)
	assert.True(t, old.Disposed())
	assert.False(t, g.Contains(old))
	assert.True(t, g.Contains(l))
	assert.Len(t, g.Nodes(), 1)
	assert.Equal(t, 7.0, l.Intensity, "intensity carried over")
	assert.Equal(t, DefaultPosition, l.Position, "rebuild restores the default offset")
	assert.InDelta(t, 0.5235987, l.Angle, 1e-6)

	require.NoError(t, s.SetType(Point))
	assert.Equal(t, 50.0, s.Light().Distance)
}

func TestIntensityAndColorMutateInPlace(t *testing.T) {
	s := New(render.NewGraph())
	l := s.Light()
	var seen int
	s.OnChange(func(*Light) { seen++ })

	require.NoError(t, s.SetIntensity(12))
	s.SetColorHSL(120, 1, 0.5)
	assert.Same(t, l, s.Light())
	assert.Equal(t, 12.0, l.Intensity)
	assert.InDelta(t, 1.0, l.Color.G, 1e-6)
	assert.InDelta(t, 0.0, l.Color.R, 1e-6)
	assert.Equal(t, 2, seen)

	err := s.SetIntensity(-1)
	assert.True(t, errors.Is(err, rigerr.ErrInvalidControl))
	assert.Equal(t, 12.0, l.Intensity)
}

func TestSetZOnlyForDirectional(t *testing.T) {
	s := New(render.NewGraph())
	require.NoError(t, s.SetZ(8))
	assert.Equal(t, float32(8), s.Snapshot().Z)

	require.NoError(t, s.SetType(Ambient))
	err := s.SetZ(3)
	assert.True(t, errors.Is(err, rigerr.ErrStateInconsistency))
	assert.True(t, s.Sample().Ambient)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"DirectionalLight": Directional,
		"spot":             Spot,
		"PointLight":       Point,
		"AmbientLight":     Ambient,
	} {
		k, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, k)
	}
	_, err := ParseKind("AreaLight")
	assert.Error(t, err)
}

func TestSetColorHex(t *testing.T) {
	s := New(render.NewGraph())
	require.NoError(t, s.SetColorHex("#ff0000"))
	assert.Equal(t, "#ff0000", s.Snapshot().Color)
	assert.Error(t, s.SetColorHex("red"))
}
