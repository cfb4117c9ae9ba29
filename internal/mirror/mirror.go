// Package mirror echoes the rig's light onto a physical LED strip, or onto
// the terminal when no SPI port is present.
package mirror

import (
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-camrig/internal/config"
	"github.com/coreman2200/funtimes-camrig/internal/lighting"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// Freq drives WS281x strips through the SPI encoder.
const Freq = 2500 * physic.KiloHertz

// Mirror fills every pixel of a drawer with the current light colour scaled
// by intensity.
type Mirror struct {
	mu     sync.Mutex
	drawer display.Drawer
	closer io.Closer
	img    *image.NRGBA
	Driver string
}

func New(d display.Drawer, n int) *Mirror {
	if n < 1 {
		n = 1
	}
	return &Mirror{drawer: d, img: image.NewNRGBA(image.Rect(0, 0, n, 1))}
}

// Open builds the configured mirror. "none" returns nil. A missing SPI port
// falls back to the console strip.
func Open(cfg config.Mirror) (*Mirror, error) {
	n := cfg.NumPixels
	if n <= 0 {
		n = 30
	}
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "console":
		m := New(screen.New(n), n)
		m.Driver = "console"
		return m, nil
	case "spi":
		if _, err := host.Init(); err != nil {
			return nil, rigerr.Unavailable(err, "periph host init")
		}
		p, err := spireg.Open(cfg.Dev)
		if err != nil {
			log.Warn().Err(err).Str("dev", cfg.Dev).Msg("no SPI port; mirroring to console")
			m := New(screen.New(n), n)
			m.Driver = "console"
			return m, nil
		}
		m, err := NewSPI(p, n)
		if err != nil {
			p.Close()
			return nil, err
		}
		m.closer = p
		return m, nil
	}
	return nil, rigerr.InvalidControl("unknown mirror driver %q", cfg.Driver)
}

// NewSPI drives an nrzled strip on p.
func NewSPI(p spi.Port, n int) (*Mirror, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: n, Channels: 3, Freq: Freq})
	if err != nil {
		return nil, rigerr.Unavailable(err, "nrzled on %s", p)
	}
	m := New(d, n)
	m.Driver = "spi"
	return m, nil
}

// Show pushes l to the strip. Disposed lights blank it.
func (m *Mirror) Show(l *lighting.Light) error {
	c := color.NRGBA{A: 255}
	if l != nil && !l.Disposed() {
		k := l.Intensity / lighting.MaxIntensity
		if k > 1 {
			k = 1
		}
		c.R, c.G, c.B = scale(l.Color.R, k), scale(l.Color.G, k), scale(l.Color.B, k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for x := 0; x < m.img.Rect.Dx(); x++ {
		m.img.SetNRGBA(x, 0, c)
	}
	if err := m.drawer.Draw(m.drawer.Bounds(), m.img, image.Point{}); err != nil {
		return rigerr.Unavailable(err, "mirror draw")
	}
	return nil
}

// Attach keeps the mirror in step with every lighting change.
func (m *Mirror) Attach(ls *lighting.State) {
	ls.OnChange(func(l *lighting.Light) {
		if err := m.Show(l); err != nil {
			log.Debug().Err(err).Msg("mirror update dropped")
		}
	})
	if err := m.Show(ls.Light()); err != nil {
		log.Debug().Err(err).Msg("mirror update dropped")
	}
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.drawer.Halt()
	if m.closer != nil {
		if cerr := m.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func scale(v float32, k float64) uint8 {
	x := float64(v) * k
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(x*255 + 0.5)
}
