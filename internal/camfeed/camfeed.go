// Package camfeed provides the live image sources shown on a model's
// stream surface.
package camfeed

import (
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	_ "github.com/ftrvxmtrx/tga"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// Source yields the current feed frame. Frame returns nil until the source
// is ready; consumers skip feed sampling in that case.
type Source interface {
	Frame() image.Image
}

// Pattern is a synthetic feed of drifting hue bars. It reports ready only
// after Start's warm-up elapses, the way a camera does after negotiation.
type Pattern struct {
	mu    sync.Mutex
	w, h  int
	ready bool
	t0    time.Time
	img   *image.RGBA
	now   func() time.Time
}

func NewPattern(w, h int) *Pattern {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &Pattern{w: w, h: h, img: image.NewRGBA(image.Rect(0, 0, w, h)), now: time.Now}
}

// Start marks the pattern ready after warmup, or never if ctx ends first.
// onReady, if set, runs once the feed is live.
func (p *Pattern) Start(ctx context.Context, warmup time.Duration, onReady func()) {
	go func() {
		t := time.NewTimer(warmup)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		p.mu.Lock()
		p.ready = true
		p.t0 = p.now()
		p.mu.Unlock()
		log.Info().Int("w", p.w).Int("h", p.h).Msg("camera feed ready")
		if onReady != nil {
			onReady()
		}
	}()
}

func (p *Pattern) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *Pattern) Frame() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return nil
	}
	phase := p.now().Sub(p.t0).Seconds() * 0.1
	for x := 0; x < p.w; x++ {
		hue := (float64(x)/float64(p.w) + phase) * 360
		for hue >= 360 {
			hue -= 360
		}
		r, g, b := colorful.Hsv(hue, 0.8, 0.9).RGB255()
		c := color.RGBA{r, g, b, 255}
		for y := 0; y < p.h; y++ {
			p.img.SetRGBA(x, y, c)
		}
	}
	return p.img
}

// Still serves one decoded image (png, jpeg or webp) as a static feed.
type Still struct {
	img image.Image
}

func OpenStill(path string) (*Still, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rigerr.Unavailable(err, "still feed %s", path)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, rigerr.Unavailable(err, "decode still feed %s", path)
	}
	log.Debug().Str("path", path).Str("format", format).Msg("still feed loaded")
	return &Still{img: img}, nil
}

func NewStill(img image.Image) *Still { return &Still{img: img} }

func (s *Still) Frame() image.Image { return s.img }

// None is the absent camera.
type None struct{}

func (None) Frame() image.Image { return nil }
