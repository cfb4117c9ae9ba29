// Package export writes captured frames to disk or to a writer.
package export

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

type Format string

const (
	PNG  Format = "png"
	WebP Format = "webp"
	Text Format = "txt" // ascii overlay contents
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", PNG:
		return PNG, nil
	case WebP:
		return WebP, nil
	case Text:
		return Text, nil
	}
	return "", rigerr.InvalidControl("unknown capture format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case WebP:
		return "image/webp"
	case Text:
		return "text/plain; charset=utf-8"
	}
	return "image/png"
}

// Encode writes img in the given image format.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case WebP:
		return nativewebp.Encode(w, img, nil)
	}
	return rigerr.InvalidControl("format %q is not an image format", f)
}

// Capture is one grabbed output: a raster frame or, while the ascii overlay
// replaces the canvas, its text.
type Capture struct {
	Frame image.Image
	Text  string
}

// Write encodes c to w. Text captures ignore the frame.
func (c Capture) Write(w io.Writer, f Format) error {
	if f == Text {
		_, err := io.WriteString(w, c.Text)
		return err
	}
	if c.Frame == nil {
		return rigerr.Inconsistent("no frame rendered yet")
	}
	return Encode(w, c.Frame, f)
}

// Save writes c into dir as screenshot-<timestamp>.<ext> and returns the path.
func Save(dir string, c Capture, f Format, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", rigerr.Unavailable(err, "export dir %s", dir)
	}
	path := filepath.Join(dir, "screenshot-"+now.Format("20060102-150405.000")+"."+string(f))
	out, err := os.Create(path)
	if err != nil {
		return "", rigerr.Unavailable(err, "create %s", path)
	}
	if err := c.Write(out, f); err != nil {
		out.Close()
		os.Remove(path)
		return "", errors.Wrapf(err, "encode %s", f)
	}
	if err := out.Close(); err != nil {
		return "", rigerr.Unavailable(err, "close %s", path)
	}
	log.Info().Str("path", path).Str("format", string(f)).Msg("capture saved")
	return path, nil
}
