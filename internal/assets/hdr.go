package assets

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// maxHDRPixels bounds the image size accepted from a file header.
const maxHDRPixels = 1 << 26

// HDRHeader is the parsed header of a Radiance RGBE file.
type HDRHeader struct {
	Format   string
	Exposure float64
	Width    int
	Height   int
}

// LoadEnvironment reads a Radiance .hdr file and averages it into the tint
// the raster uses as backdrop.
func (l *Loader) LoadEnvironment(ctx context.Context, name, path string) (*render.Environment, error) {
	p := l.resolve(path)
	f, err := os.Open(p)
	if err != nil {
		return nil, rigerr.Unavailable(err, "environment %q", name)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := ReadHDRHeader(br)
	if err != nil {
		return nil, rigerr.Unavailable(err, "environment %q at %s", name, p)
	}
	avg, err := averageHDR(ctx, br, h)
	if err != nil {
		return nil, rigerr.Unavailable(err, "environment %q pixels", name)
	}
	env := &render.Environment{
		Name:   name,
		Path:   path,
		Width:  h.Width,
		Height: h.Height,
		Tint:   render.Color{R: reinhard(avg[0]), G: reinhard(avg[1]), B: reinhard(avg[2])},
	}
	log.Debug().Str("env", name).Int("w", h.Width).Int("h", h.Height).Msg("environment parsed")
	return env, nil
}

// ReadHDRHeader consumes the text header and resolution line.
func ReadHDRHeader(r *bufio.Reader) (HDRHeader, error) {
	var h HDRHeader
	magic, err := r.ReadString('\n')
	if err != nil {
		return h, errors.Wrap(err, "read magic")
	}
	if !strings.HasPrefix(magic, "#?") {
		return h, errors.New("not a radiance file")
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return h, errors.Wrap(err, "read header")
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "FORMAT="):
			h.Format = strings.TrimPrefix(line, "FORMAT=")
		case strings.HasPrefix(line, "EXPOSURE="):
			h.Exposure, _ = strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "EXPOSURE=")), 64)
		}
	}
	if h.Format != "" && h.Format != "32-bit_rle_rgbe" {
		return h, errors.Errorf("unsupported format %q", h.Format)
	}

	res, err := r.ReadString('\n')
	if err != nil {
		return h, errors.Wrap(err, "read resolution")
	}
	f := strings.Fields(res)
	if len(f) != 4 || (f[0] != "-Y" && f[0] != "+Y") || (f[2] != "+X" && f[2] != "-X") {
		return h, errors.Errorf("unsupported resolution line %q", strings.TrimSpace(res))
	}
	if h.Height, err = strconv.Atoi(f[1]); err != nil || h.Height <= 0 {
		return h, errors.Errorf("bad height %q", f[1])
	}
	if h.Width, err = strconv.Atoi(f[3]); err != nil || h.Width <= 0 {
		return h, errors.Errorf("bad width %q", f[3])
	}
	if h.Width > maxHDRPixels || h.Height > maxHDRPixels || h.Width*h.Height > maxHDRPixels {
		return h, errors.Errorf("image %dx%d too large", h.Width, h.Height)
	}
	return h, nil
}

// averageHDR decodes every scanline and returns the mean linear colour.
func averageHDR(ctx context.Context, r *bufio.Reader, h HDRHeader) ([3]float64, error) {
	var sum [3]float64
	line := make([]byte, h.Width*4)
	for y := 0; y < h.Height; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
		}
		if err := readScanline(r, line, h.Width); err != nil {
			return sum, errors.Wrapf(err, "scanline %d", y)
		}
		for x := 0; x < h.Width; x++ {
			c := rgbe(line[x*4], line[x*4+1], line[x*4+2], line[x*4+3])
			sum[0] += c[0]
			sum[1] += c[1]
			sum[2] += c[2]
		}
	}
	n := float64(h.Width * h.Height)
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}, nil
}

// readScanline fills dst with width RGBE pixels, handling both the flat
// layout and the adaptive run-length layout.
func readScanline(r *bufio.Reader, dst []byte, width int) error {
	if width < 8 || width > 0x7fff {
		_, err := io.ReadFull(r, dst)
		return err
	}
	head, err := r.Peek(4)
	if err != nil {
		return err
	}
	if head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		_, err := io.ReadFull(r, dst)
		return err
	}
	if int(head[2])<<8|int(head[3]) != width {
		return errors.New("scanline width mismatch")
	}
	if _, err := r.Discard(4); err != nil {
		return err
	}
	for ch := 0; ch < 4; ch++ {
		for x := 0; x < width; {
			count, err := r.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count) - 128
				if x+n > width {
					return errors.New("run overflows scanline")
				}
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				for ; n > 0; n-- {
					dst[x*4+ch] = v
					x++
				}
				continue
			}
			n := int(count)
			if n == 0 || x+n > width {
				return errors.New("bad literal run")
			}
			for ; n > 0; n-- {
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				dst[x*4+ch] = v
				x++
			}
		}
	}
	return nil
}

func rgbe(r, g, b, e byte) [3]float64 {
	if e == 0 {
		return [3]float64{}
	}
	f := math.Ldexp(1, int(e)-136)
	return [3]float64{float64(r) * f, float64(g) * f, float64(b) * f}
}

func reinhard(x float64) float32 { return float32(x / (1 + x)) }
