package midi

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/coreman2200/funtimes-camrig/internal/config"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// Port is a bidirectional link to one control surface.
type Port struct {
	name string
	rwc  io.ReadWriteCloser

	mu     sync.Mutex
	closed bool
}

func NewPort(name string, rwc io.ReadWriteCloser) *Port {
	return &Port{name: name, rwc: rwc}
}

// Open connects the transport named in cfg. A disabled transport returns
// (nil, nil); a missing device is ResourceUnavailable.
func Open(cfg config.MIDI) (*Port, error) {
	switch cfg.Transport {
	case "", "none":
		return nil, nil
	case "serial":
		baud := cfg.Baud
		if baud <= 0 {
			baud = 31250
		}
		sp, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, rigerr.Unavailable(err, "open serial midi %s", cfg.Port)
		}
		log.Info().Str("port", cfg.Port).Int("baud", baud).Msg("midi serial open")
		return NewPort(cfg.Port, sp), nil
	case "rawmidi":
		f, err := os.OpenFile(cfg.Device, os.O_RDWR, 0)
		if err != nil {
			return nil, rigerr.Unavailable(err, "open raw midi %s", cfg.Device)
		}
		log.Info().Str("device", cfg.Device).Msg("midi device open")
		return NewPort(cfg.Device, f), nil
	}
	return nil, rigerr.InvalidControl("unknown midi transport %q", cfg.Transport)
}

func (p *Port) Name() string { return p.name }

// Listen decodes messages onto out until ctx ends or the link fails.
// Undecodable bytes are logged and skipped.
func (p *Port) Listen(ctx context.Context, out chan<- Message) error {
	r := bufio.NewReader(p.rwc)
	var ps Parser
	for {
		b, err := r.ReadByte()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return errors.Wrapf(err, "midi read %s", p.name)
		}
		msg, ok, err := ps.Feed(b)
		if err != nil {
			log.Debug().Err(err).Msg("midi skip")
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// SetPad implements the mapper's feedback channel.
func (p *Port) SetPad(id, color uint8) error {
	return p.Send(Feedback{ID: id, Color: color})
}

func (p *Port) Send(f Feedback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return rigerr.Unavailable(nil, "midi port %s closed", p.name)
	}
	b := Encode(f)
	if _, err := p.rwc.Write(b[:]); err != nil {
		return rigerr.Unavailable(err, "midi write %s", p.name)
	}
	return nil
}

// SendAll stops at the first failure.
func (p *Port) SendAll(fs []Feedback) error {
	for _, f := range fs {
		if err := p.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.rwc.Close()
}
