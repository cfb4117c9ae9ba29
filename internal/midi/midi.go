// Package midi decodes control-surface messages and encodes pad feedback.
package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

type Class int

const (
	Change Class = iota // slider / knob
	Press
	Release
)

func (c Class) String() string {
	switch c {
	case Change:
		return "change"
	case Press:
		return "press"
	case Release:
		return "release"
	}
	return "unknown"
}

// Message is one decoded 3-byte channel message.
type Message struct {
	Class   Class
	Channel uint8
	ID      uint8
	Value   uint8
}

// Decode classifies a raw message. Note-on with zero velocity is a release.
func Decode(b [3]byte) (Message, error) {
	raw := gomidi.Message(b[:])
	var m Message
	switch {
	case raw.GetControlChange(&m.Channel, &m.ID, &m.Value):
		m.Class = Change
	case raw.GetNoteOn(&m.Channel, &m.ID, &m.Value):
		m.Class = Press
		if m.Value&0x7F == 0 {
			m.Class = Release
		}
	case raw.GetNoteOff(&m.Channel, &m.ID, &m.Value):
		m.Class = Release
	default:
		return Message{}, rigerr.InvalidControl("unsupported status 0x%02x", b[0])
	}
	m.ID &= 0x7F
	m.Value &= 0x7F
	return m, nil
}

// Parser assembles a byte stream into messages, honouring running status
// and skipping realtime and system-exclusive bytes.
type Parser struct {
	status byte
	data   [2]byte
	n      int
	sysex  bool
}

// Feed consumes one byte. ok is true when a full message completed.
func (p *Parser) Feed(b byte) (msg Message, ok bool, err error) {
	switch {
	case b >= 0xF8: // realtime, may interleave anything
		return
	case b == 0xF0:
		p.sysex, p.status, p.n = true, 0, 0
		return
	case b == 0xF7:
		p.sysex = false
		return
	case b >= 0xF1: // other system common, cancels running status
		p.status, p.n = 0, 0
		return
	case b&0x80 != 0:
		p.sysex = false
		p.status, p.n = b, 0
		return
	}
	if p.sysex || p.status == 0 {
		return
	}
	kind := p.status & 0xF0
	need := 2
	if kind == 0xC0 || kind == 0xD0 {
		need = 1
	}
	p.data[p.n] = b
	p.n++
	if p.n < need {
		return
	}
	p.n = 0
	if need == 1 {
		return Message{}, false, rigerr.InvalidControl("unsupported status 0x%02x", p.status)
	}
	msg, err = Decode([3]byte{p.status, p.data[0], p.data[1]})
	return msg, err == nil, err
}

// Pad colour codes understood by the APC-style surface.
const (
	Off    uint8 = 0
	Green  uint8 = 1
	Red    uint8 = 3
	Blue   uint8 = 4
	Yellow uint8 = 5
	Orange uint8 = 6
	Lime   uint8 = 7

	// Full is the velocity used to light a pad at full brightness.
	Full uint8 = 127
)

// HueColor picks the nearest pad colour for a hue in degrees. Low
// saturation reads as green.
func HueColor(hue, sat float64) uint8 {
	switch {
	case sat < 0.3:
		return Green
	case hue < 60:
		return Yellow
	case hue < 120:
		return Green
	case hue < 180:
		return Lime
	case hue < 240:
		return Blue
	case hue < 300:
		return Red
	default:
		return Orange
	}
}

// Feedback lights pad ID with a colour code.
type Feedback struct {
	ID    uint8
	Color uint8
}

func Encode(f Feedback) [3]byte {
	var out [3]byte
	copy(out[:], gomidi.NoteOn(0, f.ID&0x7F, f.Color&0x7F))
	return out
}

// InitialPalette is sent once a surface connects.
func InitialPalette() []Feedback {
	var out []Feedback
	span := func(lo, hi int, c uint8) {
		for i := lo; i <= hi; i++ {
			out = append(out, Feedback{ID: uint8(i), Color: c})
		}
	}
	span(56, 63, Yellow)
	span(40, 47, Red)
	span(32, 39, Green)
	span(0, 31, Yellow)
	span(64, 71, Red)
	span(82, 92, Yellow)
	return out
}

// PaletteColor is the colour InitialPalette gives id.
func PaletteColor(id uint8) (uint8, bool) {
	for _, f := range InitialPalette() {
		if f.ID == id {
			return f.Color, true
		}
	}
	return Off, false
}
