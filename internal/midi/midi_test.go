package midi

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/coreman2200/funtimes-camrig/internal/config"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

func TestDecodeClasses(t *testing.T) {
	cases := []struct {
		in   [3]byte
		want Class
	}{
		{[3]byte{0xB0, 48, 64}, Change},
		{[3]byte{0x90, 40, 127}, Press},
		{[3]byte{0x90, 40, 0}, Release},
		{[3]byte{0x80, 40, 64}, Release},
		{[3]byte{0x93, 1, 1}, Press},
	}
	for _, c := range cases {
		m, err := Decode(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, m.Class, "%x", c.in)
		assert.Equal(t, c.in[1], m.ID)
	}
	m, _ := Decode([3]byte{0x93, 1, 1})
	assert.Equal(t, uint8(3), m.Channel)

	_, err := Decode([3]byte{0xE0, 0, 64})
	assert.True(t, errors.Is(err, rigerr.ErrInvalidControl))
}

func TestParserRunningStatusAndRealtime(t *testing.T) {
	stream := []byte{
		0xB0, 48, 10,           // cc
		49, 20,                 // running status cc
		0xF8,                   // clock tick between messages
		0x90, 40, 0xFE, 127,    // active sensing mid-message
		0xF0, 0x7E, 0x01, 0xF7, // sysex
		0x80, 40, 0,
	}
	var p Parser
	var got []Message
	for _, b := range stream {
		m, ok, err := p.Feed(b)
		require.NoError(t, err)
		if ok {
			got = append(got, m)
		}
	}
	require.Len(t, got, 4)
	assert.Equal(t, Message{Class: Change, ID: 48, Value: 10}, got[0])
	assert.Equal(t, Message{Class: Change, ID: 49, Value: 20}, got[1])
	assert.Equal(t, Message{Class: Press, ID: 40, Value: 127}, got[2])
	assert.Equal(t, Release, got[3].Class)
}

func TestParserSkipsProgramChange(t *testing.T) {
	var p Parser
	_, ok, _ := p.Feed(0xC0)
	assert.False(t, ok)
	_, ok, err := p.Feed(5)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestEncodeAndHueColor(t *testing.T) {
	assert.Equal(t, [3]byte{0x90, 46, 3}, Encode(Feedback{ID: 46, Color: Red}))
	assert.Equal(t, Green, HueColor(200, 0.1))
	assert.Equal(t, Yellow, HueColor(30, 1))
	assert.Equal(t, Lime, HueColor(150, 1))
	assert.Equal(t, Blue, HueColor(210, 1))
	assert.Equal(t, Red, HueColor(270, 1))
	assert.Equal(t, Orange, HueColor(330, 1))
}

func TestEncodeReadsAsNoteOn(t *testing.T) {
	out := Encode(Feedback{ID: 0xC8, Color: Lime})
	var ch, key, vel uint8
	require.True(t, gomidi.Message(out[:]).GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(0), ch)
	assert.Equal(t, uint8(0x48), key)
	assert.Equal(t, Lime, vel)

	m, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, Message{Class: Press, ID: 0x48, Value: Lime}, m)
}

func TestPaletteColor(t *testing.T) {
	c, ok := PaletteColor(56)
	require.True(t, ok)
	assert.Equal(t, Yellow, c)
	_, ok = PaletteColor(127)
	assert.False(t, ok)
}

func TestInitialPalette(t *testing.T) {
	p := InitialPalette()
	assert.Len(t, p, 75)
	assert.Equal(t, Feedback{ID: 56, Color: Yellow}, p[0])
	assert.Equal(t, Feedback{ID: 92, Color: Yellow}, p[len(p)-1])
}

type pipeRWC struct {
	r      io.Reader
	w      bytes.Buffer
	closed bool
}

func (p *pipeRWC) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeRWC) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeRWC) Close() error                { p.closed = true; return nil }

func TestPortListenAndSend(t *testing.T) {
	rwc := &pipeRWC{r: bytes.NewReader([]byte{0x90, 71, 100, 0x80, 71, 0})}
	port := NewPort("test", rwc)

	out := make(chan Message, 4)
	err := port.Listen(context.Background(), out)
	assert.Error(t, err, "EOF surfaces as a link failure")
	require.Len(t, out, 2)
	assert.Equal(t, Press, (<-out).Class)

	require.NoError(t, port.SendAll(InitialPalette()[:2]))
	assert.Equal(t, []byte{0x90, 56, 5, 0x90, 57, 5}, rwc.w.Bytes())

	require.NoError(t, port.Close())
	assert.True(t, rwc.closed)
	err = port.SetPad(1, Green)
	assert.True(t, errors.Is(err, rigerr.ErrResourceUnavailable))
}

func TestPortListenStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	port := NewPort("pipe", &pipeRWC{r: pr})
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Message)
	done := make(chan error, 1)
	go func() { done <- port.Listen(ctx, out) }()

	go func() { _, _ = pw.Write([]byte{0xB0, 48, 1}) }()
	select {
	case m := <-out:
		assert.Equal(t, uint8(48), m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	cancel()
	pw.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}
}

func TestOpen(t *testing.T) {
	p, err := Open(config.MIDI{Transport: "none"})
	assert.Nil(t, p)
	assert.NoError(t, err)

	_, err = Open(config.MIDI{Transport: "rawmidi", Device: "/nonexistent/midiC9D9"})
	assert.True(t, errors.Is(err, rigerr.ErrResourceUnavailable))

	_, err = Open(config.MIDI{Transport: "serial", Port: "/nonexistent/ttyMIDI"})
	assert.True(t, errors.Is(err, rigerr.ErrResourceUnavailable))

	_, err = Open(config.MIDI{Transport: "carrier-pigeon"})
	assert.True(t, errors.Is(err, rigerr.ErrInvalidControl))
}
