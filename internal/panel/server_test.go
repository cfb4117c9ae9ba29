package panel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-camrig/internal/control"
	diag "github.com/coreman2200/funtimes-camrig/internal/diagnostics"
	"github.com/coreman2200/funtimes-camrig/internal/filter"
	"github.com/coreman2200/funtimes-camrig/internal/render"
)

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := c.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestControlRoundTrip(t *testing.T) {
	s := New(control.Descriptors([]string{"quarry"}), 4)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	c := dial(t, srv, "/control")
	layout := read(t, c)
	assert.Equal(t, "layout", layout["type"])
	assert.NotEmpty(t, layout["layout"])

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"key":"filter","value":"ascii"}`)))
	select {
	case cmd := <-s.Commands():
		assert.Equal(t, Command{Key: "filter", Value: "ascii"}, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not queued")
	}

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`nonsense`)))
	assert.Equal(t, "error", read(t, c)["type"])

	s.PublishState(control.Snapshot{Model: "iphone", Filters: filter.State{ActivePrimary: filter.Halftone}})
	st := read(t, c)
	require.Equal(t, "state", st["type"])
	assert.Equal(t, "iphone", st["state"].(map[string]any)["model"])
}

func TestNewClientGetsLastState(t *testing.T) {
	s := New(nil, 1)
	s.PublishState(control.Snapshot{Model: "macbook"})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	c := dial(t, srv, "/control")
	read(t, c)
	st := read(t, c)
	assert.Equal(t, "macbook", st["state"].(map[string]any)["model"])
}

func TestFullQueueDropsCommand(t *testing.T) {
	s := New(nil, 1)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()
	c := dial(t, srv, "/control")
	read(t, c)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"key":"reset"}`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"key":"reset"}`)))
	m := read(t, c)
	assert.Equal(t, "busy", m["error"])
	assert.Len(t, s.Commands(), 1)
}

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(2, 1, color.RGBA{10, 20, 30, 255})
	return img
}

func TestFramesStream(t *testing.T) {
	s := New(nil, 1)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	s.PublishFrame(testFrame(), "")
	c := dial(t, srv, "/frames")
	m := read(t, c)
	assert.EqualValues(t, 1, m["frame_id"])
	raw, err := base64.StdEncoding.DecodeString(m["png"].(string))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, color.RGBAModel.Convert(img.At(2, 1)))

	s.PublishFrame(testFrame(), "@@\n")
	m = read(t, c)
	assert.Equal(t, "@@\n", m["text"])
	assert.Nil(t, m["png"])
}

func TestDiagReplayAndPush(t *testing.T) {
	s := New(nil, 1)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	s.Push(diag.Diagnostic{Severity: diag.Warn, Code: "RESOURCE.UNAVAILABLE"})
	c := dial(t, srv, "/diag")
	assert.Equal(t, "RESOURCE.UNAVAILABLE", read(t, c)["code"])

	s.Push(diag.Diagnostic{Severity: diag.Warn, Code: "CONTROL.INVALID"})
	assert.Equal(t, "CONTROL.INVALID", read(t, c)["code"])
}

func TestHealthAndExport(t *testing.T) {
	s := New(nil, 1)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/export?format=png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/export?format=bmp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.PublishFrame(testFrame(), "")
	s.PublishState(control.Snapshot{Model: "iphone", Filters: filter.State{ActivePrimary: filter.Sepia}})
	s.SetMetrics(render.Metrics{PostMS: 1.5, Passes: 3})

	resp, err = http.Get(srv.URL + "/export?format=webp")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))
	assert.Equal(t, "RIFF", string(body[:4]))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var h map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.EqualValues(t, 1, h["frame_id"])
	assert.Equal(t, "iphone", h["model"])
	assert.Equal(t, "sepia", h["filter"])
	assert.EqualValues(t, 3, h["passes"])
	assert.InDelta(t, 1.5, h["post_ms"], 1e-9)
}
