// Package panel serves the browser control panel: typed controls in, state
// snapshots, frames and diagnostics out.
package panel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/control"
	diag "github.com/coreman2200/funtimes-camrig/internal/diagnostics"
	"github.com/coreman2200/funtimes-camrig/internal/export"
	"github.com/coreman2200/funtimes-camrig/internal/render"
)

// Command is one inbound panel change.
type Command struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

const recentDiags = 16

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

type Server struct {
	mu    sync.RWMutex
	descs []control.Descriptor
	cmds  chan Command

	snap    []byte
	model   string
	filter  string
	frameID uint64
	frame   image.Image
	text    string
	metrics render.Metrics
	diags   []diag.Diagnostic

	startTime   time.Time
	controls    map[*client]bool
	frameSubs   map[*client]bool
	diagClients map[*client]bool

	up websocket.Upgrader
}

func New(descs []control.Descriptor, queue int) *Server {
	if queue < 1 {
		queue = 64
	}
	return &Server{
		descs:       descs,
		cmds:        make(chan Command, queue),
		startTime:   time.Now(),
		controls:    map[*client]bool{},
		frameSubs:   map[*client]bool{},
		diagClients: map[*client]bool{},
		up:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Commands is drained by the rig loop; every command is applied there.
func (s *Server) Commands() <-chan Command { return s.cmds }

func (s *Server) SetDescriptors(d []control.Descriptor) {
	s.mu.Lock()
	s.descs = d
	s.mu.Unlock()
	s.broadcast(s.controlList(), envelope("layout", d))
}

// Router wires every endpoint behind recovery, CORS and access logging.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/control", s.HandleControlWS)
	r.HandleFunc("/frames", s.HandleFramesWS)
	r.HandleFunc("/diag", s.HandleDiagWS)
	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/export", s.HandleExport).Methods(http.MethodGet)

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	return handlers.LoggingHandler(log.Logger, h)
}

func envelope(kind string, payload any) []byte {
	b, err := json.Marshal(map[string]any{"type": kind, kind: payload})
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("encode panel message")
		return nil
	}
	return b
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request, set map[*client]bool) *client {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("websocket upgrade")
		return nil
	}
	c := &client{conn: conn}
	s.mu.Lock()
	set[c] = true
	s.mu.Unlock()
	return c
}

func (s *Server) drop(c *client, set map[*client]bool) {
	s.mu.Lock()
	delete(set, c)
	s.mu.Unlock()
	c.conn.Close()
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	c := s.accept(w, r, s.controls)
	if c == nil {
		return
	}
	defer s.drop(c, s.controls)

	s.mu.RLock()
	layout := envelope("layout", s.descs)
	snap := s.snap
	s.mu.RUnlock()
	_ = c.send(layout)
	if snap != nil {
		_ = c.send(snap)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Key == "" {
			_ = c.send(envelope("error", "expected {\"key\",\"value\"}"))
			continue
		}
		select {
		case s.cmds <- cmd:
		default:
			log.Warn().Str("key", cmd.Key).Msg("panel queue full; command dropped")
			_ = c.send(envelope("error", "busy"))
		}
	}
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	c := s.accept(w, r, s.frameSubs)
	if c == nil {
		return
	}
	s.mu.RLock()
	f, text, id := s.frame, s.text, s.frameID
	s.mu.RUnlock()
	if f != nil || text != "" {
		if b := frameMessage(f, text, id); b != nil {
			_ = c.send(b)
		}
	}
	go s.drain(c, s.frameSubs)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c := s.accept(w, r, s.diagClients)
	if c == nil {
		return
	}
	s.mu.RLock()
	recent := append([]diag.Diagnostic(nil), s.diags...)
	s.mu.RUnlock()
	for _, d := range recent {
		b, _ := json.Marshal(d)
		_ = c.send(b)
	}
	go s.drain(c, s.diagClients)
}

// drain keeps a send-only socket open until the peer goes away.
func (s *Server) drain(c *client, set map[*client]bool) {
	defer s.drop(c, set)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"model":    s.model,
		"filter":   s.filter,
		"clients":  len(s.controls) + len(s.frameSubs) + len(s.diagClients),
		"post_ms":  s.metrics.PostMS,
		"passes":   s.metrics.Passes,
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleExport returns the most recent output as png, webp or txt.
func (s *Server) HandleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.RLock()
	c := export.Capture{Frame: s.frame, Text: s.text}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := c.Write(&buf, f); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=screenshot."+string(f))
	_, _ = w.Write(buf.Bytes())
}

// PublishState broadcasts snap to every control client.
func (s *Server) PublishState(snap control.Snapshot) {
	b := envelope("state", snap)
	if b == nil {
		return
	}
	s.mu.Lock()
	s.snap = b
	s.model = snap.Model
	s.filter = string(snap.Filters.ActivePrimary)
	s.mu.Unlock()
	s.broadcast(s.controlList(), b)
}

// PublishFrame records the latest output and streams it to frame
// subscribers. text is non-empty while the ascii overlay is showing. The
// caller must not modify f afterwards.
func (s *Server) PublishFrame(f image.Image, text string) {
	s.mu.Lock()
	s.frameID++
	s.frame, s.text = f, text
	id := s.frameID
	subs := make([]*client, 0, len(s.frameSubs))
	for c := range s.frameSubs {
		subs = append(subs, c)
	}
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	if b := frameMessage(f, text, id); b != nil {
		s.broadcast(subs, b)
	}
}

// SetMetrics records the composer timings reported by /health.
func (s *Server) SetMetrics(m render.Metrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

func frameMessage(f image.Image, text string, id uint64) []byte {
	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		PNG     string `json:"png,omitempty"`
		Text    string `json:"text,omitempty"`
	}
	msg := frame{T: time.Now().UnixNano(), FrameID: id, Text: text}
	if text == "" && f != nil {
		var buf bytes.Buffer
		if err := export.Encode(&buf, f, export.PNG); err != nil {
			log.Debug().Err(err).Msg("encode frame")
			return nil
		}
		msg.PNG = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	b, _ := json.Marshal(msg)
	return b
}

// Push implements diagnostics.Sink.
func (s *Server) Push(d diag.Diagnostic) {
	s.mu.Lock()
	s.diags = append(s.diags, d)
	if len(s.diags) > recentDiags {
		s.diags = s.diags[len(s.diags)-recentDiags:]
	}
	subs := make([]*client, 0, len(s.diagClients))
	for c := range s.diagClients {
		subs = append(subs, c)
	}
	s.mu.Unlock()
	b, _ := json.Marshal(d)
	s.broadcast(subs, b)
}

func (s *Server) controlList() []*client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*client, 0, len(s.controls))
	for c := range s.controls {
		out = append(out, c)
	}
	return out
}

func (s *Server) broadcast(to []*client, b []byte) {
	for _, c := range to {
		if err := c.send(b); err != nil {
			log.Debug().Err(err).Msg("panel write")
		}
	}
}
