// Package app runs the rig: one goroutine owns every piece of mutable state
// and interleaves input handling, async completions and frame rendering.
package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/assets"
	"github.com/coreman2200/funtimes-camrig/internal/camfeed"
	"github.com/coreman2200/funtimes-camrig/internal/config"
	"github.com/coreman2200/funtimes-camrig/internal/control"
	diag "github.com/coreman2200/funtimes-camrig/internal/diagnostics"
	"github.com/coreman2200/funtimes-camrig/internal/export"
	"github.com/coreman2200/funtimes-camrig/internal/filter"
	"github.com/coreman2200/funtimes-camrig/internal/lighting"
	"github.com/coreman2200/funtimes-camrig/internal/midi"
	"github.com/coreman2200/funtimes-camrig/internal/mirror"
	"github.com/coreman2200/funtimes-camrig/internal/panel"
	"github.com/coreman2200/funtimes-camrig/internal/render"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
	"github.com/coreman2200/funtimes-camrig/internal/texxform"
)

// Deps are the rig's external collaborators. Only Models and Envs are
// required.
type Deps struct {
	Models assets.ModelLoader
	Envs   assets.EnvLoader
	Feed   camfeed.Source
	Sink   diag.Sink
	Panel  *panel.Server
	MIDI   *midi.Port
	Mirror *mirror.Mirror

	// ConfigPath is re-read on Reload when set.
	ConfigPath string
	// FrameEvery publishes every nth frame to the panel; 0 means 2.
	FrameEvery int
	Seed       int64
	Now        func() time.Time
}

type Rig struct {
	cfg  *config.Config
	deps Deps

	surf   *render.Surface
	comp   *render.Composer
	graph  *render.Graph
	reg    *render.Registry
	raster render.Raster
	state  *control.State
	mapper *control.Mapper

	ctx    context.Context
	calls  chan func()
	events chan midi.Message
	done   chan struct{}

	modelIdx int
	loadGen  uint64
	envGen   uint64

	frame  render.Frame
	text   string
	frames uint64
}

func New(cfg *config.Config, deps Deps) *Rig {
	if deps.Feed == nil {
		deps.Feed = camfeed.None{}
	}
	if deps.Sink == nil {
		if deps.Panel != nil {
			deps.Sink = deps.Panel
		} else {
			deps.Sink = diag.Discard{}
		}
	}
	if deps.FrameEvery <= 0 {
		deps.FrameEvery = 2
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &Rig{
		cfg:    cfg,
		deps:   deps,
		ctx:    context.Background(),
		calls:  make(chan func(), 64),
		events: make(chan midi.Message, 64),
		done:   make(chan struct{}),
	}
	r.surf = render.NewSurface(cfg.Display.Width, cfg.Display.Height)
	r.surf.OnResize(r.resized)
	r.build()
	return r
}

// build constructs all rig state from cfg at the current surface size.
func (r *Rig) build() {
	w, h := r.surf.Width, r.surf.Height
	r.comp = render.NewComposer(w, h)
	r.graph = render.NewGraph()
	r.reg = render.NewRegistry(r.graph, render.NewCamera(w, h))

	table := make(map[string]texxform.Baked, len(r.cfg.Models))
	for _, m := range r.cfg.Models {
		table[m.Key] = texxform.Baked{Rotation: m.TextureRotation, Flip: m.TextureFlip}
	}
	filters := filter.New(r.comp, r.surf, r.deps.Seed)
	filters.SetSize(w, h)
	lights := lighting.New(r.graph)
	r.state = control.NewState(filters, lights, texxform.New(table), r.reg)

	var fb control.Feedback
	if r.deps.MIDI != nil {
		fb = r.deps.MIDI
	}
	r.mapper = control.New(r.state, r, fb)
	r.mapper.SetEnvironments(r.envNames())
	r.mapper.OnChange(r.publishState)
	if r.deps.Mirror != nil {
		r.deps.Mirror.Attach(lights)
	}
	r.modelIdx = r.indexOf(r.cfg.DefaultModel)
}

func (r *Rig) resized(w, h int) {
	r.reg.Camera.SetViewport(w, h)
	r.state.Filters.SetSize(w, h)
	log.Debug().Int("w", w).Int("h", h).Msg("surface resized")
}

func (r *Rig) envNames() []string {
	out := make([]string, 0, len(r.cfg.Environments))
	for _, e := range r.cfg.Environments {
		out = append(out, e.Name)
	}
	return out
}

func (r *Rig) indexOf(key string) int {
	for i, m := range r.cfg.Models {
		if m.Key == key {
			return i
		}
	}
	return 0
}

// Events accepts decoded hardware input for the loop.
func (r *Rig) Events() chan<- midi.Message { return r.events }

// Do queues fn onto the loop. It never blocks past loop shutdown.
func (r *Rig) Do(fn func()) {
	select {
	case r.calls <- fn:
	case <-r.done:
	}
}

// Sync runs fn on the loop and waits for it. Returns false if the loop has
// stopped.
func (r *Rig) Sync(fn func()) bool {
	ran := make(chan struct{})
	r.Do(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-r.done:
		return false
	}
}

// Start requests the default model and first environment, pushes the
// surface palette and publishes the initial state. Run calls it.
func (r *Rig) Start() {
	if len(r.cfg.Models) > 0 {
		r.LoadModel(r.cfg.Models[r.modelIdx].Key)
	}
	if len(r.cfg.Environments) > 0 {
		r.SwapEnvironment(0)
	}
	if r.deps.MIDI != nil {
		if err := r.deps.MIDI.SendAll(midi.InitialPalette()); err != nil {
			log.Debug().Err(err).Msg("initial palette not sent")
		}
	}
	if r.deps.Panel != nil {
		r.deps.Panel.SetDescriptors(control.Descriptors(r.envNames()))
	}
	r.publishState()
}

// Run drives the loop until ctx ends.
func (r *Rig) Run(ctx context.Context) error {
	r.ctx = ctx
	defer close(r.done)

	fps := r.cfg.FPS
	if fps <= 0 {
		fps = 60
	}
	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()

	var cmds <-chan panel.Command
	if r.deps.Panel != nil {
		cmds = r.deps.Panel.Commands()
	}

	r.Start()
	log.Info().Int("fps", fps).Str("model", r.cfg.DefaultModel).Msg("rig loop started")
	for {
		select {
		case <-ctx.Done():
			r.reg.ClearModel()
			log.Info().Uint64("frames", r.frames).Msg("rig loop stopped")
			return nil
		case fn := <-r.calls:
			r.guard("call", fn)
		case ev := <-r.events:
			r.guard("input", func() { r.report(r.mapper.Handle(ev)) })
		case cmd := <-cmds:
			r.guard("panel", func() { r.report(r.applyCommand(cmd)) })
		case <-tick.C:
			r.guard("frame", r.Step)
		}
	}
}

// guard keeps a panicking step from ending the loop.
func (r *Rig) guard(what string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("%s panicked: %v", what, p)
			log.Error().Err(err).Msg("loop step recovered")
			r.deps.Sink.Push(diag.Diagnostic{
				Severity: diag.Err,
				Code:     "INTERNAL",
				Summary:  "Step failed",
				Detail:   err.Error(),
				Evidence: map[string]any{"step": what, "frame": r.frames},
			})
		}
	}()
	fn()
}

func (r *Rig) report(err error) { rigerr.Report(err, r.deps.Sink) }

func (r *Rig) applyCommand(cmd panel.Command) error {
	if cmd.Key == "resize" {
		m, ok := cmd.Value.(map[string]any)
		if !ok {
			return rigerr.InvalidControl("resize wants {w,h}")
		}
		w, _ := m["w"].(float64)
		h, _ := m["h"].(float64)
		if w < 1 || h < 1 {
			return rigerr.InvalidControl("resize %vx%v", m["w"], m["h"])
		}
		r.Resize(int(w), int(h))
		return nil
	}
	return r.mapper.ApplyPanel(cmd.Key, cmd.Value)
}

// Step renders one frame from the current state.
func (r *Rig) Step() {
	dst := render.NewFrame(r.surf.Width, r.surf.Height)
	r.raster.Render(dst, render.RasterInput{
		Env:        r.graph.Environment(),
		Light:      r.state.Lights.Sample(),
		Model:      r.reg.Model(),
		Feed:       r.deps.Feed.Frame(),
		UV:         r.state.Texture.Matrix(),
		Brightness: r.state.Brightness,
		Transform:  r.reg.Transform,
		Camera:     r.reg.Camera,
	})
	r.frame, r.text = r.state.Filters.Render(dst)
	r.frames++
	if r.deps.Panel == nil {
		return
	}
	r.deps.Panel.SetMetrics(r.comp.Last)
	if r.frames%uint64(r.deps.FrameEvery) == 0 {
		r.deps.Panel.PublishFrame(r.frame, r.text)
	}
}

// Resize applies a new display size before the next frame.
func (r *Rig) Resize(w, h int) { r.surf.Resize(w, h) }

func (r *Rig) publishState() {
	if r.deps.Panel == nil {
		return
	}
	r.deps.Panel.PublishState(r.state.Snapshot())
}

// LoadModel starts an async load of key. The latest request wins: a load
// that completes after a newer request is released instead of attached.
func (r *Rig) LoadModel(key string) {
	mc, ok := r.cfg.Model(key)
	if !ok {
		r.report(rigerr.InvalidControl("unknown model %q", key))
		return
	}
	entry := render.ModelEntry{Key: mc.Key, AssetPath: mc.Path, TextureRotation: mc.TextureRotation, TextureFlip: mc.TextureFlip}
	r.loadGen++
	gen := r.loadGen
	ctx := r.ctx
	log.Info().Str("model", key).Uint64("gen", gen).Msg("loading model")
	go func() {
		var m *render.Model
		var err error
		func() {
			defer recoverLoad("model "+entry.Key, &err)
			m, err = r.deps.Models.LoadModel(ctx, entry)
		}()
		r.Do(func() { r.modelLoaded(gen, entry, m, err) })
	}()
}

// recoverLoad turns a panicking loader into ResourceUnavailable.
func recoverLoad(what string, err *error) {
	if p := recover(); p != nil {
		*err = rigerr.Unavailable(errors.Errorf("loader panicked: %v", p), "%s", what)
	}
}

func (r *Rig) modelLoaded(gen uint64, entry render.ModelEntry, m *render.Model, err error) {
	if gen != r.loadGen {
		if m != nil {
			m.Dispose()
		}
		log.Debug().Str("model", entry.Key).Uint64("gen", gen).Msg("stale model load released")
		return
	}
	if err != nil {
		r.report(err)
		return
	}
	r.reg.SwapModel(entry, m)
	if err := r.state.Texture.SetModel(entry.Key); err != nil {
		r.report(err)
	}
	log.Info().Str("model", entry.Key).Int("stream_surfaces", m.StreamSurfaces()).Msg("model attached")
	r.publishState()
}

// CycleModel advances to the next configured model.
func (r *Rig) CycleModel() {
	if len(r.cfg.Models) == 0 {
		r.report(rigerr.Unavailable(nil, "no models configured"))
		return
	}
	r.modelIdx = (r.modelIdx + 1) % len(r.cfg.Models)
	r.LoadModel(r.cfg.Models[r.modelIdx].Key)
}

// SwapEnvironment loads the index'th environment map asynchronously.
func (r *Rig) SwapEnvironment(index int) {
	if index < 0 || index >= len(r.cfg.Environments) {
		r.report(rigerr.InvalidControl("environment %d not configured", index))
		return
	}
	ec := r.cfg.Environments[index]
	r.envGen++
	gen := r.envGen
	ctx := r.ctx
	go func() {
		var env *render.Environment
		var err error
		func() {
			defer recoverLoad("environment "+ec.Name, &err)
			env, err = r.deps.Envs.LoadEnvironment(ctx, ec.Name, ec.Path)
		}()
		r.Do(func() {
			if gen != r.envGen {
				return
			}
			if err != nil {
				r.report(err)
				return
			}
			r.graph.SetEnvironment(env)
			log.Info().Str("env", ec.Name).Msg("environment switched")
		})
	}()
}

// Reload rebuilds the whole rig from config, re-reading the file when one
// is configured. In-flight loads become stale.
func (r *Rig) Reload() {
	if r.deps.ConfigPath != "" {
		if c, err := config.Load(r.deps.ConfigPath); err != nil {
			r.report(rigerr.Unavailable(err, "reload config %s", r.deps.ConfigPath))
		} else {
			r.cfg = c
		}
	}
	r.reg.ClearModel()
	r.loadGen++
	r.envGen++
	for _, el := range r.surf.Container.Children() {
		r.surf.Container.Remove(el)
	}
	r.surf.Container.Append(r.surf.Canvas)
	r.build()
	log.Info().Msg("rig reloaded")
	r.Start()
}

// Capture writes the current output to the export directory.
func (r *Rig) Capture(format string) {
	f, err := export.ParseFormat(format)
	if err != nil {
		r.report(err)
		return
	}
	path, err := export.Save(r.cfg.ExportDir, export.Capture{Frame: r.frame, Text: r.text}, f, r.deps.Now())
	if err != nil {
		r.report(err)
		return
	}
	r.deps.Sink.Push(diag.Diagnostic{
		Severity: diag.Info,
		Code:     "EXPORT.SAVED",
		Summary:  "Frame captured",
		Detail:   path,
		Evidence: map[string]any{"format": string(f), "frame": r.frames},
	})
}

// accessors for the loop goroutine and tests

func (r *Rig) State() *control.State      { return r.state }
func (r *Rig) Mapper() *control.Mapper    { return r.mapper }
func (r *Rig) Registry() *render.Registry { return r.reg }
func (r *Rig) Surface() *render.Surface   { return r.surf }
func (r *Rig) Graph() *render.Graph       { return r.graph }

// Output is the last composited frame and, while the ascii overlay shows,
// its text.
func (r *Rig) Output() (render.Frame, string) {
	return r.frame, r.text
}
