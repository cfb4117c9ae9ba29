package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/app"
	"github.com/coreman2200/funtimes-camrig/internal/assets"
	"github.com/coreman2200/funtimes-camrig/internal/camfeed"
	"github.com/coreman2200/funtimes-camrig/internal/config"
	"github.com/coreman2200/funtimes-camrig/internal/control"
	"github.com/coreman2200/funtimes-camrig/internal/midi"
	"github.com/coreman2200/funtimes-camrig/internal/mirror"
	"github.com/coreman2200/funtimes-camrig/internal/panel"
	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

func main() {
	// ---- Flags (config.yaml provides the rest; set flags win) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", "", "HTTP listen address (default from config)")
		fps        = flag.Int("fps", 0, "target frames per second (default from config)")
		assetDir   = flag.String("assets", "", "directory model and HDR paths are relative to")
		logLevel   = flag.String("log-level", "", "debug | info | warn | error")
		midiMode   = flag.String("midi", "", "midi transport: none | serial | rawmidi")
		midiPort   = flag.String("midi-port", "", "serial port for -midi serial")
		midiDev    = flag.String("midi-dev", "", "device node for -midi rawmidi")
		mirrorDrv  = flag.String("mirror", "", "light mirror: none | console | spi")
		still      = flag.String("still", "", "image to use as the camera feed instead of the test pattern")
		watch      = flag.Bool("watch", true, "reload when the config file changes")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	override(&cfg.Addr, *addr)
	override(&cfg.AssetDir, *assetDir)
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.MIDI.Transport, *midiMode)
	override(&cfg.MIDI.Port, *midiPort)
	override(&cfg.MIDI.Device, *midiDev)
	override(&cfg.Mirror.Driver, *mirrorDrv)
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Camera feed ----
	var feed camfeed.Source
	if *still != "" {
		s, err := camfeed.OpenStill(*still)
		if err != nil {
			log.Fatal().Err(err).Str("path", *still).Msg("camera still")
		}
		feed = s
	} else {
		p := camfeed.NewPattern(cfg.Display.Width, cfg.Display.Height)
		p.Start(ctx, 1500*time.Millisecond, nil)
		feed = p
	}

	// ---- Hardware ----
	port, err := midi.Open(cfg.MIDI)
	if err != nil {
		log.Warn().Err(err).Str("transport", cfg.MIDI.Transport).Msg("midi unavailable; panel only")
		port = nil
	}
	mir, err := mirror.Open(cfg.Mirror)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Mirror.Driver).Msg("light mirror disabled")
		mir = nil
	}

	// ---- Rig ----
	pan := panel.New(control.Descriptors(nil), 64)
	rig := app.New(cfg, app.Deps{
		Models:     assets.New(cfg.AssetDir),
		Envs:       assets.New(cfg.AssetDir),
		Feed:       feed,
		Panel:      pan,
		MIDI:       port,
		Mirror:     mir,
		ConfigPath: *configPath,
		Seed:       time.Now().UnixNano(),
	})

	go func() {
		if err := rig.Run(ctx); err != nil {
			log.Error().Err(err).Msg("rig loop exited")
		}
	}()
	if port != nil {
		go func() {
			if err := port.Listen(ctx, rig.Events()); err != nil {
				log.Warn().Err(err).Str("port", port.Name()).Msg("midi input ended")
				rigerr.Report(err, pan)
			}
		}()
	}
	if *watch {
		go func() {
			if err := rig.WatchConfig(ctx, *configPath); err != nil {
				log.Warn().Err(err).Msg("config watch disabled")
			}
		}()
	}

	// ---- HTTP ----
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      pan.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.DefaultModel).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	cancel()
	_ = srv.Close()
	if port != nil {
		_ = port.Close()
	}
	if mir != nil {
		_ = mir.Close()
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
