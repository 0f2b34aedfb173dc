// Package main provides the clusterd HTTP service entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/textcluster/internal/config"
	"github.com/thebtf/textcluster/internal/events"
	"github.com/thebtf/textcluster/internal/pipeline"
	"github.com/thebtf/textcluster/internal/server"
	"github.com/thebtf/textcluster/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file (default: ~/.textcluster/config.yml)")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
		if err := config.EnsureDataDir(); err != nil {
			log.Warn().Err(err).Msg("Failed to create data directory")
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	setupLogging(cfg, *debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broadcaster := events.NewBroadcaster()
	srv := server.New(cfg, pipeline.New(), broadcaster, Version)

	if w := watchConfig(path, srv, broadcaster, *addr, *debug); w != nil {
		defer func() { _ = w.Stop() }()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// also caps an event stream; clients reconnect
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	httpServer.RegisterOnShutdown(broadcaster.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Str("version", Version).Msg("Starting clusterd")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down clusterd")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.Config().Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("clusterd stopped with error")
	}
}

// setupLogging configures zerolog from cfg. -debug wins over the configured level.
func setupLogging(cfg *config.Config, debug bool) {
	level := cfg.LogLevel()
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// watchConfig reloads the request defaults whenever the config file changes. A removed
// file restores the built-in defaults. The listen address is not reloaded.
func watchConfig(path string, srv *server.Server, ev *events.Broadcaster, addrOverride string, debug bool) *watcher.Watcher {
	w, err := watcher.New(path, func(e watcher.Event) {
		var (
			cfg *config.Config
			err error
		)
		if e == watcher.Removed {
			cfg = config.Default()
		} else if cfg, err = config.Load(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Config reload rejected, keeping previous config")
			return
		}
		cfg.Server.Addr = srv.Config().Server.Addr
		if addrOverride != "" {
			cfg.Server.Addr = addrOverride
		}
		setupLogging(cfg, debug)
		srv.SetConfig(cfg)
		ev.Publish(events.Event{
			Type: events.TypeConfigReload,
			Data: map[string]any{"path": path, "event": e.String()},
		})
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return nil
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Config watcher disabled")
		_ = w.Stop()
		return nil
	}
	return w
}
