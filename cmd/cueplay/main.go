/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/showctl/cueplay/internal/audio"
	"github.com/showctl/cueplay/internal/config"
	"github.com/showctl/cueplay/internal/controller"
	"github.com/showctl/cueplay/internal/db"
	"github.com/showctl/cueplay/internal/eventbus"
	"github.com/showctl/cueplay/internal/history"
	"github.com/showctl/cueplay/internal/logbuffer"
	"github.com/showctl/cueplay/internal/logging"
	"github.com/showctl/cueplay/internal/remote"
	"github.com/showctl/cueplay/internal/server"
	"github.com/showctl/cueplay/internal/telemetry"
	"github.com/showctl/cueplay/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "cueplay",
	Short:   "Cueplay - headless venue playout daemon",
	Long:    "Cueplay drives timed song playback for live shows: a cue playlist, fade-controlled transitions, and a TCP command socket for the show caller.",
	Version: fmt.Sprintf("%s (%s)", version.Version, version.Commit),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playout daemon",
	Long:  "Start the audio engine, the show-control command socket and the HTTP status server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Recent log lines stay queryable at /logs alongside console output.
	logBuf := logbuffer.New(500)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))

	logger.Info().Str("version", version.Version).Msg("cueplay starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "cueplay",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	var closers []func() error

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var hist *history.Service
	if cfg.HistoryEnabled {
		database, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, func() error { return db.Close(database) })
		hist, err = history.NewService(database, logger)
		if err != nil {
			return fmt.Errorf("initialize play history: %w", err)
		}

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-bgCtx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(database)
				}
			}
		}()
	} else {
		logger.Info().Msg("play history disabled")
	}

	bus, err := eventbus.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	closers = append(closers, bus.Close)

	tuning := audio.DefaultTuning()
	tuning.NaturalFade.Duration = cfg.NaturalFade()
	tuning.HaltFade.Duration = cfg.HaltFade()
	tuning.PollInterval = cfg.PositionPoll()

	ctrl := controller.New(audio.NewBeepBackend(logger), bus, hist, cfg.MediaRoot, tuning, logger)
	closers = append(closers, ctrl.Close)

	if cfg.PlaylistPath != "" {
		if _, statErr := os.Stat(cfg.PlaylistPath); statErr == nil {
			if loadErr := ctrl.LoadPlaylist(cfg.PlaylistPath); loadErr != nil {
				return fmt.Errorf("load playlist %s: %w", cfg.PlaylistPath, loadErr)
			}
		} else {
			logger.Info().Str("path", cfg.PlaylistPath).Msg("playlist file absent, starting empty")
		}
	}

	listener := remote.NewListener(cfg.CommandBind, logger)
	ctrl.BindRemote(listener)
	if err := listener.Start(); err != nil {
		return fmt.Errorf("start command listener: %w", err)
	}
	closers = append(closers, listener.Close)
	ctrl.SetListenAddr(listener.Addr())

	srv := server.New(cfg, ctrl, hist, logBuf, logger)
	for _, fn := range closers {
		srv.DeferClose(fn)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", cfg.StatusBind).Msg("status server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("status server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	// Cuts any running song outright; a shutdown is not a halt fade.
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("cueplay stopped")
	return nil
}
