package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docforge/internal/api"
	"github.com/dgallion1/docforge/internal/assembler"
	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/render"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var font []byte
	if cfg.OverlayFontPath != "" {
		font, err = os.ReadFile(cfg.OverlayFontPath)
		if err != nil {
			log.Error("failed to read overlay font", "path", cfg.OverlayFontPath, "error", err)
			os.Exit(1)
		}
	}

	svc := render.New(log, render.Options{
		MaxConcurrent: cfg.MaxConcurrentRenders,
		BatchLimit:    cfg.BatchLimit,
		StatsWindow:   cfg.StatsWindow,
		Assembler: assembler.Options{
			NumberFormat: cfg.NumberFormat,
			NoDataLabel:  cfg.NoDataLabel,
		},
		OverlayFont: font,
	})
	srv := api.NewServer(svc, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RenderTimeout)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docforge",
		"port", cfg.Port,
		"max_concurrent_renders", cfg.MaxConcurrentRenders,
		"auth", cfg.APIKey != "",
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
