package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/citerender/internal/api"
	"github.com/dgallion1/citerender/internal/citeproc"
	"github.com/dgallion1/citerender/internal/config"
	"github.com/dgallion1/citerender/internal/pipeline"
	"github.com/dgallion1/citerender/internal/stats"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		log.Error("failed to read env file", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	locales, err := citeproc.NewRegistry(cfg.LocaleDir)
	if err != nil {
		log.Error("failed to load locales", "error", err)
		os.Exit(1)
	}
	if _, ok := locales.Match(cfg.DefaultLocale); !ok {
		log.Error("default locale not available", "locale", cfg.DefaultLocale, "available", locales.Langs())
		os.Exit(1)
	}

	// Initialize pipeline.
	annotator := pipeline.NewAnnotator(pipeline.NewCiteprocEngine, locales, cfg.DefaultLocale, log)
	bibliography := pipeline.NewBibliographyRenderer(pipeline.NewCiteprocEngine, locales, cfg.DefaultLocale, log)
	rec := stats.NewRecorder(cfg.StatsWindow)

	// Initialize HTTP server.
	srv := api.NewServer(annotator, bibliography, rec, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting citerender", "port", cfg.Port, "locales", locales.Langs(), "auth", cfg.APIKey != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
