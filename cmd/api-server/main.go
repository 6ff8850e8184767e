package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/aluiziolira/go-audiobooks-api/api"
	"github.com/aluiziolira/go-audiobooks-api/config"
	"github.com/aluiziolira/go-audiobooks-api/scraper"
)

func main() {
	cfg := config.DefaultConfig()
	if err := config.FromEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Base URL of the audiobook site")
	flag.IntVar(&cfg.Parallelism, "parallel", cfg.Parallelism, "Maximum concurrent detail page fetches")
	flag.IntVar(&cfg.DefaultLimit, "limit", cfg.DefaultLimit, "Default homepage limit")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Upstream request timeout")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(s, cfg.DefaultLimit, s.Metrics.Registry))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		slog.Error("server error", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
