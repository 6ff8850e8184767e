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
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-audiobooks-api/config"
	"github.com/aluiziolira/go-audiobooks-api/models"
	"github.com/aluiziolira/go-audiobooks-api/pipeline"
	"github.com/aluiziolira/go-audiobooks-api/scraper"
)

type exportResult struct {
	Source    string
	Pages     int
	Submitted int
}

func main() {
	cfg := config.DefaultConfig()
	if err := config.FromEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}
	outputDefault := cfg.OutputFile
	if value, ok := config.EnvString("AUDIO_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := ""
	if value, ok := config.EnvString("AUDIO_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	source := flag.String("source", "home", "Listing to export: home or popular")
	maxPages := flag.Int("pages", cfg.MaxPages, "Popularity pages to export, starting at page 1")
	limit := flag.Int("limit", cfg.DefaultLimit, "Homepage books to accept")
	details := flag.Bool("details", false, "Fetch each book's page for description and chapters")
	parallelism := flag.Int("parallel", cfg.Parallelism, "Number of concurrent detail fetches and writer workers")
	respectRobots := flag.Bool("respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", cfg.OutputFormat, "Output format: csv, json, or dual")
	baseURL := flag.String("base-url", cfg.BaseURL, "Base URL of the audiobook site")
	verbose := flag.Bool("v", cfg.Verbose, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg.BaseURL = *baseURL
	cfg.MaxPages = *maxPages
	cfg.DefaultLimit = *limit
	cfg.Parallelism = *parallelism
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *source != "home" && *source != "popular" {
		slog.Error("invalid configuration", slog.String("source", *source))
		os.Exit(1)
	}

	slog.Info("starting export",
		slog.String("base_url", cfg.BaseURL),
		slog.String("source", *source),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    *metricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", *metricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := export(ctx, s, p, cfg, *source, *details)
	if err != nil {
		slog.Error("export failed", slog.Any("error", err))
		_ = p.Close()
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile, p.Stats())
}

// export runs the requested listing passes and feeds every book to p.
func export(ctx context.Context, s *scraper.Scraper, p *pipeline.Pipeline, cfg *config.Config, source string, details bool) (exportResult, error) {
	result := exportResult{Source: source}

	submit := func(books []models.Book) error {
		if details {
			detailed, err := s.DetailsAll(ctx, books)
			if err != nil {
				return err
			}
			books = detailed
		}
		batch := make([]*models.Book, len(books))
		for i := range books {
			batch[i] = &books[i]
		}
		result.Submitted += len(batch)
		return p.Process(batch...)
	}

	if source == "home" {
		listing, err := s.ListHomepage(ctx, cfg.DefaultLimit)
		if err != nil {
			return result, err
		}
		result.Pages = 1
		books := append(append([]models.Book{}, listing.Featured...), listing.Recent...)
		return result, submit(books)
	}

	for page := 1; page <= cfg.MaxPages; page++ {
		popular, err := s.ListPopular(ctx, page)
		if err != nil {
			return result, err
		}
		result.Pages++
		if err := submit(popular.Books); err != nil {
			return result, err
		}
		if page >= popular.TotalPages {
			break
		}
	}
	return result, nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result exportResult, duration time.Duration, outputFile string, stats pipeline.Stats) {
	booksPerSec := 0.0
	if duration.Seconds() > 0 {
		booksPerSec = float64(stats.Written) / duration.Seconds()
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Export complete")
	t.AppendRows([]table.Row{
		{"Source", result.Source},
		{"Pages", result.Pages},
		{"Submitted", result.Submitted},
		{"Written", stats.Written},
	})
	if len(stats.Rejected) > 0 {
		t.AppendRow(table.Row{"Rejected", fmt.Sprint(stats.Rejected)})
	}
	t.AppendRows([]table.Row{
		{"Duration", duration.Round(time.Millisecond)},
		{"Books/sec", fmt.Sprintf("%.2f", booksPerSec)},
		{"Output file", outputFile},
	})
	t.Render()
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
