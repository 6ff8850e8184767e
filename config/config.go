package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds scraper and server configuration.
type Config struct {
	BaseURL            string
	PopularPath        string
	ListenAddr         string
	Parallelism        int
	Timeout            time.Duration
	ShutdownTimeout    time.Duration
	DefaultLimit       int
	DedupeMaxSize      int
	MaxPages           int
	PipelineBufferSize int
	BatchSize          int
	OutputFile         string
	OutputFormat       string // csv, json, or dual
	UserAgent          string
	Verbose            bool
	RespectRobotsTxt   bool
}

// DefaultConfig returns defaults for the Littérature Audio site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://www.litteratureaudio.com",
		PopularPath:        "/classement-de-nos-livres-audio-gratuits-les-plus-apprecies",
		ListenAddr:         ":8000",
		Parallelism:        4,
		Timeout:            10 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		DefaultLimit:       20,
		DedupeMaxSize:      4096,
		MaxPages:           1,
		PipelineBufferSize: 256,
		BatchSize:          32,
		OutputFile:         "output/books.csv",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// PopularURL returns the popularity ranking URL for page n.
func (c *Config) PopularURL(page int) string {
	base := strings.TrimSuffix(c.BaseURL, "/") + c.PopularPath
	if page > 1 {
		return fmt.Sprintf("%s/page/%d", strings.TrimSuffix(base, "/"), page)
	}
	return base
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.PopularPath != "" && !strings.HasPrefix(c.PopularPath, "/") {
		return fmt.Errorf("popular path must start with /")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout cannot be negative")
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a time.Duration ("10s", "500ms").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// FromEnv applies AUDIO_* environment overrides on top of cfg.
func FromEnv(cfg *Config) error {
	if value, ok := EnvString("AUDIO_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok := EnvString("AUDIO_POPULAR_PATH"); ok {
		cfg.PopularPath = value
	}
	if value, ok := EnvString("AUDIO_LISTEN_ADDR"); ok {
		cfg.ListenAddr = value
	}
	if value, ok := EnvString("AUDIO_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok, err := EnvInt("AUDIO_PARALLEL"); err != nil {
		return err
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok, err := EnvInt("AUDIO_DEFAULT_LIMIT"); err != nil {
		return err
	} else if ok {
		cfg.DefaultLimit = value
	}
	if value, ok, err := EnvInt("AUDIO_DEDUPE_MAX"); err != nil {
		return err
	} else if ok {
		cfg.DedupeMaxSize = value
	}
	if value, ok, err := EnvDuration("AUDIO_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok, err := EnvBool("AUDIO_VERBOSE"); err != nil {
		return err
	} else if ok {
		cfg.Verbose = value
	}
	return nil
}
