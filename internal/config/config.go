package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/docforge/internal/tables"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth. An empty key leaves the API open.
	APIKey string

	// Render limits
	MaxConcurrentRenders int
	BatchLimit           int
	MaxRequestBytes      int64
	RenderTimeout        time.Duration

	// Latency stats window
	StatsWindow time.Duration

	// Tables
	NumberFormat tables.NumberFormat
	NoDataLabel  string

	// PDF overlay TrueType font; Helvetica when empty
	OverlayFontPath string

	LogLevel string
}

// fileConfig is the optional YAML file named by DOCFORGE_CONFIG.
// Environment variables override it.
type fileConfig struct {
	Port                 string              `yaml:"port"`
	MaxConcurrentRenders int                 `yaml:"max_concurrent_renders"`
	BatchLimit           int                 `yaml:"batch_limit"`
	MaxRequestBytes      int64               `yaml:"max_request_bytes"`
	RenderTimeout        string              `yaml:"render_timeout"`
	StatsWindow          string              `yaml:"stats_window"`
	NumberFormat         tables.NumberFormat `yaml:"number_format"`
	NoDataLabel          string              `yaml:"no_data_label"`
	OverlayFontPath      string              `yaml:"overlay_font_path"`
	LogLevel             string              `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Port:                 "8090",
		MaxConcurrentRenders: 8,
		BatchLimit:           4,
		MaxRequestBytes:      52428800, // 50MB
		RenderTimeout:        30 * time.Second,
		StatsWindow:          1 * time.Hour,
		NumberFormat:         tables.DefaultNumberFormat(),
		NoDataLabel:          "No data",
		LogLevel:             "info",
	}
}

// Load reads the YAML file named by DOCFORGE_CONFIG, if any, then applies
// environment overrides and clamps invalid limits to their defaults.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("DOCFORGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCFORGE_API_KEY", cfg.APIKey)
	cfg.MaxConcurrentRenders = envInt("MAX_CONCURRENT_RENDERS", cfg.MaxConcurrentRenders)
	cfg.BatchLimit = envInt("BATCH_LIMIT", cfg.BatchLimit)
	cfg.MaxRequestBytes = envInt64("MAX_REQUEST_BYTES", cfg.MaxRequestBytes)
	cfg.RenderTimeout = envDuration("RENDER_TIMEOUT", cfg.RenderTimeout)
	cfg.StatsWindow = envDuration("STATS_WINDOW", cfg.StatsWindow)
	cfg.NumberFormat.Decimal = envOr("NUMBER_DECIMAL", cfg.NumberFormat.Decimal)
	cfg.NumberFormat.Thousands = envOr("NUMBER_THOUSANDS", cfg.NumberFormat.Thousands)
	cfg.NoDataLabel = envOr("NO_DATA_LABEL", cfg.NoDataLabel)
	cfg.OverlayFontPath = envOr("OVERLAY_FONT_PATH", cfg.OverlayFontPath)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	d := defaults()
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = d.MaxConcurrentRenders
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = d.BatchLimit
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = d.MaxRequestBytes
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = d.RenderTimeout
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = d.StatsWindow
	}
	if cfg.NumberFormat.Places <= 0 {
		cfg.NumberFormat.Places = d.NumberFormat.Places
	}

	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.MaxConcurrentRenders != 0 {
		c.MaxConcurrentRenders = fc.MaxConcurrentRenders
	}
	if fc.BatchLimit != 0 {
		c.BatchLimit = fc.BatchLimit
	}
	if fc.MaxRequestBytes != 0 {
		c.MaxRequestBytes = fc.MaxRequestBytes
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{{fc.RenderTimeout, &c.RenderTimeout}, {fc.StatsWindow, &c.StatsWindow}} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	if fc.NumberFormat.Decimal != "" {
		c.NumberFormat.Decimal = fc.NumberFormat.Decimal
		c.NumberFormat.Thousands = fc.NumberFormat.Thousands
	}
	if fc.NumberFormat.Places > 0 {
		c.NumberFormat.Places = fc.NumberFormat.Places
	}
	if fc.NoDataLabel != "" {
		c.NoDataLabel = fc.NoDataLabel
	}
	if fc.OverlayFontPath != "" {
		c.OverlayFontPath = fc.OverlayFontPath
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.NumberFormat.Decimal == c.NumberFormat.Thousands {
		return fmt.Errorf("number format decimal and thousands separators must differ, both are %q", c.NumberFormat.Decimal)
	}
	if c.BatchLimit > c.MaxConcurrentRenders {
		return fmt.Errorf("BATCH_LIMIT (%d) exceeds MAX_CONCURRENT_RENDERS (%d)", c.BatchLimit, c.MaxConcurrentRenders)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
