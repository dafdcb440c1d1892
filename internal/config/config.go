package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig holds all settings for a terraingen process.
type GeneratorConfig struct {
	Map     MapConfig     `yaml:"map"`
	Archive ArchiveConfig `yaml:"archive"`
	Watch   WatchConfig   `yaml:"watch"`
}

// MapConfig describes the map to generate.
type MapConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Seed for the collapse run. 0 picks a time-based seed.
	Seed int64 `yaml:"seed"`

	// MaxRetries is how many extra attempts are made after a contradiction.
	MaxRetries int `yaml:"max_retries"`

	// RulesFile points at a YAML rule table. Empty uses the built-in terrain rules.
	RulesFile string `yaml:"rules_file"`
}

// ArchiveConfig controls where finished runs are recorded.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`

	// Driver is "sqlite" or "postgres".
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings for the archive.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	MaxOpenConns       int `yaml:"max_open_conns"`
	MaxIdleConns       int `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int `yaml:"conn_max_lifetime_seconds"`
}

// ConnMaxLifetime returns the pool lifetime as a duration.
func (p PostgresConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(p.ConnMaxLifetimeSec) * time.Second
}

// WatchConfig holds settings for the live collapse viewer.
type WatchConfig struct {
	Address string `yaml:"address"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy. "*" allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxPerIP and MaxTotal bound concurrent viewers. 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`
	MaxTotal int `yaml:"max_total"`

	// MaxCells caps the summed width*height of all running viewers. 0 means unlimited.
	MaxCells int `yaml:"max_cells"`

	// TrustedProxies lists addresses or CIDR ranges whose X-Forwarded-For
	// and X-Real-IP headers are believed. Other peers are keyed by socket address.
	TrustedProxies []string `yaml:"trusted_proxies"`

	// FrameDelayMS is the pause between streamed steps.
	FrameDelayMS int `yaml:"frame_delay_ms"`

	// MaxWidth and MaxHeight cap the grid size a viewer may request.
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// FrameDelay returns the pause between frames as a duration.
func (w WatchConfig) FrameDelay() time.Duration {
	return time.Duration(w.FrameDelayMS) * time.Millisecond
}

// DefaultConfig returns a GeneratorConfig with the stock 10x10 terrain map.
func DefaultConfig() *GeneratorConfig {
	return &GeneratorConfig{
		Map: MapConfig{
			Width:      10,
			Height:     10,
			Seed:       0,
			MaxRetries: 10,
		},
		Archive: ArchiveConfig{
			Enabled:    false,
			Driver:     "sqlite",
			SQLitePath: "data/terraingen.db",
			Postgres: PostgresConfig{
				Host:               "localhost",
				Port:               5432,
				SSLMode:            "disable",
				MaxOpenConns:       10,
				MaxIdleConns:       2,
				ConnMaxLifetimeSec: 300,
			},
		},
		Watch: WatchConfig{
			Address:        ":8080",
			AllowedOrigins: []string{},
			MaxPerIP:       2,
			MaxTotal:       20,
			MaxCells:       16000,
			FrameDelayMS:   50,
			MaxWidth:       80,
			MaxHeight:      40,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// A missing file yields the defaults; a malformed one is an error.
func LoadConfig(path string) (*GeneratorConfig, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// Validate checks value ranges that would otherwise fail deep inside a run.
func (c *GeneratorConfig) Validate() error {
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		return fmt.Errorf("map size must be positive, got %dx%d", c.Map.Width, c.Map.Height)
	}
	if c.Map.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.Map.MaxRetries)
	}
	switch c.Archive.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	return nil
}

// IsOriginAllowed checks if the given origin may open a viewer connection.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WatchConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // Non-browser clients send no Origin header
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
