package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the strata API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Engine   EngineConfig   `yaml:"engine"`
	Items    ItemsConfig    `yaml:"items"`
	Search   SearchConfig   `yaml:"search"`
	Tiles    TilesConfig    `yaml:"tiles"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EngineConfig holds search-engine connection settings.
type EngineConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	Index            string   `yaml:"index"`
}

// ItemsConfig holds the item-repository (Postgres) connection settings.
type ItemsConfig struct {
	DSN string `yaml:"dsn"`
}

// SearchConfig holds query composition limits and link settings.
type SearchConfig struct {
	BaseURL      string `yaml:"base_url"`
	DefaultRows  int    `yaml:"default_rows"`
	MaxRows      int    `yaml:"max_rows"`
	FacetLimit   int    `yaml:"facet_limit"`
	StatsBuckets int    `yaml:"stats_buckets"`
	DefaultSort  string `yaml:"default_sort"`
	// ExtraFacets maps a category leaf slug to the property paths faceted
	// when that category is filtered.
	ExtraFacets map[string][]string `yaml:"extra_facets"`
}

// TilesConfig holds aggregation-depth tuning for the tile facets. These are
// product knobs, not algorithm constants.
type TilesConfig struct {
	GeoMinDepth          int     `yaml:"geo_min_depth"`
	GeoMaxDepth          int     `yaml:"geo_max_depth"`
	ChronoMinDepth       int     `yaml:"chrono_min_depth"`
	ChronoMaxDepth       int     `yaml:"chrono_max_depth"`
	TargetGroups         int     `yaml:"target_groups"`
	DampenThresholdYears float64 `yaml:"dampen_threshold_years"`
	ChronoRootEarliest   float64 `yaml:"chrono_root_earliest"`
	ChronoRootLatest     float64 `yaml:"chrono_root_latest"`
}

// CacheConfig holds response-cache settings.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TTLSec    int    `yaml:"ttl_sec"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Engine.ReadinessTimeout <= 0 {
		c.Engine.ReadinessTimeout = 10
	}
	if c.Engine.Index == "" {
		c.Engine.Index = "strata:idx"
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "/query"
	}
	if c.Search.DefaultRows <= 0 {
		c.Search.DefaultRows = 20
	}
	if c.Search.MaxRows <= 0 {
		c.Search.MaxRows = 1000
	}
	if c.Search.FacetLimit <= 0 {
		c.Search.FacetLimit = 200
	}
	if c.Search.StatsBuckets <= 0 {
		c.Search.StatsBuckets = 20
	}
	if c.Search.DefaultSort == "" {
		c.Search.DefaultSort = "interest--desc"
	}
	if c.Tiles.GeoMinDepth <= 0 {
		c.Tiles.GeoMinDepth = 4
	}
	if c.Tiles.GeoMaxDepth <= 0 {
		c.Tiles.GeoMaxDepth = 20
	}
	if c.Tiles.ChronoMinDepth <= 0 {
		c.Tiles.ChronoMinDepth = 2
	}
	if c.Tiles.ChronoMaxDepth <= 0 {
		c.Tiles.ChronoMaxDepth = 16
	}
	if c.Tiles.TargetGroups <= 0 {
		c.Tiles.TargetGroups = 20
	}
	if c.Tiles.DampenThresholdYears <= 0 {
		c.Tiles.DampenThresholdYears = 2500
	}
	if c.Tiles.ChronoRootEarliest == 0 && c.Tiles.ChronoRootLatest == 0 {
		c.Tiles.ChronoRootEarliest = -10000
		c.Tiles.ChronoRootLatest = 2100
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 900
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "strata:resp"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Engine.Addrs) == 0 {
		return fmt.Errorf("engine.addrs is required")
	}
	if c.Tiles.GeoMinDepth > c.Tiles.GeoMaxDepth {
		return fmt.Errorf("tiles.geo_min_depth (%d) exceeds tiles.geo_max_depth (%d)",
			c.Tiles.GeoMinDepth, c.Tiles.GeoMaxDepth)
	}
	if c.Tiles.ChronoMinDepth > c.Tiles.ChronoMaxDepth {
		return fmt.Errorf("tiles.chrono_min_depth (%d) exceeds tiles.chrono_max_depth (%d)",
			c.Tiles.ChronoMinDepth, c.Tiles.ChronoMaxDepth)
	}
	if c.Tiles.ChronoRootEarliest >= c.Tiles.ChronoRootLatest {
		return fmt.Errorf("tiles.chrono_root span is inverted")
	}
	if c.Search.DefaultRows > c.Search.MaxRows {
		return fmt.Errorf("search.default_rows (%d) exceeds search.max_rows (%d)",
			c.Search.DefaultRows, c.Search.MaxRows)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
