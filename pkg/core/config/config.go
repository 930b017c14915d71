// Package config loads the run configuration from config/holdings.yaml with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"filing_holdings/pkg/core/ingest"
	"filing_holdings/pkg/core/lookup"
	"filing_holdings/pkg/core/portfolio"
	"filing_holdings/pkg/core/reconcile"
	"filing_holdings/pkg/core/table"

	"gopkg.in/yaml.v2"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "config/holdings.yaml"

// ErrMissingInput is returned when a required input is not configured or not on
// disk. It is fatal: a run must not start without its index and lookup tables.
var ErrMissingInput = errors.New("missing input")

// Environment overrides.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvUserAgent   = "SEC_USER_AGENT"
	EnvCacheDir    = "HOLDINGS_CACHE_DIR"
)

// Config is the full run configuration.
type Config struct {
	// Filing source. IndexPath wins when both are set.
	IndexPath     string `yaml:"index_path"`
	RegistrantCIK string `yaml:"registrant_cik"`
	FormType      string `yaml:"form_type"`

	Lookups     LookupConfig `yaml:"lookups"`
	Corrections string       `yaml:"corrections_path"`
	Output      OutputConfig `yaml:"output"`
	Fetch       FetchConfig  `yaml:"fetch"`

	Workers       int   `yaml:"workers"`
	MinNumericRun int   `yaml:"min_numeric_run"`
	ExcludedYears []int `yaml:"excluded_years"`
	ValueScale    int64 `yaml:"value_scale"`

	// DatabaseURL enables the Postgres sink. Set from DATABASE_URL only.
	DatabaseURL string `yaml:"-"`
}

// LookupConfig names the reference tables and the manual additions to them.
type LookupConfig struct {
	RegistrantsPath string                     `yaml:"registrants_path"`
	SymbolsPath     string                     `yaml:"symbols_path"`
	IssuerFallback  bool                       `yaml:"issuer_fallback"`
	ExtraMappings   []lookup.RegistrantMapping `yaml:"extra_registrants"`
	SymbolsByCIK    map[string]string          `yaml:"symbols_by_cik"`
}

// OutputConfig names the sinks. Empty paths disable a sink.
type OutputConfig struct {
	CSVPath    string `yaml:"csv_path"`
	XLSXPath   string `yaml:"xlsx_path"`
	ReportPath string `yaml:"report_path"`
}

// FetchConfig configures filing retrieval.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	CacheDir          string  `yaml:"cache_dir"`
	// DocumentRoot resolves relative index links against a local mirror
	// instead of the network.
	DocumentRoot string `yaml:"document_root"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		FormType:      ingest.FormHoldingsReport,
		Workers:       1,
		MinNumericRun: table.DefaultMinNumericRun,
		ExcludedYears: append([]int(nil), reconcile.DefaultExcludedYears...),
		ValueScale:    portfolio.DefaultValueScale,
		Corrections:   "config/corrections.hjson",
		Output: OutputConfig{
			CSVPath: "output/all_data.csv",
		},
		Fetch: FetchConfig{
			UserAgent:         ingest.DefaultUserAgent,
			RequestsPerSecond: ingest.DefaultRequestsPerSecond,
			TimeoutSeconds:    60,
			CacheDir:          "data/cache",
		},
	}
}

// Load reads a YAML configuration over the defaults and applies the
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.Fetch.UserAgent = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.Fetch.CacheDir = v
	}
}

// fillDefaults restores defaults that a config file zeroed out.
func (c *Config) fillDefaults() {
	if c.FormType == "" {
		c.FormType = ingest.FormHoldingsReport
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MinNumericRun < 1 {
		c.MinNumericRun = table.DefaultMinNumericRun
	}
	if c.ValueScale < 1 {
		c.ValueScale = portfolio.DefaultValueScale
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = ingest.DefaultUserAgent
	}
	if c.Fetch.RequestsPerSecond <= 0 {
		c.Fetch.RequestsPerSecond = ingest.DefaultRequestsPerSecond
	}
}

// Validate checks that every fatal input is present before a run starts.
func (c *Config) Validate() error {
	if c.IndexPath == "" && c.RegistrantCIK == "" {
		return fmt.Errorf("index_path or registrant_cik is required: %w", ErrMissingInput)
	}
	if c.RegistrantCIK != "" {
		if _, err := strconv.ParseUint(c.RegistrantCIK, 10, 64); err != nil {
			return fmt.Errorf("registrant_cik %q is not a number", c.RegistrantCIK)
		}
	}

	required := map[string]string{
		"lookups.registrants_path": c.Lookups.RegistrantsPath,
		"lookups.symbols_path":     c.Lookups.SymbolsPath,
	}
	if c.IndexPath != "" {
		required["index_path"] = c.IndexPath
	}
	for _, name := range []string{"index_path", "lookups.registrants_path", "lookups.symbols_path"} {
		path, ok := required[name]
		if !ok {
			continue
		}
		if path == "" {
			return fmt.Errorf("%s is required: %w", name, ErrMissingInput)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s %s: %w", name, path, ErrMissingInput)
		}
	}
	return nil
}
