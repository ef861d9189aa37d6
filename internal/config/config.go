// Package config provides configuration management for the paper search service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Sources    SourcesConfig    `mapstructure:"sources"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitsConfig holds per-source and global rate limiting configuration.
type RateLimitsConfig struct {
	DefaultRPS     float64       `mapstructure:"default_rps"`
	DefaultBurst   int           `mapstructure:"default_burst"`
	MaxConcurrent  int64         `mapstructure:"max_concurrent"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	// SourceRPS overrides the default rate for individual sources,
	// keyed by source ID.
	SourceRPS map[string]float64 `mapstructure:"source_rps"`
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Directory   string        `mapstructure:"directory"`
	MaxSizeMB   int           `mapstructure:"max_size_mb"`
	SearchTTL   time.Duration `mapstructure:"search_ttl"`
	CitationTTL time.Duration `mapstructure:"citation_ttl"`
}

// DedupConfig holds cross-source deduplication configuration.
type DedupConfig struct {
	AuthorThreshold float64 `mapstructure:"author_threshold"`
}

// SourcesConfig holds configuration for all paper sources.
type SourcesConfig struct {
	ArXiv           ArXivConfig           `mapstructure:"arxiv"`
	PubMed          PubMedConfig          `mapstructure:"pubmed"`
	BioRxiv         BioRxivConfig         `mapstructure:"biorxiv"`
	SemanticScholar SemanticScholarConfig `mapstructure:"semantic_scholar"`
	OpenAlex        OpenAlexConfig        `mapstructure:"openalex"`
	CrossRef        CrossRefConfig        `mapstructure:"crossref"`
}

// ArXivConfig holds arXiv source configuration.
type ArXivConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	PDFBaseURL string        `mapstructure:"pdf_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	MaxPDFSize int64         `mapstructure:"max_pdf_size"`
	ProxyURL   string        `mapstructure:"proxy_url"`
}

// PubMedConfig holds PubMed source configuration.
type PubMedConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	ProxyURL   string        `mapstructure:"proxy_url"`

	// API keys are loaded exclusively from environment variables (see loadSecrets).
	APIKey string `mapstructure:"-"`
}

// BioRxivConfig holds bioRxiv/medRxiv source configuration.
type BioRxivConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Server     string        `mapstructure:"server"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	ProxyURL   string        `mapstructure:"proxy_url"`
}

// SemanticScholarConfig holds Semantic Scholar source configuration.
type SemanticScholarConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	ProxyURL   string        `mapstructure:"proxy_url"`

	// API keys are loaded exclusively from environment variables (see loadSecrets).
	APIKey string `mapstructure:"-"`
}

// OpenAlexConfig holds OpenAlex source configuration.
type OpenAlexConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Email      string        `mapstructure:"email"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	ProxyURL   string        `mapstructure:"proxy_url"`
}

// CrossRefConfig holds Crossref source configuration.
type CrossRefConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Email      string        `mapstructure:"email"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	ProxyURL   string        `mapstructure:"proxy_url"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-search-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("PAPERSEARCH_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Sources.PubMed.APIKey = os.Getenv("PAPERSEARCH_SOURCES_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Rate limit defaults
	v.SetDefault("rate_limits.default_rps", 5.0)
	v.SetDefault("rate_limits.default_burst", 5)
	v.SetDefault("rate_limits.max_concurrent", 16)
	v.SetDefault("rate_limits.acquire_timeout", "10s")
	// NCBI allows 3 requests per second without an API key.
	v.SetDefault("rate_limits.source_rps.pubmed", 3.0)
	// Semantic Scholar enforces 1 request per second on the public tier.
	v.SetDefault("rate_limits.source_rps.semantic_scholar", 1.0)
	v.SetDefault("rate_limits.source_rps.crossref", 2.0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.directory", "")
	v.SetDefault("cache.max_size_mb", 256)
	v.SetDefault("cache.search_ttl", "30m")
	v.SetDefault("cache.citation_ttl", "15m")

	// Dedup defaults
	v.SetDefault("dedup.author_threshold", 0.5)

	// Source defaults
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.pdf_base_url", "https://arxiv.org/pdf")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.max_results", 100)
	v.SetDefault("sources.arxiv.max_pdf_size", 100*1024*1024)

	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.max_results", 100)

	v.SetDefault("sources.biorxiv.enabled", true)
	v.SetDefault("sources.biorxiv.base_url", "https://www.ebi.ac.uk/europepmc/webservices/rest")
	v.SetDefault("sources.biorxiv.server", "bioRxiv")
	v.SetDefault("sources.biorxiv.timeout", "30s")
	v.SetDefault("sources.biorxiv.max_results", 100)

	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.max_results", 100)

	v.SetDefault("sources.openalex.enabled", true)
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.timeout", "30s")
	v.SetDefault("sources.openalex.max_results", 100)

	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("sources.crossref.timeout", "30s")
	v.SetDefault("sources.crossref.max_results", 100)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate rate limit config
	if c.RateLimits.DefaultRPS <= 0 {
		return fmt.Errorf("rate limit default_rps must be positive")
	}
	if c.RateLimits.DefaultBurst <= 0 {
		return fmt.Errorf("rate limit default_burst must be positive")
	}
	if c.RateLimits.MaxConcurrent <= 0 {
		return fmt.Errorf("rate limit max_concurrent must be positive")
	}
	if c.RateLimits.AcquireTimeout < 0 {
		return fmt.Errorf("rate limit acquire_timeout must not be negative")
	}
	for id, rps := range c.RateLimits.SourceRPS {
		if rps <= 0 {
			return fmt.Errorf("rate limit source_rps for %q must be positive", id)
		}
	}

	// Validate cache config
	if c.Cache.Enabled {
		if c.Cache.MaxSizeMB <= 0 {
			return fmt.Errorf("cache max_size_mb must be positive")
		}
		if c.Cache.SearchTTL <= 0 {
			return fmt.Errorf("cache search_ttl must be positive")
		}
		if c.Cache.CitationTTL <= 0 {
			return fmt.Errorf("cache citation_ttl must be positive")
		}
	}

	// Validate dedup config
	if c.Dedup.AuthorThreshold < 0 || c.Dedup.AuthorThreshold > 1 {
		return fmt.Errorf("dedup author_threshold must be between 0 and 1")
	}

	// Validate biorxiv server
	if c.Sources.BioRxiv.Enabled {
		server := strings.ToLower(c.Sources.BioRxiv.Server)
		if server != "biorxiv" && server != "medrxiv" {
			return fmt.Errorf("invalid biorxiv server: %s", c.Sources.BioRxiv.Server)
		}
	}

	return nil
}

// EnabledSourceIDs returns the IDs of all sources enabled in the configuration.
func (c *Config) EnabledSourceIDs() []string {
	var ids []string
	if c.Sources.ArXiv.Enabled {
		ids = append(ids, "arxiv")
	}
	if c.Sources.PubMed.Enabled {
		ids = append(ids, "pubmed")
	}
	if c.Sources.BioRxiv.Enabled {
		if strings.EqualFold(c.Sources.BioRxiv.Server, "medrxiv") {
			ids = append(ids, "medrxiv")
		} else {
			ids = append(ids, "biorxiv")
		}
	}
	if c.Sources.SemanticScholar.Enabled {
		ids = append(ids, "semantic_scholar")
	}
	if c.Sources.OpenAlex.Enabled {
		ids = append(ids, "openalex")
	}
	if c.Sources.CrossRef.Enabled {
		ids = append(ids, "crossref")
	}
	return ids
}
