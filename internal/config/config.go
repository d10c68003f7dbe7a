// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Session       SessionConfig       `yaml:"session"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Capability    CapabilityConfig    `yaml:"capability"`
	Query         QueryConfig         `yaml:"query"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// BackendConfig describes the REST backend the BFF fronts.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// SpecFile is an optional OpenAPI document used to derive the
	// case-conversion allow-list.
	SpecFile      string   `yaml:"spec_file"`
	CaseAllowList []string `yaml:"case_allow_list"`
	// SuccessCodes are the envelope codes treated as success. Entries in
	// SuccessCodesByPath override them for matching path prefixes.
	SuccessCodes       []int                `yaml:"success_codes"`
	SuccessCodesByPath map[string][]int     `yaml:"success_codes_by_path"`
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry              RetryConfig          `yaml:"retry"`
}

// SuccessCodesFor returns the success codes for the given backend path,
// using the longest matching prefix in SuccessCodesByPath.
func (b BackendConfig) SuccessCodesFor(path string) []int {
	path = strings.TrimPrefix(path, "/")
	best := -1
	var codes []int
	for prefix, c := range b.SuccessCodesByPath {
		p := strings.TrimPrefix(prefix, "/")
		if strings.HasPrefix(path, p) && len(p) > best {
			best = len(p)
			codes = c
		}
	}
	if best >= 0 {
		return codes
	}
	return b.SuccessCodes
}

// CircuitBreakerConfig describes circuit breaker settings for the backend.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// RetryConfig describes retry settings for the backend.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	// IdempotentOnly limits retries to the operations in ReadOperations.
	IdempotentOnly bool     `yaml:"idempotent_only"`
	ReadOperations []string `yaml:"read_operations"`
}

// CanRetry reports whether a call to path may be repeated. With
// IdempotentOnly set, only paths whose last segment is a read operation
// qualify.
func (r RetryConfig) CanRetry(path string) bool {
	if !r.IdempotentOnly {
		return true
	}
	path = strings.TrimSuffix(path, "/")
	op := path[strings.LastIndex(path, "/")+1:]
	return slices.Contains(r.ReadOperations, op)
}

// SessionConfig describes the server-side session and its cookie.
type SessionConfig struct {
	CookieName   string             `yaml:"cookie_name"`
	CookieSecure bool               `yaml:"cookie_secure"`
	HashKeyEnv   string             `yaml:"hash_key_env"`
	BlockKeyEnv  string             `yaml:"block_key_env"`
	TTL          time.Duration      `yaml:"ttl"`
	Store        SessionStoreConfig `yaml:"store"`
}

// SessionStoreConfig describes session persistence settings.
type SessionStoreConfig struct {
	// Driver is one of memory, redis, postgres or mongo.
	Driver     string `yaml:"driver"`
	AddrEnv    string `yaml:"addr_env"`
	DSNEnv     string `yaml:"dsn_env"`
	DB         int    `yaml:"db"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// AuthorizationConfig describes route guarding.
type AuthorizationConfig struct {
	RoutesFile       string `yaml:"routes_file"`
	LoginPath        string `yaml:"login_path"`
	UnauthorizedPath string `yaml:"unauthorized_path"`
	Locale           string `yaml:"locale"`
}

// CapabilityConfig describes the role to permission policy.
type CapabilityConfig struct {
	PolicyFile string      `yaml:"policy_file"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig describes cache settings.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// QueryConfig describes paged query behavior.
type QueryConfig struct {
	Mock            bool          `yaml:"mock"`
	MockDelay       time.Duration `yaml:"mock_delay"`
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	BulkConcurrency int           `yaml:"bulk_concurrency"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Exporter          string  `yaml:"exporter"`
	Endpoint          string  `yaml:"endpoint"`
	SamplingRate      float64 `yaml:"sampling_rate"`
	ForceSampleErrors bool    `yaml:"force_sample_errors"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		Backend: BackendConfig{
			Timeout:      10 * time.Second,
			SuccessCodes: []int{1000},
			CaseAllowList: []string{
				"/employees", "/departments", "/job-roles",
				"/competencies", "/course-events", "/auth",
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
				IdempotentOnly:    true,
				ReadOperations:    []string{"query", "detail"},
			},
		},
		Session: SessionConfig{
			CookieName:  "staffdesk_session",
			HashKeyEnv:  "STAFFDESK_COOKIE_HASH_KEY",
			BlockKeyEnv: "STAFFDESK_COOKIE_BLOCK_KEY",
			TTL:         12 * time.Hour,
			Store: SessionStoreConfig{
				Driver:     "memory",
				Database:   "staffdesk",
				Collection: "sessions",
				KeyPrefix:  "staffdesk:session:",
			},
		},
		Authorization: AuthorizationConfig{
			LoginPath:        "/login",
			UnauthorizedPath: "/unauthorized",
			Locale:           "zh",
		},
		Capability: CapabilityConfig{
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 10000,
			},
		},
		Query: QueryConfig{
			MockDelay:       300 * time.Millisecond,
			DefaultPageSize: 10,
			MaxPageSize:     1000,
			BulkConcurrency: 8,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

var sessionDrivers = map[string]bool{
	"memory":   true,
	"redis":    true,
	"postgres": true,
	"mongo":    true,
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Backend.BaseURL == "" && !c.Query.Mock {
		errs = append(errs, "backend.base_url is required unless query.mock is set")
	}
	if len(c.Backend.SuccessCodes) == 0 {
		errs = append(errs, "backend.success_codes must not be empty")
	}
	for prefix, codes := range c.Backend.SuccessCodesByPath {
		if len(codes) == 0 {
			errs = append(errs, fmt.Sprintf("backend.success_codes_by_path[%s] must not be empty", prefix))
		}
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "session.cookie_name is required")
	}
	if !sessionDrivers[c.Session.Store.Driver] {
		errs = append(errs, fmt.Sprintf("session.store.driver %q is not one of memory, redis, postgres, mongo",
			c.Session.Store.Driver))
	}
	switch c.Session.Store.Driver {
	case "redis":
		if c.Session.Store.AddrEnv == "" {
			errs = append(errs, "session.store.addr_env is required for the redis driver")
		}
	case "postgres", "mongo":
		if c.Session.Store.DSNEnv == "" {
			errs = append(errs, fmt.Sprintf("session.store.dsn_env is required for the %s driver",
				c.Session.Store.Driver))
		}
	}
	if c.Query.DefaultPageSize < 1 {
		errs = append(errs, "query.default_page_size must be at least 1")
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		errs = append(errs, "query.max_page_size must not be below query.default_page_size")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads STAFFDESK_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STAFFDESK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STAFFDESK_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("STAFFDESK_SESSION_STORE_DRIVER"); v != "" {
		cfg.Session.Store.Driver = v
	}
	if v := os.Getenv("STAFFDESK_QUERY_MOCK"); v != "" {
		if mock, err := strconv.ParseBool(v); err == nil {
			cfg.Query.Mock = mock
		}
	}
	if v := os.Getenv("STAFFDESK_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
