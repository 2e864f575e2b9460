package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Catalog sources
const (
	CatalogSourceBuiltin  = "builtin"
	CatalogSourceFile     = "file"
	CatalogSourcePostgres = "postgres"
)

// Fast model backends
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Catalog       CatalogConfig
	Classifier    ClassifierConfig
	FastModel     FastModelConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
// The database is only used when the catalog is stored in Postgres.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// CatalogConfig selects where the model catalog is loaded from
type CatalogConfig struct {
	Source string // builtin, file or postgres
	File   string // TOML file, used when Source is file

	// BaselineModel is the alias savings are measured against
	BaselineModel string
}

// ClassifierConfig holds classifier and arbitration configuration
type ClassifierConfig struct {
	CacheEnabled    bool
	CacheSize       int
	CacheTTL        time.Duration
	CacheCleanup    time.Duration
	PrefixLength    int
	TwoStageEnabled bool

	PrivacyPriority   int
	TwoStagePriority  int
	HeuristicPriority int
}

// FastModelConfig describes the small model used by the two-stage classifier
type FastModelConfig struct {
	Backend   string // ollama or openai
	URL       string
	Model     string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // calls per second, 0 disables limiting
	Burst     int
}

// AuthConfig holds bearer token configuration for the admin endpoints
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// RateLimitConfig holds per-client limits for the routing endpoints
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string // json or text
	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64
	ServiceName       string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Catalog: CatalogConfig{
			Source:        strings.ToLower(getEnv("CATALOG_SOURCE", CatalogSourceBuiltin)),
			File:          getEnv("CATALOG_FILE", "catalog.toml"),
			BaselineModel: getEnv("CATALOG_BASELINE_MODEL", "claude-opus"),
		},
		Classifier: ClassifierConfig{
			CacheEnabled:      getEnvAsBool("CLASSIFIER_CACHE_ENABLED", true),
			CacheSize:         getEnvAsInt("CLASSIFIER_CACHE_SIZE", 1000),
			CacheTTL:          getEnvAsDuration("CLASSIFIER_CACHE_TTL", time.Hour),
			CacheCleanup:      getEnvAsDuration("CLASSIFIER_CACHE_CLEANUP", 5*time.Minute),
			PrefixLength:      getEnvAsInt("CLASSIFIER_PREFIX_LENGTH", 200),
			TwoStageEnabled:   getEnvAsBool("CLASSIFIER_TWO_STAGE_ENABLED", true),
			PrivacyPriority:   getEnvAsInt("CLASSIFIER_PRIVACY_PRIORITY", 100),
			TwoStagePriority:  getEnvAsInt("CLASSIFIER_TWO_STAGE_PRIORITY", 50),
			HeuristicPriority: getEnvAsInt("CLASSIFIER_HEURISTIC_PRIORITY", 10),
		},
		FastModel: FastModelConfig{
			Backend:   strings.ToLower(getEnv("FAST_MODEL_BACKEND", BackendOllama)),
			URL:       getEnv("FAST_MODEL_URL", "http://127.0.0.1:11434"),
			Model:     getEnv("FAST_MODEL_NAME", "qwen2.5:0.5b"),
			APIKey:    getEnv("FAST_MODEL_API_KEY", ""),
			Timeout:   getEnvAsDuration("FAST_MODEL_TIMEOUT", 5*time.Second),
			RateLimit: getEnvAsFloat("FAST_MODEL_RATE_LIMIT", 20),
			Burst:     getEnvAsInt("FAST_MODEL_BURST", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", "llm-router"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("API_RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("API_RATE_LIMIT", 50),
			Burst:             getEnvAsInt("API_RATE_BURST", 100),
		},
		Observability: ObservabilityConfig{
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			LogFormat:         getEnv("LOG_FORMAT", "json"),
			TracingEnabled:    getEnvAsBool("TRACING_ENABLED", false),
			TracingEndpoint:   getEnv("TRACING_ENDPOINT", "localhost:4317"),
			TracingSampleRate: getEnvAsFloat("TRACING_SAMPLE_RATE", 0.1),
			ServiceName:       getEnv("SERVICE_NAME", "llm-router"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case CatalogSourceBuiltin:
	case CatalogSourceFile:
		if c.Catalog.File == "" {
			return fmt.Errorf("catalog file is required when CATALOG_SOURCE=file")
		}
	case CatalogSourcePostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	if c.Classifier.CacheEnabled {
		if c.Classifier.CacheSize <= 0 {
			return fmt.Errorf("classifier cache size must be positive")
		}
		if c.Classifier.CacheTTL <= 0 {
			return fmt.Errorf("classifier cache ttl must be positive")
		}
	}
	if c.Classifier.PrefixLength <= 0 {
		return fmt.Errorf("classifier prefix length must be positive")
	}

	if c.Classifier.TwoStageEnabled {
		if c.FastModel.Backend != BackendOllama && c.FastModel.Backend != BackendOpenAI {
			return fmt.Errorf("unknown fast model backend %q", c.FastModel.Backend)
		}
		if c.FastModel.Model == "" {
			return fmt.Errorf("fast model name is required")
		}
		if c.FastModel.Timeout <= 0 {
			return fmt.Errorf("fast model timeout must be positive")
		}
	}

	// A signing secret is required in production so the admin routes are never open
	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET of at least 32 bytes is required in production")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("api rate limit and burst must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// UsesDatabase reports whether a database connection is needed
func (c *Config) UsesDatabase() bool {
	return c.Catalog.Source == CatalogSourcePostgres
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "router")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "llm_router")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
