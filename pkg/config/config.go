// Package config provides unified configuration for the watchtracker server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (WATCHTRACKER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Storage backend names accepted in storage.type.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageBadger   = "badger"
)

// Config holds all configuration for the watchtracker server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 1234
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1MB
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig holds cross-origin settings. An empty origin list allows any
// origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAge         int      `yaml:"max_age"` // seconds, default: 10
}

// StorageConfig selects and configures the entry store.
type StorageConfig struct {
	Type     string         `yaml:"type"` // memory, postgres, mongo or badger; default: memory
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Badger   BadgerConfig   `yaml:"badger"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// MongoConfig holds MongoDB-specific settings.
type MongoConfig struct {
	URL        string        `yaml:"url"`      // default: mongodb://localhost:27017
	URLFile    string        `yaml:"url_file"` // _file variant for url
	Database   string        `yaml:"database"` // default: watch_tracker
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"` // default: 10s
}

// BadgerConfig holds settings for the embedded key-value store.
type BadgerConfig struct {
	Path     string `yaml:"path"` // default: ./data
	InMemory bool   `yaml:"in_memory"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"` // "grpc" or "http/protobuf", default: "grpc"
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	SampleRatio float64           `yaml:"sample_ratio"` // default: 1
	ServiceName string            `yaml:"service_name"` // default: "watchtracker"
}

// LoggingConfig controls the slog handler and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN or ERROR; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config populated with built-in default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            1234,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
			CORS: CORSConfig{
				MaxAge: 10,
			},
		},
		Storage: StorageConfig{
			Type: StorageMemory,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
			Mongo: MongoConfig{
				URL:        "mongodb://localhost:27017",
				Database:   "watch_tracker",
				Collection: "entries",
				Timeout:    10 * time.Second,
			},
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				Protocol:    "grpc",
				SampleRatio: 1,
				ServiceName: "watchtracker",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
