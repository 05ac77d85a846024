package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/watchtracker/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, WATCHTRACKER_CONFIG env, ./config.yaml, /etc/watchtracker/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log(debug.CategoryConfig, "loaded config file", "path", filePath)
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. WATCHTRACKER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/watchtracker/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("WATCHTRACKER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/watchtracker/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps WATCHTRACKER_* environment variables to config
// fields. Unparseable numeric or boolean values are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WATCHTRACKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WATCHTRACKER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORS.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("WATCHTRACKER_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("WATCHTRACKER_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("WATCHTRACKER_POSTGRES_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.Postgres.MigrateOnStart = b
		}
	}
	if v := os.Getenv("WATCHTRACKER_MONGO_URL"); v != "" {
		cfg.Storage.Mongo.URL = v
	}
	if v := os.Getenv("WATCHTRACKER_MONGO_DATABASE"); v != "" {
		cfg.Storage.Mongo.Database = v
	}
	if v := os.Getenv("WATCHTRACKER_BADGER_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}

	if v := os.Getenv("WATCHTRACKER_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("WATCHTRACKER_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Tracing.Enabled = b
		}
	}
	// The standard OTLP variable applies unless a tracing endpoint is set
	// explicitly.
	if v := os.Getenv("WATCHTRACKER_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && cfg.Observability.Tracing.Endpoint == "" {
		cfg.Observability.Tracing.Endpoint = v
	}

	if v := os.Getenv("WATCHTRACKER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// A file is only read when the value field is empty.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// storage.mongo.url_file -> storage.mongo.url
	// The URL has a default, so the file wins whenever it is set.
	if cfg.Storage.Mongo.URLFile != "" {
		val, err := readSecretFile(cfg.Storage.Mongo.URLFile)
		if err != nil {
			return fmt.Errorf("storage.mongo.url_file: %w", err)
		}
		cfg.Storage.Mongo.URL = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
