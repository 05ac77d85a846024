package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}
	if c.Server.CORS.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("server.cors.max_age must be >= 0, got %d", c.Server.CORS.MaxAge))
	}

	switch c.Storage.Type {
	case StorageMemory, StorageBadger:
		// valid
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case StorageMongo:
		if c.Storage.Mongo.URL == "" {
			errs = append(errs, fmt.Errorf("storage.mongo.url is required when storage.type is \"mongo\""))
		}
		if c.Storage.Mongo.Database == "" {
			errs = append(errs, fmt.Errorf("storage.mongo.database is required when storage.type is \"mongo\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", \"mongo\", or \"badger\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == StorageBadger && !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
		errs = append(errs, fmt.Errorf("storage.badger.path is required unless storage.badger.in_memory is set"))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	tr := c.Observability.Tracing
	switch tr.Protocol {
	case "", "grpc", "http/protobuf":
		// valid
	default:
		errs = append(errs, fmt.Errorf("observability.tracing.protocol must be \"grpc\" or \"http/protobuf\", got %q", tr.Protocol))
	}
	if tr.SampleRatio < 0 || tr.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing.sample_ratio must be between 0 and 1, got %v", tr.SampleRatio))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
