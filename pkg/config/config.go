// Package config holds every setting of a cqlload run.
//
// Settings come from three layers, lowest first: built-in defaults, an
// optional YAML file with ${VAR} substitution, then environment variables
// and command-line flags. Each flag has a fixed environment variable name,
// listed in EnvNames.
//
//	cfg := config.Default()
//	config.RegisterFlags(cmd.Flags(), cfg)
//	// after flag parsing
//	if err := config.Resolve(cfg, cmd.Flags(), viper.New()); err != nil {
//	    return err
//	}
package config

import (
	"time"

	"github.com/ajitpratap0/cqlload/internal/pipeline"
	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/logger"
	"github.com/ajitpratap0/cqlload/pkg/observability"
	"github.com/ajitpratap0/cqlload/pkg/source"
	"github.com/ajitpratap0/cqlload/pkg/store"
)

// Config is the full configuration of a run.
type Config struct {
	Source        SourceConfig        `yaml:"source" json:"source"`
	Database      DatabaseConfig      `yaml:"database" json:"database"`
	Load          LoadConfig          `yaml:"load" json:"load"`
	S3            S3Config            `yaml:"s3" json:"s3"`
	GCS           GCSConfig           `yaml:"gcs" json:"gcs"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SourceConfig describes the input file.
type SourceConfig struct {
	Path          string `yaml:"path" json:"path"`
	FileType      string `yaml:"file_type" json:"file_type"`
	Compression   string `yaml:"compression" json:"compression"`
	CSVInferTypes bool   `yaml:"csv_infer_types" json:"csv_infer_types"`
	MaxLineBytes  int    `yaml:"max_line_bytes" json:"max_line_bytes"`
}

// DatabaseConfig describes the target cluster and table.
type DatabaseConfig struct {
	Username    string        `yaml:"username" json:"username"`
	Password    string        `yaml:"password" json:"-"`
	Nodes       string        `yaml:"nodes" json:"nodes"`
	Keyspace    string        `yaml:"keyspace_name" json:"keyspace_name"`
	Table       string        `yaml:"table" json:"table"`
	Consistency string        `yaml:"consistency" json:"consistency"`
	BatchType   string        `yaml:"batch_type" json:"batch_type"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// LoadConfig controls batching and write concurrency.
type LoadConfig struct {
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	ConcurrentBatches int           `yaml:"concurrent_batches" json:"concurrent_batches"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// S3Config configures s3:// and s3a:// sources.
type S3Config struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKey       string `yaml:"access_key" json:"access_key"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-"`
	Region          string `yaml:"region" json:"region"`
}

// GCSConfig configures gs:// sources.
type GCSConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsAddr     string  `yaml:"metrics_addr" json:"metrics_addr"`
	TraceFile       string  `yaml:"trace_file" json:"trace_file"`
	TraceSampleRate float64 `yaml:"trace_sample_rate" json:"trace_sample_rate"`
}

// Default returns the configuration used when nothing else is given.
// Source path, nodes, keyspace, table, batch size and concurrent batches
// have no default and must be set.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			FileType:      string(source.FormatJSON),
			Compression:   string(source.CompressionAuto),
			CSVInferTypes: true,
			MaxLineBytes:  source.DefaultMaxLineBytes,
		},
		Database: DatabaseConfig{
			Consistency: "LOCAL_QUORUM",
			BatchType:   string(store.BatchUnlogged),
			Timeout:     11 * time.Second,
		},
		S3: S3Config{
			Region: "minio",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			TraceSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and ranges. It is called before anything
// is opened.
func (c *Config) Validate() error {
	if c.Source.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "source path is required")
	}
	if _, err := source.ParseFormat(c.Source.FileType); err != nil {
		return err
	}
	if _, err := source.ParseCompression(c.Source.Compression); err != nil {
		return err
	}
	if c.Source.MaxLineBytes <= 0 {
		return errors.New(errors.ErrorTypeConfig, "max_line_bytes must be positive")
	}
	if len(store.SplitNodes(c.Database.Nodes)) == 0 {
		return errors.New(errors.ErrorTypeConfig, "database nodes are required")
	}
	if c.Database.Keyspace == "" {
		return errors.New(errors.ErrorTypeConfig, "database keyspace name is required")
	}
	if c.Database.Table == "" {
		return errors.New(errors.ErrorTypeConfig, "database table is required")
	}
	if _, err := store.ParseBatchType(c.Database.BatchType); err != nil {
		return err
	}
	if c.Database.Timeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "database timeout cannot be negative")
	}
	if c.Load.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size must be positive")
	}
	if c.Load.ConcurrentBatches <= 0 {
		return errors.New(errors.ErrorTypeConfig, "concurrent_batches must be positive")
	}
	if c.Load.WriteTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "write_timeout cannot be negative")
	}
	if r := c.Observability.TraceSampleRate; r < 0 || r > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "trace_sample_rate must be within [0, 1], got %g", r)
	}
	return nil
}

// SourceOptions converts the source settings. Call Validate first.
func (c *Config) SourceOptions() source.Options {
	format, _ := source.ParseFormat(c.Source.FileType)
	compression, _ := source.ParseCompression(c.Source.Compression)

	return source.Options{
		Path:          c.Source.Path,
		Format:        format,
		Compression:   compression,
		MaxLineBytes:  c.Source.MaxLineBytes,
		CSVInferTypes: c.Source.CSVInferTypes,
		S3: source.S3Options{
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretAccessKey,
			Region:    c.S3.Region,
		},
		GCS: source.GCSOptions{
			Endpoint:        c.GCS.Endpoint,
			CredentialsFile: c.GCS.CredentialsFile,
		},
	}
}

// SessionConfig converts the database connection settings.
func (c *Config) SessionConfig() store.SessionConfig {
	batchType, _ := store.ParseBatchType(c.Database.BatchType)

	return store.SessionConfig{
		Nodes:       store.SplitNodes(c.Database.Nodes),
		Username:    c.Database.Username,
		Password:    c.Database.Password,
		Consistency: c.Database.Consistency,
		BatchType:   batchType,
		Timeout:     c.Database.Timeout,
	}
}

// WriterConfig names the target table.
func (c *Config) WriterConfig() store.WriterConfig {
	return store.WriterConfig{Keyspace: c.Database.Keyspace, Table: c.Database.Table}
}

// PipelineConfig converts the batching settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		BatchSize:         c.Load.BatchSize,
		ConcurrentBatches: c.Load.ConcurrentBatches,
		WriteTimeout:      c.Load.WriteTimeout,
	}
}

// LoggerConfig converts the logging settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Logging.Level, Encoding: c.Logging.Encoding}
}

// TracingConfig converts the tracing settings.
func (c *Config) TracingConfig(version string) observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.ServiceVersion = version
	tc.File = c.Observability.TraceFile
	tc.SamplingRate = c.Observability.TraceSampleRate
	return tc
}
