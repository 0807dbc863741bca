package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// ConfigFlag names the flag holding the YAML file path.
const ConfigFlag = "config"

// EnvNames maps each flag to the environment variable that can set it.
var EnvNames = map[string]string{
	"source-path":            "SOURCE_PATH",
	"source-file-type":       "SOURCE_FILE_TYPE",
	"compression":            "SOURCE_COMPRESSION",
	"csv-infer-types":        "CSV_INFER_TYPES",
	"max-line-bytes":         "MAX_LINE_BYTES",
	"database-username":      "DATABASE_USERNAME",
	"database-password":      "DATABASE_PASSWORD",
	"database-nodes":         "DATABASE_NODES",
	"database-keyspace-name": "DATABASE_KEYSPACE_NAME",
	"database-table":         "DATABASE_TABLE",
	"consistency":            "DATABASE_CONSISTENCY",
	"batch-type":             "DATABASE_BATCH_TYPE",
	"database-timeout":       "DATABASE_TIMEOUT",
	"batch-size":             "BATCH_SIZE",
	"concurrent-batches":     "CONCURRENT_BATCHES",
	"write-timeout":          "WRITE_TIMEOUT",
	"s3-endpoint":            "S3_ENDPOINT",
	"s3-access-key":          "S3_ACCESS_KEY",
	"s3-secret-access-key":   "S3_SECRET_ACCESS_KEY",
	"s3-region":              "S3_REGION",
	"gcs-endpoint":           "GCS_ENDPOINT",
	"gcs-credentials-file":   "GCS_CREDENTIALS_FILE",
	"log-level":              "LOG_LEVEL",
	"log-encoding":           "LOG_ENCODING",
	"metrics-addr":           "METRICS_ADDR",
	"trace-file":             "TRACE_FILE",
	"trace-sample-rate":      "TRACE_SAMPLE_RATE",
}

// RegisterFlags defines one flag per setting on fs, each bound to the
// matching field of cfg and defaulting to its current value.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String(ConfigFlag, "", "YAML configuration file")

	fs.StringVarP(&cfg.Source.Path, "source-path", "s", cfg.Source.Path, "local path, s3://, s3a:// or gs:// URI of the source file")
	fs.StringVar(&cfg.Source.FileType, "source-file-type", cfg.Source.FileType, "source format: json or csv")
	fs.StringVar(&cfg.Source.Compression, "compression", cfg.Source.Compression, "auto, none, gzip, zstd, lz4, snappy or s2")
	fs.BoolVar(&cfg.Source.CSVInferTypes, "csv-infer-types", cfg.Source.CSVInferTypes, "type CSV fields as bool, integer or float when they parse as one")
	fs.IntVar(&cfg.Source.MaxLineBytes, "max-line-bytes", cfg.Source.MaxLineBytes, "longest accepted source line in bytes")

	fs.StringVar(&cfg.Database.Username, "database-username", cfg.Database.Username, "database user")
	fs.StringVar(&cfg.Database.Password, "database-password", cfg.Database.Password, "database password")
	fs.StringVar(&cfg.Database.Nodes, "database-nodes", cfg.Database.Nodes, "comma separated host[:port] contact points")
	fs.StringVar(&cfg.Database.Keyspace, "database-keyspace-name", cfg.Database.Keyspace, "target keyspace")
	fs.StringVar(&cfg.Database.Table, "database-table", cfg.Database.Table, "target table")
	fs.StringVar(&cfg.Database.Consistency, "consistency", cfg.Database.Consistency, "write consistency level")
	fs.StringVar(&cfg.Database.BatchType, "batch-type", cfg.Database.BatchType, "unlogged or logged")
	fs.DurationVar(&cfg.Database.Timeout, "database-timeout", cfg.Database.Timeout, "per request timeout")

	fs.IntVar(&cfg.Load.BatchSize, "batch-size", cfg.Load.BatchSize, "records per batch")
	fs.IntVar(&cfg.Load.ConcurrentBatches, "concurrent-batches", cfg.Load.ConcurrentBatches, "maximum batch writes in flight")
	fs.DurationVar(&cfg.Load.WriteTimeout, "write-timeout", cfg.Load.WriteTimeout, "bound on each batch write, 0 for none")

	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "S3 compatible endpoint URL")
	fs.StringVar(&cfg.S3.AccessKey, "s3-access-key", cfg.S3.AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3.SecretAccessKey, "s3-secret-access-key", cfg.S3.SecretAccessKey, "S3 secret access key")
	fs.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "S3 region")

	fs.StringVar(&cfg.GCS.Endpoint, "gcs-endpoint", cfg.GCS.Endpoint, "GCS endpoint override")
	fs.StringVar(&cfg.GCS.CredentialsFile, "gcs-credentials-file", cfg.GCS.CredentialsFile, "GCS service account file")

	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Logging.Encoding, "log-encoding", cfg.Logging.Encoding, "json or console")

	fs.StringVar(&cfg.Observability.MetricsAddr, "metrics-addr", cfg.Observability.MetricsAddr, "listen address for /metrics, empty to disable")
	fs.StringVar(&cfg.Observability.TraceFile, "trace-file", cfg.Observability.TraceFile, "file receiving batch write spans, empty to disable")
	fs.Float64Var(&cfg.Observability.TraceSampleRate, "trace-sample-rate", cfg.Observability.TraceSampleRate, "fraction of batch writes traced")
}

// Resolve applies the YAML file named by --config, then environment
// variables, then flags given on the command line, to cfg. fs must have
// been built by RegisterFlags with the same cfg and already parsed.
func Resolve(cfg *Config, fs *pflag.FlagSet, v *viper.Viper) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	for name, env := range EnvNames {
		if err := v.BindEnv(name, env); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to bind environment variable").
				WithDetail("env", env)
		}
	}

	if path, err := fs.GetString(ConfigFlag); err == nil && path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return err
		}
	}

	var setErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if setErr != nil || f.Name == ConfigFlag {
			return
		}

		val, ok := explicit[f.Name]
		if !ok {
			if !v.IsSet(f.Name) {
				return
			}
			val = v.GetString(f.Name)
		}

		if err := f.Value.Set(val); err != nil {
			setErr = errors.Wrap(err, errors.ErrorTypeConfig, "invalid value").
				WithDetail("flag", f.Name).
				WithDetail("env", EnvNames[f.Name])
		}
	})
	return setErr
}
