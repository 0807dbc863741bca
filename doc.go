// Package cqlload loads JSON-lines and CSV files into a CQL table.
//
// A run reads one file from local disk, S3 (s3:// or s3a://) or GCS (gs://),
// optionally compressed, groups its records into fixed-size batches and
// writes each batch as one CQL batch statement. A bounded number of batch
// writes run at once while the next batch is being read.
//
// The target table's columns are taken from the first record read. Every
// later record must carry the same field names; a record that does not
// fails its batch, and the load carries on with the next one. A null field
// is sent unset, so it never overwrites a stored value.
//
// # Quick Start
//
//	cqlload \
//	    --source-path s3://events/2024-05-01.json.gz \
//	    --database-nodes cass-1:9042,cass-2:9042 \
//	    --database-keyspace-name analytics \
//	    --database-table events \
//	    --batch-size 200 \
//	    --concurrent-batches 8
//
// Every flag can also be set through an environment variable (see
// config.EnvNames) or a YAML file passed with --config.
//
// # Key Packages
//
//	cmd/cqlload          - Command line entry point
//	internal/pipeline    - Batch assembly and the concurrent upload loop
//	pkg/source           - File, S3 and GCS readers with decompression and decoding
//	pkg/store            - Schema derivation and CQL batch writes
//	pkg/value            - Dynamic record values and their CQL bindings
//	pkg/config           - Defaults, YAML, environment and flag resolution
//	pkg/errors           - Structured error handling
//	pkg/logger           - Structured logging
//	pkg/metrics          - Prometheus metrics
//	pkg/observability    - Batch write tracing
//
// # Failure Handling
//
// A failed batch write is logged with its batch id and counted; it does not
// stop the run. A source that cannot be read or a line that cannot be
// decoded stops pulling new batches. Writes already in flight finish, and
// the run then exits with the read error.
package cqlload
