package store

import (
	"context"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// Session executes batches of one statement against the store.
type Session interface {
	// ExecuteBatch runs stmt once per row as a single server-side batch.
	ExecuteBatch(ctx context.Context, stmt string, rows [][]interface{}) error
	Close()
}

// BatchType selects the server-side batch kind.
type BatchType string

const (
	BatchUnlogged BatchType = "unlogged"
	BatchLogged   BatchType = "logged"
)

// ParseBatchType validates a batch type name. The empty string means unlogged.
func ParseBatchType(s string) (BatchType, error) {
	switch t := BatchType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", BatchUnlogged:
		return BatchUnlogged, nil
	case BatchLogged:
		return BatchLogged, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported batch type %q", s)
}

func (t BatchType) gocql() gocql.BatchType {
	if t == BatchLogged {
		return gocql.LoggedBatch
	}
	return gocql.UnloggedBatch
}

// SessionConfig configures a CQLSession.
type SessionConfig struct {
	// Nodes are host or host:port contact points
	Nodes          []string
	Username       string
	Password       string
	Consistency    string
	BatchType      BatchType
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// SplitNodes parses a comma separated node list, dropping empty entries.
func SplitNodes(s string) []string {
	var nodes []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// CQLSession is a Session backed by a gocql cluster session. It is safe for
// concurrent use.
type CQLSession struct {
	session   *gocql.Session
	batchType gocql.BatchType
	logger    *zap.Logger
}

// NewCQLSession connects to the cluster described by cfg.
func NewCQLSession(cfg SessionConfig, logger *zap.Logger) (*CQLSession, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Nodes) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one database node is required")
	}

	cluster := gocql.NewCluster(cfg.Nodes...)
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	if cfg.Consistency != "" {
		c, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid consistency level").
				WithDetail("consistency", cfg.Consistency)
		}
		cluster.Consistency = c
	} else {
		cluster.Consistency = gocql.LocalQuorum
	}

	cluster.Logger = zap.NewStdLog(logger.Named("gocql"))

	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectTimeout
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database").
			WithDetail("nodes", strings.Join(cfg.Nodes, ","))
	}

	logger.Info("database session established",
		zap.Strings("nodes", cfg.Nodes),
		zap.String("consistency", cluster.Consistency.String()),
		zap.String("batch_type", string(cfg.BatchType)))

	return &CQLSession{
		session:   session,
		batchType: cfg.BatchType.gocql(),
		logger:    logger,
	}, nil
}

func (s *CQLSession) ExecuteBatch(ctx context.Context, stmt string, rows [][]interface{}) error {
	b := s.session.NewBatch(s.batchType).WithContext(ctx)
	for _, args := range rows {
		b.Query(stmt, args...)
	}

	if err := s.session.ExecuteBatch(b); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "batch execution failed").
			WithDetail("rows", len(rows))
	}
	return nil
}

func (s *CQLSession) Close() {
	s.session.Close()
}
