package graph

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"go.uber.org/zap"

	"github.com/teranos/lore/errors"
)

// ConstraintViolationCode is the server code for uniqueness constraint
// violations, the signature of a lost same-key write race.
const ConstraintViolationCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Connector executes cypher statements against Neo4j. Each call opens a
// session, runs one explicit transaction, and materializes the records
// before closing. Connectivity failures are retried with exponential
// backoff behind a circuit breaker; server-side errors surface on the
// first attempt.
type Connector struct {
	cfg     Config
	driver  neo4j.DriverWithContext
	breaker *breaker
	logger  *zap.SugaredLogger
	closed  atomic.Bool
}

// NewConnector builds a Connector. Call Connect before executing statements.
func NewConnector(cfg Config, log *zap.SugaredLogger) *Connector {
	return &Connector{
		cfg:     cfg.withDefaults(),
		breaker: newBreaker(),
		logger:  log,
	}
}

// Connect dials the store and verifies connectivity.
func (c *Connector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.Wrap(errors.ErrClosed, "graph connector")
	}

	driver, err := neo4j.NewDriverWithContext(
		c.cfg.URI,
		neo4j.BasicAuth(c.cfg.Username, c.cfg.Password, ""),
		func(conf *neo4jconfig.Config) {
			conf.MaxConnectionPoolSize = c.cfg.MaxConnectionPool
			conf.ConnectionAcquisitionTimeout = c.cfg.AcquisitionTimeout
		},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create driver for %s", c.cfg.URI)
	}

	vctx, cancel := context.WithTimeout(ctx, DefaultConnectivityTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		driver.Close(ctx)
		return errors.Wrapf(errors.Mark(err, errors.ErrServiceUnavailable),
			"failed to verify connectivity to %s", c.cfg.URI)
	}

	c.driver = driver
	c.logger.Infow("Connected to graph store",
		"uri", c.cfg.URI,
		"database", c.cfg.Database)
	return nil
}

// VerifyConnectivity checks the store is reachable without running a statement.
func (c *Connector) VerifyConnectivity(ctx context.Context) error {
	if c.closed.Load() {
		return errors.Wrap(errors.ErrClosed, "graph connector")
	}
	if c.driver == nil {
		return errors.New("graph connector is not connected")
	}
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(errors.Mark(err, errors.ErrServiceUnavailable),
			"failed to verify connectivity")
	}
	return nil
}

// ExecuteWrite runs a statement in a write transaction and returns the
// materialized records.
func (c *Connector) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return c.execute(ctx, neo4j.AccessModeWrite, cypher, params)
}

// ExecuteRead runs a statement in a read transaction and returns the
// materialized records.
func (c *Connector) ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return c.execute(ctx, neo4j.AccessModeRead, cypher, params)
}

func (c *Connector) execute(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]map[string]any, error) {
	if c.closed.Load() {
		return nil, errors.Wrap(errors.ErrClosed, "graph connector")
	}
	if c.driver == nil {
		return nil, errors.New("graph connector is not connected")
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBase * (1 << (attempt - 1))
			c.logger.Warnw("Retrying statement after connectivity failure",
				"attempt", attempt,
				"delay", delay.String(),
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "aborted while waiting to retry")
			case <-time.After(delay):
			}
		}

		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}

		start := time.Now()
		records, err := c.run(ctx, mode, cypher, params)
		if err == nil {
			c.breaker.RecordSuccess()
			c.logger.Debugw("Statement completed",
				"duration_ms", time.Since(start).Milliseconds(),
				"count", len(records))
			return records, nil
		}

		if !neo4j.IsConnectivityError(err) {
			// Server-side errors prove the store is reachable. They are
			// never retried; a lost write race surfaces to the caller.
			c.breaker.RecordSuccess()
			return nil, classify(err)
		}

		c.breaker.RecordFailure()
		lastErr = err
	}

	return nil, classify(lastErr)
}

// run executes one statement in one explicit transaction.
func (c *Connector) run(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.cfg.Database,
	})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Close(ctx)

	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for result.Next(ctx) {
		records = append(records, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the driver. Subsequent calls fail with ErrClosed.
func (c *Connector) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.driver != nil {
		if err := c.driver.Close(ctx); err != nil {
			return errors.Wrap(err, "failed to close graph driver")
		}
	}
	c.logger.Debugw("Graph connector closed", "uri", c.cfg.URI)
	return nil
}

// BreakerState exposes the circuit breaker state for status output.
func (c *Connector) BreakerState() string {
	return c.breaker.State()
}

// classify maps driver errors onto lore sentinels so callers can branch
// with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsConnectivityError(err) {
		return errors.Wrap(errors.Mark(err, errors.ErrServiceUnavailable),
			"graph store unreachable")
	}
	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == ConstraintViolationCode {
		return errors.Wrap(errors.Mark(err, errors.ErrConflict),
			"uniqueness constraint violated")
	}
	return errors.Wrap(err, "statement failed")
}
