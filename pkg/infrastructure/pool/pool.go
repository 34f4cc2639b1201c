// Package pool manages a bounded pool of database connections with
// checkout timeouts, health checks, and a shared retry policy.
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/rs/zerolog"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/infrastructure/metrics"
)

// Config controls pool sizing and retry behavior.
type Config struct {
	DSN                   string        `mapstructure:"dsn"`
	MaxSize               int           `mapstructure:"max_size"`
	MinIdle               int           `mapstructure:"min_idle"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	ConnMaxLifetime       time.Duration `mapstructure:"conn_max_lifetime"`
	HealthCheckOnCheckout bool          `mapstructure:"health_check_on_checkout"`
	RetryAttempts         int           `mapstructure:"retry_attempts"`
	RetryBackoff          time.Duration `mapstructure:"retry_backoff"`
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:               10,
		MinIdle:               2,
		ConnectTimeout:        5 * time.Second,
		IdleTimeout:           5 * time.Minute,
		ConnMaxLifetime:       30 * time.Minute,
		HealthCheckOnCheckout: false,
		RetryAttempts:         3,
		RetryBackoff:          100 * time.Millisecond,
	}
}

// Validate fills zero fields with defaults.
func (c *Config) Validate() {
	def := DefaultConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MinIdle < 0 || c.MinIdle > c.MaxSize {
		c.MinIdle = def.MinIdle
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = def.RetryAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
}

// ConnectionPool is a bounded pool over database/sql. At most MaxSize
// connections exist; Checkout blocks up to ConnectTimeout for a free one.
type ConnectionPool struct {
	db      *sql.DB
	cfg     Config
	logger  zerolog.Logger
	metrics metrics.Collector
	closed  atomic.Bool

	checkouts        atomic.Int64
	checkoutTimeouts atomic.Int64
	discards         atomic.Int64
}

// New opens a pool against the configured DSN using the pgx stdlib driver.
func New(cfg Config, logger zerolog.Logger, collector metrics.Collector) (*ConnectionPool, error) {
	cfg.Validate()
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to open database")
	}
	return NewWithDB(db, cfg, logger, collector), nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB, cfg Config, logger zerolog.Logger, collector metrics.Collector) *ConnectionPool {
	cfg.Validate()
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	db.SetMaxOpenConns(cfg.MaxSize)
	db.SetMaxIdleConns(cfg.MinIdle)
	db.SetConnMaxIdleTime(cfg.IdleTimeout)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &ConnectionPool{
		db:      db,
		cfg:     cfg,
		logger:  logger.With().Str("component", "connection_pool").Logger(),
		metrics: collector,
	}
}

// Conn is one checked-out connection with exclusive use until released.
type Conn struct {
	conn *sql.Conn
	pool *ConnectionPool
	done atomic.Bool
}

// Checkout acquires a connection for exclusive use. When the pool is at
// capacity it waits up to ConnectTimeout, then fails with a pool exhausted
// error.
func (p *ConnectionPool) Checkout(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, apperrors.ErrPoolClosed
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	conn, err := p.db.Conn(checkoutCtx)
	if err != nil {
		if checkoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			p.checkoutTimeouts.Add(1)
			p.metrics.IncCounter("pool_checkout_timeouts_total")
			return nil, apperrors.ErrPoolExhausted
		}
		return nil, apperrors.Classify(err)
	}

	if p.cfg.HealthCheckOnCheckout {
		if err := conn.PingContext(checkoutCtx); err != nil {
			discardConn(conn)
			p.discards.Add(1)
			return nil, apperrors.Wrap(err, apperrors.CodeConnectionBroken, "connection failed health check")
		}
	}

	p.checkouts.Add(1)
	p.metrics.IncCounter("pool_checkouts_total")
	return &Conn{conn: conn, pool: p}, nil
}

// QueryContext runs a query on this connection.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on this connection.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// ExecContext runs a statement on this connection.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// Release returns the connection to the pool. Safe to call more than once.
func (c *Conn) Release() {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	_ = c.conn.Close()
}

// ReleaseWithError returns the connection, discarding it when the error
// indicates the connection itself is broken. Broken connections are never
// repaired; a fresh one is dialed on demand.
func (c *Conn) ReleaseWithError(err error) {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	if err != nil && apperrors.IsRetryable(err) {
		discardConn(c.conn)
		c.pool.discards.Add(1)
		c.pool.metrics.IncCounter("pool_discards_total")
		return
	}
	_ = c.conn.Close()
}

// discardConn marks the underlying driver connection bad so Close drops it
// instead of returning it to the pool.
func discardConn(conn *sql.Conn) {
	_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
	_ = conn.Close()
}

// Retry runs op, retrying transient failures with exponential backoff. This
// is the one retry policy in the server; scans, CRUD and bulk inserts all
// go through it. Fatal failures return immediately.
func (p *ConnectionPool) Retry(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	backoff := p.cfg.RetryBackoff
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return apperrors.Classify(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			return err
		}
		p.metrics.IncCounter("pool_retries_total")
		p.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", p.cfg.RetryAttempts).
			Msg("retrying transient database failure")
	}
	return lastErr
}

// Stats reports pool usage.
type Stats struct {
	MaxSize          int           `json:"max_size"`
	Open             int           `json:"open"`
	InUse            int           `json:"in_use"`
	Idle             int           `json:"idle"`
	WaitCount        int64         `json:"wait_count"`
	WaitDuration     time.Duration `json:"wait_duration"`
	Checkouts        int64         `json:"checkouts"`
	CheckoutTimeouts int64         `json:"checkout_timeouts"`
	Discards         int64         `json:"discards"`
}

// Stats returns a snapshot of pool usage.
func (p *ConnectionPool) Stats() Stats {
	dbStats := p.db.Stats()
	return Stats{
		MaxSize:          p.cfg.MaxSize,
		Open:             dbStats.OpenConnections,
		InUse:            dbStats.InUse,
		Idle:             dbStats.Idle,
		WaitCount:        dbStats.WaitCount,
		WaitDuration:     dbStats.WaitDuration,
		Checkouts:        p.checkouts.Load(),
		CheckoutTimeouts: p.checkoutTimeouts.Load(),
		Discards:         p.discards.Load(),
	}
}

// HealthCheck verifies the database is reachable.
func (p *ConnectionPool) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return apperrors.ErrPoolClosed
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()
	if err := p.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "database unreachable")
	}
	return nil
}

// DB exposes the underlying handle for schema bootstrap.
func (p *ConnectionPool) DB() *sql.DB {
	return p.db
}

// Close shuts the pool down. Outstanding connections finish their work;
// new checkouts fail.
func (p *ConnectionPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.logger.Info().Msg("closing connection pool")
	return p.db.Close()
}
