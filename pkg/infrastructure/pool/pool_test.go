package pool

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
)

func newTestPool(t *testing.T, cfg Config) (*ConnectionPool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.NewWithDSN(t.Name())
	require.NoError(t, err)
	pinMockDSN(t)
	p := NewWithDB(db, cfg, zerolog.Nop(), nil)
	t.Cleanup(func() { _ = p.Close() })
	return p, mock
}

// pinMockDSN holds an independent connection to the test's sqlmock DSN so the
// mock driver stays registered while the pool under test closes or discards
// its own connections.
func pinMockDSN(t *testing.T) {
	t.Helper()
	pin, err := sql.Open("sqlmock", t.Name())
	require.NoError(t, err)
	pinConn, err := pin.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pinConn.Close()
		_ = pin.Close()
	})
}

func TestCheckoutAndQuery(t *testing.T) {
	p, mock := newTestPool(t, Config{MaxSize: 2, ConnectTimeout: time.Second})
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	rows, err := conn.QueryContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, rows.Close())

	assert.Equal(t, int64(1), p.Stats().Checkouts)
}

func TestCheckoutTimeoutWhenExhausted(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: 50 * time.Millisecond})

	held, err := p.Checkout(context.Background())
	require.NoError(t, err)

	_, err = p.Checkout(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePoolExhausted, apperrors.GetCode(err))
	assert.False(t, apperrors.IsRetryable(err), "exhaustion is surfaced to the caller, not retried")
	assert.Equal(t, int64(1), p.Stats().CheckoutTimeouts)

	// A released connection becomes available again.
	held.Release()
	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)
	conn.Release()
}

func TestCheckoutRespectsCallerCancellation(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: time.Second})

	held, err := p.Checkout(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Checkout(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCanceled, apperrors.GetCode(err))
}

func TestReleaseWithErrorDiscardsBrokenConnections(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 2, ConnectTimeout: time.Second})

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)
	conn.ReleaseWithError(&pgconn.PgError{Code: "08006"})
	assert.Equal(t, int64(1), p.Stats().Discards)

	// Fatal errors return the connection instead of discarding it.
	conn, err = p.Checkout(context.Background())
	require.NoError(t, err)
	conn.ReleaseWithError(apperrors.New(apperrors.CodeQuerySyntax, "bad query"))
	assert.Equal(t, int64(1), p.Stats().Discards)

	// The pool still hands out connections after a discard.
	conn, err = p.Checkout(context.Background())
	require.NoError(t, err)
	conn.Release()
}

func TestCheckoutAfterClose(t *testing.T) {
	p, mock := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: time.Second})
	mock.ExpectClose()
	require.NoError(t, p.Close())

	_, err := p.Checkout(context.Background())
	assert.Equal(t, apperrors.CodeUnavailable, apperrors.GetCode(err))
}

func TestRetryTransientThenSuccess(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: time.Second, RetryAttempts: 3, RetryBackoff: time.Millisecond})

	calls := 0
	err := p.Retry(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryFatalFailsImmediately(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: time.Second, RetryAttempts: 3, RetryBackoff: time.Millisecond})

	calls := 0
	fatal := &pgconn.PgError{Code: "42601"}
	err := p.Retry(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: time.Second, RetryAttempts: 3, RetryBackoff: time.Millisecond})

	calls := 0
	transient := fmt.Errorf("read tcp: connection reset by peer")
	err := p.Retry(context.Background(), func(context.Context) error {
		calls++
		return transient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	p, _ := newTestPool(t, Config{MaxSize: 1, ConnectTimeout: time.Second, RetryAttempts: 5, RetryBackoff: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Retry(ctx, func(context.Context) error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, apperrors.CodeCanceled, apperrors.GetCode(err))
}

func TestConfigValidateDefaults(t *testing.T) {
	var cfg Config
	cfg.Validate()
	def := DefaultConfig()
	assert.Equal(t, def.MaxSize, cfg.MaxSize)
	assert.Equal(t, def.ConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, def.RetryAttempts, cfg.RetryAttempts)
}
