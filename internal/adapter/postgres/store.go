package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/adapter/metrics"
	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/platform/retry"
)

// SQLSTATE codes
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeReadOnlyTransaction  = "25006"
)

const (
	txMaxAttempts    = 5
	txInitialBackoff = 10 * time.Millisecond
	txMaxBackoff     = 250 * time.Millisecond
)

// Store runs scoring transactions on a pgx pool. Transactions that hit a
// serialization failure or deadlock are rolled back and run again.
type Store struct {
	pool    *pgxpool.Pool
	clock   clockwork.Clock
	metrics *metrics.StoreMetrics
}

var _ domain.Store = (*Store)(nil)

// NewStore wraps pool. m may be nil.
func NewStore(pool *pgxpool.Pool, clock clockwork.Clock, m *metrics.StoreMetrics) *Store {
	return &Store{pool: pool, clock: clock, metrics: m}
}

func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	policy := retry.Policy{
		MaxAttempts:    txMaxAttempts,
		InitialBackoff: txInitialBackoff,
		MaxBackoff:     txMaxBackoff,
		Clock:          s.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			code := sqlState(err)
			if s.metrics != nil {
				s.metrics.TxRetries.WithLabelValues(code).Inc()
			}
			slog.DebugContext(ctx, "Retrying transaction", "attempt", attempt, "code", code, "backoff", backoff)
		},
	}

	err := retry.DoVoid(ctx, policy, classifyTxError, func() error {
		return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
	})

	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (s *Store) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	err := s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
	if sqlState(err) == codeReadOnlyTransaction {
		return fmt.Errorf("%w: %v", domain.ErrReadOnly, err)
	}
	return err
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(tx domain.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = pgtx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&tx{q: pgtx, clock: s.clock}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func classifyTxError(err error) retry.Action {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return retry.Retry
	default:
		return retry.Stop
	}
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

type tx struct {
	q     pgx.Tx
	clock clockwork.Clock
}

func (t *tx) Events() domain.EventRepository { return eventRepo{t} }
func (t *tx) Themes() domain.ThemeRepository { return themeRepo{t} }
func (t *tx) Entries() domain.EntryRepository { return entryRepo{t} }
func (t *tx) Comments() domain.CommentRepository { return commentRepo{t} }
func (t *tx) Tournaments() domain.TournamentRepository { return tournamentRepo{t} }
func (t *tx) HighScores() domain.HighScoreRepository { return highScoreRepo{t} }

// execOne runs a statement that must touch at least one row.
func (t *tx) execOne(ctx context.Context, notFound error, sql string, args ...any) error {
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func (t *tx) now(ts time.Time) time.Time {
	if ts.IsZero() {
		return t.clock.Now()
	}
	return ts
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
