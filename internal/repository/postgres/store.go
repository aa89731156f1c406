package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx, so
// every repository works unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db   DBTX
	pool *pgxpool.Pool // nil when already transaction-bound
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

func (s *Store) Complaints() repository.ComplaintRepository   { return &ComplaintRepo{db: s.db} }
func (s *Store) Queue() repository.QueueRepository            { return &QueueRepo{db: s.db} }
func (s *Store) Users() repository.UserRepository             { return &UserRepo{db: s.db} }
func (s *Store) Escalations() repository.EscalationRepository { return &EscalationRepo{db: s.db} }
func (s *Store) Audit() repository.AuditRepository            { return &AuditRepo{db: s.db} }

// WithTx runs fn against a transaction-bound Store. Nested calls reuse the
// ambient transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// asRepoErr translates driver-level failures into the repository taxonomy.
// SQLSTATE 23505 (unique_violation) becomes ErrDuplicate so callers can fetch
// the existing row instead of failing.
func asRepoErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// small helper to avoid fmt on argument-index hot paths.
func itoa(i int) string { return strconv.Itoa(i) }
