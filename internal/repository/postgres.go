package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the store distinguishes.
const (
	pgUniqueViolation    = "23505"
	pgCheckViolation     = "23514"
	pgForeignKeyMissing  = "23503"
	pgLockNotAvailable   = "55P03"
	pgQueryCanceled      = "57014"
	enrollmentPairUnique = "enrollments_contact_workshop_key"
	workshopSeatsRange   = "workshops_seats_range"
)

// pool abstracts the subset of pgxpool.Pool used by the store so pgxmock can stand in.
type pool interface {
	DBTX
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	pool pool
	conn
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(p pool) (*PostgresStore, error) {
	if p == nil {
		return nil, errors.New("postgres store requires pool")
	}
	return &PostgresStore{pool: p, conn: conn{db: p}}, nil
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken with
// SELECT ... FOR UPDATE serialise writers of the same workshop; the pair
// uniqueness constraint backs the ledger independently of the lock.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if err := fn(conn{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// conn binds the three collaborators to either the pool or a transaction.
type conn struct {
	db DBTX
}

func (c conn) Catalog() Catalog     { return &catalog{db: c.db} }
func (c conn) Directory() Directory { return &directory{db: c.db} }
func (c conn) Ledger() Ledger       { return &ledger{db: c.db} }

// classify maps Postgres error codes onto the package's sentinel errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == enrollmentPairUnique {
			return fmt.Errorf("%w: %s", ErrDuplicateEnrollment, pgErr.Message)
		}
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	case pgCheckViolation:
		if pgErr.ConstraintName == workshopSeatsRange {
			return fmt.Errorf("%w: %s", ErrSeatRange, pgErr.Message)
		}
	case pgForeignKeyMissing:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
	case pgLockNotAvailable, pgQueryCanceled:
		return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
	}
	return err
}
