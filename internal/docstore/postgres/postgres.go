// Package postgres implements docstore.Store on PostgreSQL, for deployments
// that prefer a self-hosted store. Documents live in a single JSONB table;
// conditional writes use row-counted conditional updates, which gives the
// same CAS guarantee as the managed backend.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"strategy-lifecycle-lab/internal/docstore"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", translate("ping", err))
	}

	return &Pool{Pool: pool}, nil
}

// PostgreSQL error codes.
const (
	pgErrUniqueViolation       = "23505" // unique_violation
	pgErrInsufficientPrivilege = "42501" // insufficient_privilege
	pgErrInvalidPassword       = "28P01" // invalid_password
	pgErrInvalidAuthorization  = "28000" // invalid_authorization_specification
)

// translate classifies a pgx error into the store taxonomy.
func translate(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, docstore.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fmt.Errorf("%s: %w", op, docstore.ErrAlreadyExists)
		case pgErrInsufficientPrivilege, pgErrInvalidPassword, pgErrInvalidAuthorization:
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrPermissionDenied, err)
		}
		// Class 08 covers connection exceptions, class 57 operator
		// intervention (shutdown, crash recovery): both transient.
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57") {
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
		}
		// Class 22: data exceptions, malformed input.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "22" {
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrInvalidArgument, err)
		}
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
