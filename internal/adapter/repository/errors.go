package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/eslsoft/audiolink/internal/entity"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translateError maps driver errors to domain error kinds. Anything that is
// not a constraint violation is reported as a dependency failure.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped := constraintError(pgErr.Code, pgErr.ConstraintName); mapped != nil {
			return mapped
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if mapped := constraintError(string(pqErr.Code), pqErr.Constraint); mapped != nil {
			return mapped
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return entity.ErrAudioConflict
		case sqlite3.ErrConstraintForeignKey:
			return entity.ErrUnknownReference
		}
	}
	return entity.Dependency(op, err)
}

func constraintError(code, constraint string) error {
	switch code {
	case pgUniqueViolation:
		return entity.ErrAudioConflict
	case pgForeignKeyViolation:
		if constraint == "" {
			return entity.ErrUnknownReference
		}
		return fmt.Errorf("%w (%s)", entity.ErrUnknownReference, constraint)
	}
	return nil
}
