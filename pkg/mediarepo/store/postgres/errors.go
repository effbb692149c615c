package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-media/pkg/mediarepo"
)

// handlePostgresError maps driver errors to content store errors
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, mediarepo.ErrItemExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: parent node missing: %w", operation, mediarepo.ErrInvalidItemState)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: concurrent modification: %w", operation, mediarepo.ErrInvalidItemState)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, mediarepo.ErrPathNotFound)
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}
