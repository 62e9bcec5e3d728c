package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// MapError converts pgx/pgconn errors to domain errors, prefixing them with
// subject (for example "lesson_progress <user>/<lesson>").
// context.Canceled passes through unchanged. Deadlines, connection failures,
// serialization failures and deadlocks are marked domain.ErrTransient while
// keeping the original error in the chain.
func MapError(err error, subject string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", subject, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", subject, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w", subject, domain.ErrValidation)
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57P01", // admin_shutdown
			"53300": // too_many_connections
			return fmt.Errorf("%s: %w: %w", subject, domain.ErrTransient, err)
		}
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "08" { // connection_exception class
			return fmt.Errorf("%s: %w: %w", subject, domain.ErrTransient, err)
		}
		return fmt.Errorf("%s: %w", subject, err)
	}

	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", subject, domain.ErrTransient, err)
	}

	return fmt.Errorf("%s: %w", subject, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
