package apperr

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// MapDB classifies storage failures. Unique violations become conflicts,
// lock/serialization failures and context expiry become upstream (retriable).
func MapDB(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Code: CodeNotFound, Op: op, Cause: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Code: CodeConflict, Op: op, Cause: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeUpstream, Op: op, Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &Error{Code: CodeConflict, Op: op, Cause: err}
		case "40001", "40P01", "55P03": // serialization, deadlock, lock_not_available
			return &Error{Code: CodeUpstream, Op: op, Cause: err}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return &Error{Code: CodeConflict, Op: op, Cause: err}
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "deadlock"):
		return &Error{Code: CodeUpstream, Op: op, Cause: err}
	default:
		return &Error{Code: CodeInternal, Op: op, Cause: err}
	}
}
