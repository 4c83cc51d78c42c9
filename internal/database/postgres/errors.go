package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
)

// PostgreSQL SQLSTATE error codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrLockNotAvailable     = "55P03"
	pgErrTooManyConnections   = "53300"
	pgErrInsufficientPrivs    = "42501"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
// A nil err maps to nil.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	// Context cancellation / deadline exceeded
	if database.IsContextErr(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(
			classifySQLState(pgErr.Code),
			fmt.Sprintf("%s: %s", msg, pgErr.Message),
			err,
		)
	}

	if pgconn.SafeToRetry(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifySQLState maps a SQLSTATE code to ErrKind.
func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrSerializationFailure, pgErrDeadlockDetected, pgErrLockNotAvailable, pgErrTooManyConnections:
		return errs.ErrKindBusy
	case pgErrInsufficientPrivs:
		return errs.ErrKindPermissionDenied
	}

	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "28"), strings.HasPrefix(code, "3D"):
		// connection exception, invalid authorization, invalid catalog name
		return errs.ErrKindConnectionFailed
	case strings.HasPrefix(code, "23"):
		// integrity constraint violation
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
