package sqlite

import (
	"errors"
	"fmt"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/mattn/go-sqlite3"
)

// mapError translates go-sqlite3 errors into *errs.Error.
// A nil err maps to nil.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if database.IsContextErr(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return errs.Wrap(
			classifyCode(sqliteErr.Code),
			fmt.Sprintf("%s: %s", msg, sqliteErr.Error()),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

func classifyCode(code sqlite3.ErrNo) errs.ErrKind {
	switch code {
	case sqlite3.ErrConstraint:
		return errs.ErrKindConflict
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return errs.ErrKindBusy
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return errs.ErrKindConnectionFailed
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return errs.ErrKindPermissionDenied
	default:
		return errs.ErrKindQueryFailed
	}
}
