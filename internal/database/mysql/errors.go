package mysql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errTooManyConnections = 1040
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errNoDatabaseSelected = 1046
	errUnknownDatabase    = 1049
	errTableAccessDenied  = 1142
	errColumnAccessDenied = 1143
	errUserLimitReached   = 1203
	errLockWaitTimeout    = 1205
	errDeadlock           = 1213
	errDuplicateEntry     = 1062
	errRowIsReferenced    = 1451
	errNoReferencedRow    = 1452
	errConnRefused        = 2003
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
// A nil err maps to nil.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if database.IsContextErr(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.As(err, &netErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDBAccessDenied, errAccessDenied, errNoDatabaseSelected, errUnknownDatabase, errConnRefused:
		return errs.ErrKindConnectionFailed
	case errTableAccessDenied, errColumnAccessDenied:
		return errs.ErrKindPermissionDenied
	case errTooManyConnections, errUserLimitReached, errLockWaitTimeout, errDeadlock:
		return errs.ErrKindBusy
	case errDuplicateEntry, errRowIsReferenced, errNoReferencedRow:
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
