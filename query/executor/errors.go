package executor

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/sqlgen"
)

// MySQL server error numbers given a readable detail.
const (
	errDupEntry          = 1062
	errNoReferencedRow   = 1452
	errRowIsReferenced   = 1451
	errNoSuchTable       = 1146
	errBadFieldError     = 1054
	errParseError        = 1064
	errLockWaitTimeout   = 1205
	errLockDeadlock      = 1213
	errDataTooLong       = 1406
	errBadNullError      = 1048
	errTruncatedWrongVal = 1366
)

var mysqlDetails = map[uint16]string{
	errDupEntry:          "duplicate entry",
	errNoReferencedRow:   "foreign key constraint fails",
	errRowIsReferenced:   "row is referenced by a foreign key",
	errNoSuchTable:       "table does not exist",
	errBadFieldError:     "unknown column",
	errParseError:        "syntax error",
	errLockWaitTimeout:   "lock wait timeout",
	errLockDeadlock:      "deadlock",
	errDataTooLong:       "data too long for column",
	errBadNullError:      "column cannot be null",
	errTruncatedWrongVal: "incorrect value for column",
}

// detail describes a driver error when it is a *mysql.MySQLError.
func detail(err error) string {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return ""
	}
	if d, ok := mysqlDetails[myErr.Number]; ok {
		return fmt.Sprintf("%s, mysql %d", d, myErr.Number)
	}
	return fmt.Sprintf("mysql %d", myErr.Number)
}

func preparationError(sql string, err error) error {
	return &query.QueryError{
		Operation: "prepare",
		SQL:       sql,
		Detail:    detail(err),
		Cause:     errors.Join(query.ErrStatementPreparationFailed, err),
	}
}

func executionError(q *sqlgen.Query, err error) error {
	return &query.QueryError{
		Operation: "execute",
		SQL:       q.SQL,
		Detail:    detail(err),
		Cause:     errors.Join(query.ErrStatementExecutionFailed, err),
	}
}
