package client

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// mysql error numbers for constraint failures
var mysqlIntegrityErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1216: true, // no referenced row
	1217: true, // row is referenced
	1451: true, // row is referenced (fk)
	1452: true, // no referenced row (fk)
}

// IsIntegrityViolation reports whether err is a constraint failure raised by
// any supported driver.
func IsIntegrityViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlIntegrityErrors[mysqlErr.Number]
	}

	return false
}
