package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fornlamningar/fornlamningar-engine/pkg/database"
)

// dialect isolates the catalog queries and error codes that differ between stores.
type dialect interface {
	// columnsQuery lists column names of a table in declaration order. Takes one bind arg.
	columnsQuery() string
	// isDuplicateColumn reports whether err means ADD COLUMN hit an existing column.
	isDuplicateColumn(err error) bool
}

func dialectFor(driver string) dialect {
	if driver == database.DriverPostgres {
		return postgresDialect{}
	}
	return sqliteDialect{}
}

type sqliteDialect struct{}

func (sqliteDialect) columnsQuery() string {
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`
}

func (sqliteDialect) isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

type postgresDialect struct{}

// pgDuplicateColumn is SQLSTATE duplicate_column.
const pgDuplicateColumn = "42701"

func (postgresDialect) columnsQuery() string {
	return `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position`
}

func (postgresDialect) isDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgDuplicateColumn
}
