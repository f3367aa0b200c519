package sqlstore

import (
	"fmt"
	"strconv"
)

// Dialect captures the SQL differences between the supported databases
type Dialect struct {
	Name string

	// Numbered placeholders ($1, $2) instead of ?
	numbered bool
	// INSERT ... RETURNING instead of LastInsertId
	returning bool
}

var (
	// Postgres is used with the pgx and lib/pq drivers
	Postgres = Dialect{Name: "postgres", numbered: true, returning: true}

	// SQLite is used with the mattn/go-sqlite3 driver
	SQLite = Dialect{Name: "sqlite3"}
)

// DialectFor returns the dialect of a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported SQL driver: %s", driver)
	}
}

// Placeholder returns the n-th (1-based) bind parameter
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Returning reports whether inserts return the key with RETURNING
func (d Dialect) Returning() bool {
	return d.returning
}
