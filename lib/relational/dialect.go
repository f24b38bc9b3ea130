package relational

import (
	"context"
	"database/sql"
	"github.com/ValentinKolb/dFacade/lib/config"
	"github.com/ValentinKolb/dFacade/lib/connector"
	"github.com/ValentinKolb/dFacade/lib/database"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
	"strconv"
	"strings"
)

// Dialect describes the differences between the supported SQL databases
// that matter for the statements built by the facade.
type Dialect struct {
	Type database.BackendType
	// Driver is the database/sql driver name
	Driver string
	// Numbered is true if placeholders are $1, $2, ... instead of ?
	Numbered bool
}

var (
	MySQL      = Dialect{Type: database.BackendMySQL, Driver: "mysql"}
	MariaDB    = Dialect{Type: database.BackendMariaDB, Driver: "mysql"}
	PostgreSQL = Dialect{Type: database.BackendPostgreSQL, Driver: "pgx", Numbered: true}
	SQLite     = Dialect{Type: database.BackendSQLite, Driver: "sqlite"}
)

// DialectFor returns the dialect of a relational backend type
func DialectFor(t database.BackendType) (Dialect, error) {
	switch t {
	case database.BackendMySQL:
		return MySQL, nil
	case database.BackendMariaDB:
		return MariaDB, nil
	case database.BackendPostgreSQL:
		return PostgreSQL, nil
	case database.BackendSQLite:
		return SQLite, nil
	default:
		return Dialect{}, database.Errorf(database.CodeConfiguration, "%s is not a relational backend", t)
	}
}

// Rebind converts the ? placeholders of query into the placeholder style of the dialect.
// Question marks inside single quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n, quoted := 0, false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			sb.WriteByte(c)
		case c == '?' && !quoted:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Connecting
// --------------------------------------------------------------------------

// openDB opens a pool for a network backend. release frees resources that are not
// owned by the returned *sql.DB (the pgx pool).
func openDB(ctx context.Context, d Dialect, cred config.Credential, databaseName string) (*sql.DB, func(), error) {
	switch d.Type {
	case database.BackendMySQL, database.BackendMariaDB:
		dsn, err := connector.MySQLDSN(cred, databaseName)
		if err != nil {
			return nil, nil, err
		}
		db, err := sql.Open(d.Driver, dsn)
		if err != nil {
			return nil, nil, database.WrapBackend("open "+string(d.Type), err)
		}
		return db, func() {}, nil

	case database.BackendPostgreSQL:
		uri, err := connector.PostgresURI(cred, databaseName)
		if err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, uri)
		if err != nil {
			return nil, nil, database.WrapBackend("open postgresql pool", err)
		}
		return stdlib.OpenDBFromPool(pool), pool.Close, nil

	default:
		return nil, nil, database.Errorf(database.CodeConfiguration, "%s is not a network backend", d.Type)
	}
}
