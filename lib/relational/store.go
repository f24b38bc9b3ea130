package relational

import (
	"context"
	"database/sql"
	"github.com/ValentinKolb/dFacade/lib/async"
	"github.com/ValentinKolb/dFacade/lib/config"
	"github.com/ValentinKolb/dFacade/lib/connector"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"strings"
	"sync/atomic"
	"time"
)

var (
	Logger = logger.GetLogger("relational")
)

// Store is the relational facade on top of a database/sql pool.
//
// Table and column names are validated identifiers, every value is a bound parameter.
// Non-scalar values (maps, slices, structs) are stored in their JSON form.
//
// Rows are addressed by a key column: the primary key of tables created or registered
// through the store, DefaultKeyColumn (or WithKeyColumn) for all other tables.
//
// Thread-safety: All methods are safe for concurrent use.
type Store struct {
	db        *sql.DB
	dialect   Dialect
	release   func()
	tables    *xsync.MapOf[string, Schema]
	keyColumn string
	pool      *async.Pool
	metrics   *metrics.Recorder
	closed    atomic.Bool
}

// New creates a facade on top of an open pool. The store takes ownership of db and closes it in Close.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	return newStore(db, dialect, func() {}, opts...)
}

func newStore(db *sql.DB, dialect Dialect, release func(), opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.recorder == nil {
		o.recorder = metrics.NewRecorder("relational")
	}

	return &Store{
		db:        db,
		dialect:   dialect,
		release:   release,
		tables:    xsync.NewMapOf[string, Schema](),
		keyColumn: o.keyColumn,
		pool:      async.NewPool(o.workers),
		metrics:   o.recorder,
	}
}

// Open connects to a relational backend. For network backends (mysql, mariadb, postgresql)
// the credentials are resolved from reg and databaseName is the database on the server.
// For sqlite databaseName is the path of the database file and reg is not consulted.
func Open(ctx context.Context, reg *config.Registry, backend database.BackendType, databaseName string, opts ...Option) (*Store, error) {
	d, err := DialectFor(backend)
	if err != nil {
		return nil, err
	}
	if d.Type == database.BackendSQLite {
		return OpenSQLite(ctx, databaseName, opts...)
	}

	cred, err := reg.Resolve(backend)
	if err != nil {
		return nil, err
	}
	db, release, err := openDB(ctx, d, cred, databaseName)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		release()
		return nil, database.WrapBackend("connect to "+string(backend)+" at "+cred.Addr(), err)
	}

	Logger.Infof("connected to %s at %s (database %s)", backend, cred.Addr(), databaseName)
	return newStore(db, d, release, opts...), nil
}

// OpenSQLite opens (and creates if missing) the sqlite database file at path
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path, err := connector.SQLitePath(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(SQLite.Driver, "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, database.WrapBackend("open sqlite", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, database.WrapBackend("open sqlite database "+path, err)
	}

	Logger.Infof("opened sqlite database %s", path)
	return New(db, SQLite, opts...), nil
}

// --------------------------------------------------------------------------
// database.Database
// --------------------------------------------------------------------------

var _ database.Database = (*Store)(nil)

func (s *Store) Type() database.BackendType {
	return s.dialect.Type
}

func (s *Store) SupportsFeature(feature database.Feature) bool {
	supported := database.FeatureSchema |
		database.FeatureCursor |
		database.FeatureAsync
	return feature&supported == feature
}

func (s *Store) Ping(ctx context.Context) error {
	return database.WrapBackend("ping", s.db.PingContext(ctx))
}

// Close waits for pending asynchronous operations and closes the pool.
// Results that are still open keep their connection until they are closed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.pool.Close()
	err := s.db.Close()
	s.release()
	return database.WrapBackend("close", err)
}

// DB returns the underlying pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect of the store
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Metrics returns the recorder of this store
func (s *Store) Metrics() *metrics.Recorder {
	return s.metrics
}

// Conn hands out a dedicated connection from the pool. The caller must close it.
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	return conn, database.WrapBackend("acquire connection", err)
}

// --------------------------------------------------------------------------
// Schema
// --------------------------------------------------------------------------

// CreateTable creates table with the given columns (in order) and primary key, if it does
// not exist yet. It fails with a SchemaError before anything is executed if the primary key
// is not one of the columns or a name is not a valid identifier.
func (s *Store) CreateTable(ctx context.Context, columns []Column, table, primaryKey string) (err error) {
	defer s.metrics.Observe("create_table", time.Now(), &err)

	query, schema, err := buildCreateTable(columns, table, primaryKey)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return database.WrapBackend("create table "+table, err)
	}

	s.tables.Store(table, schema)
	Logger.Debugf("created table %s (%s)", table, strings.Join(schema.Columns, ", "))
	return nil
}

// RegisterTable makes a table that was created elsewhere known to Insert.
// primaryKey may be empty, the key column then is the store default.
func (s *Store) RegisterTable(table string, columns []string, primaryKey string) error {
	if err := validIdentifier("table", table); err != nil {
		return err
	}
	if len(columns) == 0 {
		return database.Errorf(database.CodeSchema, "table %q has no columns", table)
	}
	found := primaryKey == ""
	for _, c := range columns {
		if err := validIdentifier("column", c); err != nil {
			return err
		}
		found = found || c == primaryKey
	}
	if !found {
		return database.Errorf(database.CodeSchema, "primary key %q is not a column of table %q", primaryKey, table)
	}

	s.tables.Store(table, Schema{
		Name:       table,
		Columns:    append([]string(nil), columns...),
		PrimaryKey: primaryKey,
	})
	return nil
}

// Table returns the schema of a created or registered table
func (s *Store) Table(table string) (Schema, bool) {
	return s.tables.Load(table)
}

// keyColumnOf returns the column the rows of table are addressed by
func (s *Store) keyColumnOf(table string) string {
	if schema, ok := s.tables.Load(table); ok && schema.PrimaryKey != "" {
		return schema.PrimaryKey
	}
	return s.keyColumn
}

// target validates table and its key column
func (s *Store) target(table string) (string, error) {
	if err := validIdentifier("table", table); err != nil {
		return "", err
	}
	key := s.keyColumnOf(table)
	if err := validIdentifier("column", key); err != nil {
		return "", err
	}
	return key, nil
}

// --------------------------------------------------------------------------
// Rows
// --------------------------------------------------------------------------

// Insert inserts one row. values are matched by position to the columns of the table,
// which must have been created or registered through the store.
func (s *Store) Insert(ctx context.Context, table string, values ...any) (err error) {
	defer s.metrics.Observe("insert", time.Now(), &err)

	schema, ok := s.tables.Load(table)
	if !ok {
		return database.Errorf(database.CodeSchema, "unknown table %q, create or register it first", table)
	}
	if len(values) != len(schema.Columns) {
		return database.Errorf(database.CodeSchema, "table %q has %d columns, got %d values",
			table, len(schema.Columns), len(values))
	}

	args := make([]any, len(values))
	for i, v := range values {
		if args[i], err = bindValue(v); err != nil {
			return err
		}
	}

	query := "INSERT INTO " + table + " (" + strings.Join(schema.Columns, ", ") + ") VALUES (" + placeholders(len(values)) + ")"
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		return database.WrapBackend("insert into "+table, err)
	}
	return nil
}

// Update sets column to value in the row with the given key and returns the number of
// affected rows. No matching row is not an error, the count is 0.
func (s *Store) Update(ctx context.Context, table string, key any, column string, value any) (n int64, err error) {
	defer s.metrics.Observe("update", time.Now(), &err)

	keyColumn, err := s.target(table)
	if err != nil {
		return 0, err
	}
	if err := validIdentifier("column", column); err != nil {
		return 0, err
	}
	v, err := bindValue(value)
	if err != nil {
		return 0, err
	}
	k, err := bindValue(key)
	if err != nil {
		return 0, err
	}

	query := "UPDATE " + table + " SET " + column + " = ? WHERE " + keyColumn + " = ?"
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), v, k)
	if err != nil {
		return 0, database.WrapBackend("update "+table, err)
	}
	n, err = res.RowsAffected()
	return n, database.WrapBackend("update "+table, err)
}

// GetResult selects the rows of table with the given key, followed by the optional clauses.
// The returned Result owns a pooled connection and must be closed by the caller. If an error
// is returned, everything acquired on the way has been released already.
func (s *Store) GetResult(ctx context.Context, table string, key any, clauses ...Clause) (res *Result, err error) {
	defer s.metrics.Observe("get_result", time.Now(), &err)

	keyColumn, err := s.target(table)
	if err != nil {
		return nil, err
	}
	k, err := bindValue(key)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + table + " WHERE " + keyColumn + " = ?"
	args := []any{k}
	for _, c := range clauses {
		query += " " + c.SQL
		for _, a := range c.Args {
			b, err := bindValue(a)
			if err != nil {
				return nil, err
			}
			args = append(args, b)
		}
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, database.WrapBackend("acquire connection", err)
	}
	stmt, err := conn.PrepareContext(ctx, s.dialect.Rebind(query))
	if err != nil {
		_ = closeAll(nil, nil, conn)
		return nil, database.WrapBackend("prepare select from "+table, err)
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		_ = closeAll(nil, stmt, conn)
		return nil, database.WrapBackend("select from "+table, err)
	}

	return &Result{conn: conn, stmt: stmt, rows: rows}, nil
}

// Delete deletes the rows with the given key and returns how many were deleted
func (s *Store) Delete(ctx context.Context, table string, key any) (n int64, err error) {
	defer s.metrics.Observe("delete", time.Now(), &err)

	keyColumn, err := s.target(table)
	if err != nil {
		return 0, err
	}
	k, err := bindValue(key)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, s.dialect.Rebind("DELETE FROM "+table+" WHERE "+keyColumn+" = ?"), k)
	if err != nil {
		return 0, database.WrapBackend("delete from "+table, err)
	}
	n, err = res.RowsAffected()
	return n, database.WrapBackend("delete from "+table, err)
}
