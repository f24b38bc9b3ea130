package relational

import (
	"database/sql"
	"errors"
	"sync"
)

// Result is a live cursor returned by GetResult. It holds a pooled connection, the
// prepared statement and the rows. Close releases all three, the caller must call it
// on every path:
//
//	res, err := store.GetResult(ctx, "users", 1)
//	if err != nil {
//		return err
//	}
//	defer res.Close()
//	for res.Next() {
//		...
//	}
//	return res.Err()
type Result struct {
	conn *sql.Conn
	stmt *sql.Stmt
	rows *sql.Rows

	once     sync.Once
	closeErr error
}

// Next prepares the next row for Scan or Map
func (r *Result) Next() bool {
	return r.rows.Next()
}

// Scan copies the columns of the current row into dest
func (r *Result) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Columns returns the column names of the result
func (r *Result) Columns() ([]string, error) {
	return r.rows.Columns()
}

// Err returns the error encountered during iteration, if any
func (r *Result) Err() error {
	return r.rows.Err()
}

// Rows exposes the underlying rows. They are closed by Close.
func (r *Result) Rows() *sql.Rows {
	return r.rows
}

// Map returns the current row as column name -> value. Text returned as []byte is converted to string.
func (r *Result) Map() (map[string]any, error) {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = values[i]
	}
	return row, nil
}

// All reads every remaining row with Map and closes the result
func (r *Result) All() (rows []map[string]any, err error) {
	defer func() {
		err = errors.Join(err, r.Close())
	}()

	rows = make([]map[string]any, 0)
	for r.rows.Next() {
		row, err := r.Map()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, r.rows.Err()
}

// Close releases rows, statement and connection. It is safe to call Close more than once.
func (r *Result) Close() error {
	r.once.Do(func() {
		r.closeErr = closeAll(r.rows, r.stmt, r.conn)
	})
	return r.closeErr
}

// closeAll closes the non-nil handles in order and joins their errors
func closeAll(rows *sql.Rows, stmt *sql.Stmt, conn *sql.Conn) error {
	var errs []error
	if rows != nil {
		errs = append(errs, rows.Close())
	}
	if stmt != nil {
		errs = append(errs, stmt.Close())
	}
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}
