package relational

import (
	"database/sql/driver"
	"github.com/ValentinKolb/dFacade/lib/codec"
	"github.com/ValentinKolb/dFacade/lib/database"
	"regexp"
	"strings"
	"time"
)

// Column is one column of a table definition. Type is the type declaration as written
// in CREATE TABLE (e.g. "VARCHAR(64) NOT NULL").
type Column struct {
	Name string
	Type string
}

// Schema is the known layout of a table
type Schema struct {
	Name       string
	Columns    []string // in table order
	PrimaryKey string
}

// Clause is additional SQL appended to the WHERE condition of GetResult.
// SQL uses ? placeholders, the values are passed in Args and always bound.
//
//	relational.Clause{SQL: "AND age > ? ORDER BY name", Args: []any{18}}
type Clause struct {
	SQL  string
	Args []any
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdentifier checks table and column names, they are the only text that is not bound
func validIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return database.Errorf(database.CodeSchema, "invalid %s name %q", kind, name)
	}
	return nil
}

// validTypeDecl rejects type declarations that could end or comment out the statement
func validTypeDecl(column, decl string) error {
	if strings.TrimSpace(decl) == "" {
		return database.Errorf(database.CodeSchema, "column %q has no type", column)
	}
	for _, bad := range []string{";", "--", "/*"} {
		if strings.Contains(decl, bad) {
			return database.Errorf(database.CodeSchema, "type of column %q contains %q", column, bad)
		}
	}
	return nil
}

// buildCreateTable validates the definition and returns the CREATE TABLE statement and the schema.
// Nothing is executed here, so a SchemaError always happens before the database is touched.
func buildCreateTable(columns []Column, table, primaryKey string) (string, Schema, error) {
	if err := validIdentifier("table", table); err != nil {
		return "", Schema{}, err
	}
	if len(columns) == 0 {
		return "", Schema{}, database.Errorf(database.CodeSchema, "table %q has no columns", table)
	}

	schema := Schema{Name: table, Columns: make([]string, 0, len(columns)), PrimaryKey: primaryKey}
	seen := make(map[string]bool, len(columns))

	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(table)
	sb.WriteString(" (")
	for _, col := range columns {
		if err := validIdentifier("column", col.Name); err != nil {
			return "", Schema{}, err
		}
		if err := validTypeDecl(col.Name, col.Type); err != nil {
			return "", Schema{}, err
		}
		if seen[col.Name] {
			return "", Schema{}, database.Errorf(database.CodeSchema, "duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		schema.Columns = append(schema.Columns, col.Name)

		sb.WriteString(col.Name)
		sb.WriteByte(' ')
		sb.WriteString(col.Type)
		sb.WriteString(", ")
	}
	if !seen[primaryKey] {
		return "", Schema{}, database.Errorf(database.CodeSchema, "primary key %q is not a column of table %q", primaryKey, table)
	}
	sb.WriteString("PRIMARY KEY (")
	sb.WriteString(primaryKey)
	sb.WriteString("))")

	return sb.String(), schema, nil
}

// placeholders returns "?, ?, ..." with n entries
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// bindValue prepares a value for binding. Values the driver understands are passed as is,
// everything else is stored in its encoded (JSON) form.
func bindValue(v any) (any, error) {
	switch v.(type) {
	case nil, []byte, time.Time, driver.Valuer:
		return v, nil
	}
	if codec.IsScalar(v) {
		return v, nil
	}
	s, err := codec.Encode(v)
	if err != nil {
		return nil, database.WrapEncoding(err)
	}
	return s, nil
}
