/*
Package relational implements the relational facade for MySQL, MariaDB, PostgreSQL and SQLite.

Statements are built from validated identifiers and bound parameters only:

	store, err := relational.OpenSQLite(ctx, "data.db")
	...
	err = store.CreateTable(ctx, []relational.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
	}, "users", "id")
	err = store.Insert(ctx, "users", 1, "Ann")

	res, err := store.GetResult(ctx, "users", 1)
	if err != nil {
		return err
	}
	defer res.Close()

Drivers: go-sql-driver/mysql (MySQL, MariaDB), pgx via pgxpool (PostgreSQL), modernc.org/sqlite (SQLite).
*/
package relational
