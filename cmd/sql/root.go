package sql

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/relational"
	"github.com/spf13/cobra"
	"os"
	"strings"
)

var (
	store *relational.Store

	// RelationalCommands represents the sql command group
	RelationalCommands = &cobra.Command{
		Use:                "sql",
		Short:              "Perform table operations on a relational database",
		PersistentPreRunE:  setupRelationalStore,
		PersistentPostRunE: closeRelationalStore,
	}

	createTableCmd = &cobra.Command{
		Use:   "create-table [table] [primaryKey] [name:type...]",
		Short: "Create a table if it does not exist",
		Long:  util.WrapString("Create a table from column definitions in the form name:type, e.g. id:INT \"name:VARCHAR(64) NOT NULL\". The columns keep the given order."),
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			columns := make([]relational.Column, 0, len(args)-2)
			for _, def := range args[2:] {
				name, typ, ok := strings.Cut(def, ":")
				if !ok {
					return fmt.Errorf("invalid column definition %q, expected name:type", def)
				}
				columns = append(columns, relational.Column{Name: name, Type: typ})
			}
			return store.CreateTable(cmd.Context(), columns, args[0], args[1])
		},
	}

	insertCmd = &cobra.Command{
		Use:   "insert [table] [values...]",
		Short: "Insert a row",
		Long:  util.WrapString("Insert a row into a table. The values are given in column order, the columns of an existing table are set with --columns."),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]any, len(args)-1)
			for i, v := range args[1:] {
				values[i] = v
			}
			return store.Insert(cmd.Context(), args[0], values...)
		},
	}

	queryCmd = &cobra.Command{
		Use:   "query [table] [key]",
		Short: "Print the rows with the given key as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := store.GetResult(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			rows, err := res.All()
			if err != nil {
				return err
			}
			return util.PrintJSON(os.Stdout, rows)
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update [table] [key] [column] [value]",
		Short: "Set a column of the rows with the given key",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := store.Update(cmd.Context(), args[0], args[1], args[2], args[3])
			if err != nil {
				return err
			}
			fmt.Printf("updated=%d\n", n)
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [table] [key]",
		Short: "Delete the rows with the given key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := store.Delete(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("deleted=%d\n", n)
			return nil
		},
	}
)

func init() {
	RelationalCommands.AddCommand(createTableCmd)
	RelationalCommands.AddCommand(insertCmd)
	RelationalCommands.AddCommand(queryCmd)
	RelationalCommands.AddCommand(updateCmd)
	RelationalCommands.AddCommand(delCmd)

	util.SetupConfigFlags(RelationalCommands)

	key := "backend"
	RelationalCommands.PersistentFlags().String(key, string(database.BackendSQLite), util.WrapString("Relational backend to use (mysql, mariadb, postgresql, sqlite)"))

	key = "database"
	RelationalCommands.PersistentFlags().String(key, "dfacade.db", util.WrapString("Name of the database on the server, for sqlite the path of the database file"))

	key = "key-column"
	RelationalCommands.PersistentFlags().String(key, relational.DefaultKeyColumn, util.WrapString("Column used as key for tables without a known primary key"))

	key = "columns"
	RelationalCommands.PersistentFlags().StringSlice(key, nil, util.WrapString("Columns of an existing table in table order (comma separated), the first one is taken as primary key"))
}

func setupRelationalStore(cmd *cobra.Command, args []string) error {
	reg, err := util.Setup(cmd)
	if err != nil {
		return err
	}

	backend, err := database.ParseBackendType(util.V.GetString("backend"))
	if err != nil {
		return err
	}

	store, err = relational.Open(cmd.Context(), reg, backend, util.V.GetString("database"),
		relational.WithKeyColumn(util.V.GetString("key-column")),
	)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}

	// the schema of tables created in earlier runs is not known to the store
	if columns := util.V.GetStringSlice("columns"); len(columns) > 0 && len(args) > 0 {
		if err := store.RegisterTable(args[0], columns, columns[0]); err != nil {
			return err
		}
	}
	return nil
}

func closeRelationalStore(_ *cobra.Command, _ []string) error {
	if store == nil {
		return nil
	}
	util.WriteMetrics(store.Metrics())
	return store.Close()
}
