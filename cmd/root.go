package cmd

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/config"
	"github.com/ValentinKolb/dFacade/cmd/doc"
	"github.com/ValentinKolb/dFacade/cmd/kv"
	"github.com/ValentinKolb/dFacade/cmd/lock"
	"github.com/ValentinKolb/dFacade/cmd/sql"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dfacade",
		Short: "unified database facade",
		Long: fmt.Sprintf(`dFacade (v%s)

One API for redis, mongodb, mysql, mariadb, postgresql and sqlite,
with in-process read caching and asynchronous operations.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dFacade",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dFacade v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(doc.DocumentCommands)
	RootCmd.AddCommand(sql.RelationalCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(config.ConfigCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// An interrupt cancels the context of the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
