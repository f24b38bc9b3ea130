package config

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/spf13/cobra"
)

var (
	// ConfigCommands represents the config command group
	ConfigCommands = &cobra.Command{
		Use:   "config",
		Short: "Inspect the backend configuration",
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the configured backend credentials (passwords masked)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := util.Setup(cmd)
			if err != nil {
				return err
			}
			fmt.Print(reg.String())
			return nil
		},
	}
)

func init() {
	ConfigCommands.AddCommand(showCmd)
	util.SetupConfigFlags(ConfigCommands)
}
