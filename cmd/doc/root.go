package doc

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/ValentinKolb/dFacade/lib/document"
	"github.com/ValentinKolb/dFacade/lib/document/mongo"
	"github.com/spf13/cobra"
)

var (
	store *document.Store

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:                "doc",
		Short:              "Perform document operations on mongodb",
		PersistentPreRunE:  setupDocumentStore,
		PersistentPostRunE: closeDocumentStore,
	}
)

func init() {
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(listCmd)
	DocumentCommands.AddCommand(countCmd)
	DocumentCommands.AddCommand(existsCmd)
	DocumentCommands.AddCommand(insertCmd)
	DocumentCommands.AddCommand(replaceCmd)
	DocumentCommands.AddCommand(updateCmd)
	DocumentCommands.AddCommand(delCmd)
	DocumentCommands.AddCommand(renameCmd)
	DocumentCommands.AddCommand(dropCmd)

	util.SetupConfigFlags(DocumentCommands)

	key := "database"
	DocumentCommands.PersistentFlags().String(key, "dfacade", util.WrapString("Name of the mongodb database"))

	key = "id-field"
	DocumentCommands.PersistentFlags().String(key, document.DefaultIdentifierField, util.WrapString("Field of the document that holds the key"))
}

func setupDocumentStore(cmd *cobra.Command, _ []string) error {
	reg, err := util.Setup(cmd)
	if err != nil {
		return err
	}

	store, err = mongo.Open(cmd.Context(), reg, util.V.GetString("database"),
		document.WithIdentifierField(util.V.GetString("id-field")),
	)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	return nil
}

func closeDocumentStore(_ *cobra.Command, _ []string) error {
	if store == nil {
		return nil
	}
	util.WriteMetrics(store.Metrics())
	return store.Close()
}
