package doc

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [collection] [key]",
		Short: "Print a document as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := store.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return util.PrintJSON(os.Stdout, doc)
		},
	}

	listCmd = &cobra.Command{
		Use:   "list [collection]",
		Short: "Print all documents of a collection as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := store.GetAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return util.PrintJSON(os.Stdout, docs)
		},
	}

	countCmd = &cobra.Command{
		Use:   "count [collection]",
		Short: "Print the number of documents in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := store.Count(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("count=%d\n", n)
			return nil
		},
	}

	existsCmd = &cobra.Command{
		Use:   "exists [collection] [key]",
		Short: "Check if a document exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := store.Exists(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("exists=%v\n", exists)
			return nil
		},
	}

	insertCmd = &cobra.Command{
		Use:   "insert [collection] [key] [json]",
		Short: "Insert a document",
		Long:  util.WrapString("Insert a document given as a JSON object. The key is written to the identifier field, a value for that field in the JSON is overwritten."),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := util.ParseJSONObject(args[2])
			if err != nil {
				return err
			}
			return store.Insert(cmd.Context(), args[0], args[1], doc)
		},
	}

	replaceCmd = &cobra.Command{
		Use:   "replace [collection] [key] [json]",
		Short: "Replace the document with the given key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := util.ParseJSONObject(args[2])
			if err != nil {
				return err
			}
			return store.Replace(cmd.Context(), args[0], args[1], doc)
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update [collection] [key] [json]",
		Short: "Set the given fields of a document and print the result",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := util.ParseJSONObject(args[2])
			if err != nil {
				return err
			}
			doc, err := store.Update(cmd.Context(), args[0], args[1], partial)
			if err != nil {
				return err
			}
			return util.PrintJSON(os.Stdout, doc)
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [collection] [key]",
		Short: "Delete documents by key",
		Long:  util.WrapString("Delete the document with the given key. With --all every document carrying the key is deleted."),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all, _ := cmd.Flags().GetBool("all"); all {
				n, err := store.DeleteMany(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("deleted=%d\n", n)
				return nil
			}
			if err := store.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("deleted=1\n")
			return nil
		},
	}

	renameCmd = &cobra.Command{
		Use:   "rename [collection] [newName]",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.Rename(cmd.Context(), args[0], args[1])
		},
	}

	dropCmd = &cobra.Command{
		Use:   "drop [collection]",
		Short: "Drop a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.Drop(cmd.Context(), args[0])
		},
	}
)

func init() {
	delCmd.Flags().Bool("all", false, "Delete every document with the key")
}
