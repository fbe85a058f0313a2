package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/ui"
	"github.com/restomatic/restomatic-go/runtime/client"
)

// confirm asks a yes/no question on the terminal.
var confirm = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *rootOptions) *cobra.Command {
	var (
		where string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete rows matching a JSON predicate",
		Long: `Delete the rows of a table that match --where. Without --where every
row is deleted, which asks for confirmation unless --yes is given.`,
		Example: `  restomatic delete notes --where '["id", "eq", 3]'
  restomatic delete notes --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]

			var predicate any
			if where != "" {
				var err error
				if predicate, err = parseJSONFlag("where", where); err != nil {
					return err
				}
			} else if !yes {
				ok, err := confirm(fmt.Sprintf("Delete every row in %s?", table))
				if err != nil {
					return err
				}
				if !ok {
					ui.PrintWarning("delete cancelled")
					return nil
				}
			}

			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			q := db.Delete(table).WithContext(cmd.Context())
			if predicate != nil {
				q = q.Where(predicate)
			}
			res, err := q.Run()
			if err != nil {
				return err
			}
			if err := db.Commit(client.NoChangesOK()); err != nil {
				return err
			}
			ui.PrintSuccess("deleted %d row(s)", res.RowsAffected())
			return nil
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON predicate tree")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation for a full-table delete")
	return cmd
}
