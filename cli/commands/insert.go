package commands

import (
	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/ui"
)

// NewInsertCommand creates the insert command.
func NewInsertCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <json>",
		Short: "Insert rows from a JSON object or array of objects",
		Example: `  restomatic insert notes '{"body": "hello"}'
  restomatic insert notes '[{"body": "a"}, {"body": "b"}]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := parseJSONFlag("json", args[1])
			if err != nil {
				return err
			}

			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := db.Insert(args[0]).WithContext(cmd.Context()).ValuesMapped(rows).Run()
			if err != nil {
				return err
			}
			if err := db.Commit(); err != nil {
				return err
			}
			ui.PrintSuccess("inserted %d row(s), ids %v", res.RowsAffected(), res.RowIDs())
			return nil
		},
	}
}
