package commands

import (
	"errors"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/config"
	"github.com/restomatic/restomatic-go/cli/internal/ui"
)

// NewExecCommand creates the exec command.
func NewExecCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [sql] [args...]",
		Short: "Execute a raw SQL statement",
		Long: `Execute one raw SQL statement against the configured database.
Extra arguments are bound to the statement's placeholders. With --file the
statement is read from a file instead.`,
		Example: `  restomatic exec "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)"
  restomatic exec "UPDATE notes SET body = ? WHERE id = ?" hello 1
  restomatic exec --file schema.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stmt string
			switch {
			case file != "":
				content, err := afero.ReadFile(config.AppFs, file)
				if err != nil {
					return err
				}
				stmt = string(content)
			case len(args) > 0:
				stmt, args = args[0], args[1:]
			}
			if strings.TrimSpace(stmt) == "" {
				return errors.New("no SQL statement given")
			}

			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			bind := make([]interface{}, len(args))
			for i, a := range args {
				bind[i] = a
			}
			res, err := db.ExecuteContext(cmd.Context(), stmt, bind...)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil {
				ui.PrintSuccess("statement executed, %d row(s) affected", n)
			} else {
				ui.PrintSuccess("statement executed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the statement from a file")
	return cmd
}
