package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/ui"
	"github.com/restomatic/restomatic-go/query/ast"
	"github.com/restomatic/restomatic-go/runtime/client"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(opts *rootOptions) *cobra.Command {
	var (
		where   string
		orderBy []string
		limit   int
		offset  int
		columns []string
		count   bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Select rows from a table",
		Long: `Select rows from a table and print them as a table or as JSON.

The --where value is a JSON predicate tree, for example:
  ["id", "gte", 2]
  {"and": [["id", "gte", 2], ["description", "like", "%test%"]]}

--order-by takes a column, optionally suffixed with :asc or :desc, and may
be repeated.`,
		Example: `  restomatic query notes --where '["id", "lte", 10]' --order-by id:desc --limit 5
  restomatic query notes --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			var q *client.Query
			if len(columns) > 0 {
				q = db.Select(args[0], columns...)
			} else {
				q = db.SelectAll(args[0])
			}
			q = q.WithContext(cmd.Context())

			if where != "" {
				predicate, err := parseJSONFlag("where", where)
				if err != nil {
					return err
				}
				q = q.Where(predicate)
			}
			for _, o := range orderBy {
				q = q.OrderBy(parseOrderFlag(o))
			}
			if cmd.Flags().Changed("limit") {
				q = q.Limit(limit)
			}
			if cmd.Flags().Changed("offset") {
				q = q.Offset(offset)
			}
			if count {
				q = q.Count()
				v, err := q.Scalar()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.FormatCell(v))
				return nil
			}

			if asJSON {
				recs, err := q.AllMapped()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}

			res, err := q.Run()
			if err != nil {
				return err
			}
			rows, err := q.All()
			if err != nil {
				return err
			}
			data := make([][]any, len(rows))
			for i, row := range rows {
				data[i] = row
			}
			if err := ui.PrintTable(res.Columns(), data); err != nil {
				return err
			}
			ui.PrintInfo("%d row(s)", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON predicate tree")
	cmd.Flags().StringArrayVarP(&orderBy, "order-by", "o", nil, "sort column, optionally column:asc or column:desc")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of rows to skip")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to select (default all)")
	cmd.Flags().BoolVar(&count, "count", false, "print the number of matching rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON objects")

	return cmd
}

func parseJSONFlag(name, raw string) (any, error) {
	v, err := ast.DecodeJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return v, nil
}

// parseOrderFlag turns "column" or "column:direction" into an order spec.
func parseOrderFlag(raw string) any {
	column, direction, found := strings.Cut(raw, ":")
	if !found {
		return raw
	}
	return map[string]any{"column": column, "direction": direction}
}
