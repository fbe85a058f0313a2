package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/ui"
	"github.com/restomatic/restomatic-go/cli/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			label := ui.SecondaryStyle.Width(12)
			for _, f := range version.Get().Fields() {
				fmt.Fprintln(cmd.OutOrStdout(), lipgloss.JoinHorizontal(lipgloss.Top, label.Render(f[0]+":"), f[1]))
			}
		},
	}
}
