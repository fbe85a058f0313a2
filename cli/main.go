package main

import (
	"os"

	"github.com/restomatic/restomatic-go/cli/commands"
	"github.com/restomatic/restomatic-go/cli/internal/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
