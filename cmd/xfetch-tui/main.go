// Command xfetch-tui is a terminal interface for an xfetch server: browse
// download history, resolve and download posts, watch thumbnail jobs, and
// edit settings.
package main

import (
	"fmt"
	"os"

	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/config"
	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/ui"
)

func main() {
	cfg := config.Load()

	app, err := ui.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing TUI: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
