// Command export writes the download history to a backup archive, optionally
// password-protected.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	dest := flag.String("dest", "", "Destination file for the archive (required)")
	configPath := flag.String("config", "", "Path to config file")
	encrypt := flag.Bool("encrypt", false, "Encrypt the archive with a password")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xfetch-export %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if *dest == "" {
		fmt.Fprintln(os.Stderr, "Error: --dest flag is required")
		fmt.Fprintln(os.Stderr, "Usage: xfetch-export --dest /path/to/backup.json [--encrypt]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	var password string
	if *encrypt {
		password, err = readPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	db, err := history.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database %s: %v\n", cfg.Database.Path, err)
		os.Exit(1)
	}
	defer db.Close()

	repo := history.NewRepository(db, logger)
	svc := service.NewBackupService(repo, logger)

	ctx := context.Background()
	data, err := svc.Export(ctx, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*dest, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write archive: %v\n", err)
		os.Exit(1)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		count = 0
	}

	fmt.Println()
	fmt.Println("Export Complete!")
	fmt.Println("----------------")
	fmt.Printf("Destination: %s\n", *dest)
	fmt.Printf("Records: %d\n", count)
	fmt.Printf("Size: %.2f KB\n", float64(len(data))/1024)
	if password != "" {
		fmt.Println("Encrypted: yes")
	}
}

// readPassword prompts twice on the terminal and requires both entries to
// match.
func readPassword() (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("stdin is not a terminal; cannot prompt for password")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(first), nil
}
