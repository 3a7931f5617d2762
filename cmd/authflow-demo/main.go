// ABOUTME: Entry point for authflow-demo
// ABOUTME: Drives a scripted auth lifecycle and inspects the transition journal

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
)

// Version is set at build time.
var version = "dev"

const banner = `
              _   _      __ _
   __ _ _   _| |_| |__  / _| | _____      __
  / _' | | | | __| '_ \| |_| |/ _ \ \ /\ / /
 | (_| | |_| | |_| | | |  _| | (_) \ V  V /
  \__,_|\__,_|\__|_| |_|_| |_|\___/ \_/\_/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: authflow-demo <command> [flags]")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  run       Drive a scripted sign-in, refresh and sign-out")
		fmt.Println("  init      Write a default config file")
		fmt.Println("  journal   List recorded transitions")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runDemo(ctx, os.Args[2:])
	case "init":
		err = runInit(os.Args[2:])
	case "journal":
		err = runJournal(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// defaultJournalPath returns $XDG_DATA_HOME/authflow/journal.db, falling back
// to ~/.local/share/authflow/journal.db.
func defaultJournalPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "journal.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "authflow", "journal.db")
}
