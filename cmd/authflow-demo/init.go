// ABOUTME: init subcommand writing a default configuration file
// ABOUTME: Refuses to overwrite an existing file unless -force is given

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/authflow/internal/config"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("config", config.DefaultPath(), "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	journalOn := fs.Bool("journal", false, "enable the transition journal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *path)
	}

	if err := os.MkdirAll(filepath.Dir(*path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(*path, []byte(defaultConfigYAML(*journalOn)), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Config written to %s\n", *path)
	return nil
}

func defaultConfigYAML(journalOn bool) string {
	var b strings.Builder
	b.WriteString("# authflow configuration\n")
	b.WriteString("# Generated by authflow-demo init\n\n")

	b.WriteString("lifecycle:\n")
	fmt.Fprintf(&b, "  auth_timeout: %q\n", config.DefaultAuthTimeout.String())
	fmt.Fprintf(&b, "  load_context_timeout: %q\n", config.DefaultLoadContextTimeout.String())
	fmt.Fprintf(&b, "  initialize_timeout: %q\n\n", config.DefaultInitializeTimeout.String())

	b.WriteString("provider:\n")
	fmt.Fprintf(&b, "  get_session_timeout: %q\n", config.DefaultGetSessionTimeout.String())
	fmt.Fprintf(&b, "  dedupe_ttl: %q\n", config.DefaultDedupeTTL.String())
	fmt.Fprintf(&b, "  dedupe_size: %d\n", config.DefaultDedupeSize)
	b.WriteString("  jwt_secret: \"${AUTHFLOW_JWT_SECRET}\"\n\n")

	b.WriteString("journal:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", journalOn)
	fmt.Fprintf(&b, "  path: %q\n\n", defaultJournalPath())

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", config.DefaultLogLevel)
	fmt.Fprintf(&b, "  format: %q\n", config.DefaultLogFormat)
	return b.String()
}
