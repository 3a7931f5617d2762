// ABOUTME: Entry point for authflow-flowchart
// ABOUTME: Writes the reducer-derived state diagram as Mermaid, Markdown or HTML

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/2389/authflow/internal/flowchart"
)

func main() {
	format := flag.String("format", string(flowchart.FormatMarkdown), "output format: mermaid, markdown or html")
	out := flag.String("o", "", "output file (default stdout)")
	flag.Parse()

	if err := run(flowchart.Format(strings.ToLower(*format)), *out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(format flowchart.Format, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := flowchart.Trace().Render(w, format); err != nil {
		return fmt.Errorf("rendering %s: %w", format, err)
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	}
	return nil
}
