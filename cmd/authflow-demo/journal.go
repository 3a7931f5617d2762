// ABOUTME: journal subcommand listing runs and transitions from the SQLite journal
// ABOUTME: Filters by run, user and status with a tabular colored output

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/authflow/internal/config"
	"github.com/2389/authflow/internal/store"
)

func runJournal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file")
	dbPath := fs.String("db", "", "journal database (default from config)")
	runID := fs.String("run", "", "show the transitions of this run")
	userID := fs.String("user", "", "only transitions of this user")
	status := fs.String("status", "", "only transitions landing on this status")
	skipNoop := fs.Bool("skip-noop", false, "hide no-op applications")
	limit := fs.Int("limit", 100, "maximum transitions to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *dbPath
	if path == "" {
		cfg, err := config.LoadOrDefault(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.Journal.Path
		if path == "" {
			path = defaultJournalPath()
		}
	}
	path = expandHome(path)

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal not found at %s: %w", path, err)
	}

	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer st.Close()

	if *runID == "" && *userID == "" && *status == "" {
		return listRuns(ctx, st)
	}

	filter := store.TransitionFilter{SkipNoop: *skipNoop, Limit: *limit}
	if *runID != "" {
		filter.RunID = runID
	}
	if *userID != "" {
		filter.UserID = userID
	}
	if *status != "" {
		filter.ToStatus = status
	}
	return listTransitions(ctx, st, filter)
}

func listRuns(ctx context.Context, st store.JournalStore) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("%d run(s)\n\n", len(runs))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTRANSITIONS\tFIRST\tLAST\tFINAL STATUS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.RunID, r.Transitions,
			r.FirstAt.Local().Format(time.DateTime),
			r.LastAt.Local().Format(time.DateTime),
			r.LastStatus,
		)
	}
	return w.Flush()
}

func listTransitions(ctx context.Context, st store.JournalStore, filter store.TransitionFilter) error {
	total, err := st.CountTransitions(ctx, filter)
	if err != nil {
		return fmt.Errorf("counting transitions: %w", err)
	}
	records, err := st.ListTransitions(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing transitions: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("%d of %d transition(s)\n\n", len(records), total)

	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tAT\tFROM\tEVENT\tTO\tUSER\tGEN")
	for _, r := range records {
		to := r.ToStatus
		switch {
		case r.Error != "":
			to = red.Sprint(to)
		case r.Noop:
			to = gray.Sprint(to + " (no-op)")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.Seq,
			r.CreatedAt.Local().Format("15:04:05.000"),
			r.FromStatus, r.Event, to, r.UserID, r.Generation,
		)
		if r.Error != "" {
			fmt.Fprintf(w, "\t\t\t\t%s\t\t\n", red.Sprint("error: "+r.Error))
		}
	}
	return w.Flush()
}
