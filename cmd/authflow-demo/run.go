// ABOUTME: run subcommand driving a scripted auth lifecycle end to end
// ABOUTME: Wires config, logging, the core, a memory provider, JWT sessions and the journal

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/authflow/internal/auth"
	"github.com/2389/authflow/internal/config"
	"github.com/2389/authflow/internal/dedupe"
	"github.com/2389/authflow/internal/journal"
	"github.com/2389/authflow/internal/lifecycle"
	"github.com/2389/authflow/internal/logging"
	"github.com/2389/authflow/internal/provider"
	"github.com/2389/authflow/internal/store"
)

// profile is the application context the demo loads for a signed-in user.
type profile struct {
	Email  string
	Plan   string
	Visits int
}

// view replaces AUTH_READY in the projection the demo prints.
type view struct {
	Greeting string
}

type demoCore = lifecycle.Core[profile, view]

func runDemo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file")
	loadDelay := fs.Duration("load-delay", 150*time.Millisecond, "simulated context load latency")
	failLoad := fs.Bool("fail-load", false, "make the first context load fail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printBanner()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.Setup(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", *configPath)

	secret := []byte(cfg.Provider.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generating signing key: %w", err)
		}
	}
	verifier := auth.NewJWTVerifier(secret)

	runID := uuid.New().String()
	green.Print("    ▶ ")
	fmt.Printf("Run:     %s\n", runID)

	var observer func(lifecycle.Transition[profile])
	if cfg.Journal.Enabled {
		path := expandHome(cfg.Journal.Path)
		st, err := store.NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer st.Close()
		st.WithLogger(logger)

		j := journal.New(st, journal.Options{Logger: logger})
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := j.Close(flushCtx); err != nil {
				logger.Warn("journal flush incomplete", "error", err)
			}
		}()
		observer = journal.Observer[profile](j, runID)

		green.Print("    ▶ ")
		fmt.Printf("Journal: %s\n", path)
	}
	fmt.Println()

	core := lifecycle.New(lifecycle.Options[profile, view]{
		RunID:       runID,
		Timeouts:    cfg.LifecycleTimeouts(),
		Logger:      logger,
		Observer:    observer,
		LoadContext: profileLoader(verifier, *loadDelay, *failLoad),
		InitializeApp: func(ctx context.Context, snap lifecycle.Snapshot[profile]) error {
			return sleep(ctx, *loadDelay/2)
		},
		DeriveAppState: func(r *lifecycle.Ready[profile]) view {
			if r.Context == nil || r.Context.Email == "" {
				return view{Greeting: "welcome"}
			}
			return view{Greeting: "welcome back, " + r.Context.Email}
		},
	})
	defer core.Close()

	unsubscribe := core.Subscribe(printTransition)
	defer unsubscribe()

	source := provider.NewMemorySource(nil)
	window := dedupe.New(cfg.Provider.DedupeTTL, cfg.Provider.DedupeSize, cfg.Provider.DedupeTTL)
	defer window.Close()

	detach := provider.Attach(ctx, core, source, provider.Options{
		GetSessionTimeout: cfg.Provider.GetSessionTimeout,
		Dedupe:            window,
		Logger:            logger,
	})
	defer detach()

	return script(ctx, core, source, verifier, logger)
}

// script walks the core through a representative session.
func script(ctx context.Context, core *demoCore, source *provider.MemorySource, verifier *auth.JWTVerifier, logger *slog.Logger) error {
	step := color.New(color.FgYellow)

	if err := waitFor(ctx, core, lifecycle.StatusSignedOut); err != nil {
		return err
	}

	step.Println("\n  → user opens the sign-in form")
	core.BeginAuth()

	ada, err := verifier.Issue("ada", "ada@example.com", time.Hour)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	step.Println("  → provider reports SIGNED_IN")
	source.SignIn(ada)
	if err := waitFor(ctx, core, lifecycle.StatusReady, lifecycle.StatusErrorContext); err != nil {
		return err
	}
	if core.Snapshot().Status() == lifecycle.StatusErrorContext {
		step.Println("  → retrying after a failed context load")
		source.SignIn(ada)
		if err := waitFor(ctx, core, lifecycle.StatusReady); err != nil {
			return err
		}
	}

	step.Println("  → app bumps the visit counter")
	err = core.UpdateContext(ctx, func(_ context.Context, p *profile) (*profile, error) {
		next := *p
		next.Visits++
		return &next, nil
	})
	if err != nil {
		return fmt.Errorf("updating context: %w", err)
	}

	refreshed, err := verifier.Issue("ada", "ada@example.com", time.Hour)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	sub, err := verifier.Verify(refreshed.Token)
	if err != nil {
		return fmt.Errorf("verifying refreshed token: %w", err)
	}
	if sub != ada.Subject {
		return fmt.Errorf("refreshed token is for %s, want %s", sub, ada.Subject)
	}
	step.Println("  → provider reports TOKEN_REFRESHED")
	source.Refresh(refreshed)

	step.Println("  → app reloads its context")
	if err := core.RefreshContext(ctx, nil); err != nil {
		logger.Warn("refresh failed", "error", err)
	}

	grace, err := verifier.Issue("grace", "grace@example.com", time.Hour)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	step.Println("  → a different user signs in")
	source.SignIn(grace)
	err = waitUntil(ctx, core, "grace ready", func(s lifecycle.State[profile]) bool {
		sess := lifecycle.SessionOf(s)
		return s.Status() == lifecycle.StatusReady && sess != nil && sess.UserID() == "grace"
	})
	if err != nil {
		return err
	}

	step.Println("  → provider reports SIGNED_OUT")
	source.SignOut()
	if err := waitFor(ctx, core, lifecycle.StatusSignedOut); err != nil {
		return err
	}

	color.New(color.FgGreen).Println("\n  ✓ done")
	return nil
}

func printTransition(s lifecycle.State[profile], app lifecycle.AppState[profile, view]) {
	status := color.New(color.FgCyan)
	if s.Status().IsError() {
		status = color.New(color.FgRed)
	}
	status.Printf("    %-24s", s.Status())

	gray := color.New(color.FgHiBlack)
	if s.Status().HasSession() {
		gray.Printf(" user=%s", app.Session().UserID())
	}
	if c := app.Context(); c != nil {
		gray.Printf(" plan=%s visits=%d", c.Plan, c.Visits)
	}
	if app.Derived {
		gray.Printf(" %q", app.Custom.Greeting)
	}
	if err := lifecycle.ErrOf(s); err != nil {
		gray.Printf(" error=%v", err)
	}
	fmt.Println()
}

// profileLoader builds the demo LoadContext. It re-verifies the token carried
// in ctx before producing a profile; with failFirst the first call fails.
func profileLoader(verifier *auth.JWTVerifier, delay time.Duration, failFirst bool) func(context.Context, lifecycle.Session) (*profile, error) {
	var loads atomic.Int32
	return func(ctx context.Context, _ lifecycle.Session) (*profile, error) {
		if n := loads.Add(1); failFirst && n == 1 {
			return nil, errors.New("profile service unavailable")
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		ts := auth.FromContext(ctx)
		if ts == nil {
			return nil, errors.New("session is not a token session")
		}
		if ts.Expired(time.Now()) {
			return nil, auth.ErrExpiredToken
		}
		verified, err := verifier.Session(ts.Token)
		if err != nil {
			return nil, fmt.Errorf("verifying session: %w", err)
		}
		return &profile{Email: verified.Email, Plan: "free"}, nil
	}
}

// waitFor blocks until the core reaches one of the given statuses.
func waitFor(ctx context.Context, core *demoCore, want ...lifecycle.Status) error {
	return waitUntil(ctx, core, fmt.Sprint(want), func(s lifecycle.State[profile]) bool {
		return slices.Contains(want, s.Status())
	})
}

// waitUntil blocks until match accepts the core state.
func waitUntil(ctx context.Context, core *demoCore, desc string, match func(lifecycle.State[profile]) bool) error {
	reached := make(chan struct{}, 1)
	unsubscribe := core.Subscribe(func(s lifecycle.State[profile], _ lifecycle.AppState[profile, view]) {
		if match(s) {
			select {
			case reached <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if match(core.Snapshot()) {
		return nil
	}

	timer := time.NewTimer(time.Minute)
	defer timer.Stop()

	select {
	case <-reached:
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out waiting for %s (at %s)", desc, core.Snapshot().Status())
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
