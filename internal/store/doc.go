// Package store persists the transition journal using SQLite.
//
// # Architecture
//
// JournalStore is the only interface. SQLiteStore implements it on
// modernc.org/sqlite (pure Go, no cgo) in WAL mode; MockStore implements it
// in memory for tests.
//
// The journal is append-only. It records what a lifecycle Core did so runs
// can be inspected afterwards; nothing in it is ever loaded back into a Core.
//
// # Data Model
//
//   - TransitionRecord: one applied event, keyed by ID and unique per (run, seq)
//   - RunSummary: per-run aggregate for listing
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/authflow/journal.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	records, err := s.ListTransitions(ctx, store.TransitionFilter{RunID: &runID})
package store
