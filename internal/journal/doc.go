// Package journal records lifecycle transitions into a store.JournalStore.
//
// A Journal is fed by lifecycle.Options.Observer and writes asynchronously so
// a slow disk never holds up a dispatch. When the buffer is full, records are
// dropped and counted rather than blocking the core:
//
//	j := journal.New(st, journal.Options{Logger: logger})
//	defer j.Close(ctx)
//
//	core := lifecycle.New(lifecycle.Options[Profile, View]{
//		RunID:    runID,
//		Observer: journal.Observer[Profile](j, runID),
//	})
package journal
