// Package bunstore implements store.Store using the Bun ORM. One code path
// serves PostgreSQL, SQLite and MySQL; only the embedded DDL differs per
// dialect.
//
// Use Open to build a *bun.DB from a driver name and DSN, or pass your own
// handle to New:
//
//	db, err := bunstore.Open("sqlite", "file:vmjobs.db?_journal_mode=WAL")
//	store := bunstore.New(db, bunstore.WithOwnedDB())
//	store.Migrate(ctx)
//
// Status updates are compare-and-swap on the current status: the record is
// read, the update applied in Go, and written back only if the status is
// unchanged. Every accepted transition changes the status, so a lost race
// is always detected and retried against the fresh record.
package bunstore
