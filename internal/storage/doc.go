// Package storage holds the documentation corpus: indexed libraries, their
// versions, and the snippets served for each version.
//
// # Database Schema
//
// Tables:
//   - libraries: one row per (owner, name, version) with catalog metadata
//   - snippets: documentation snippets in corpus order, keyed per library
//   - libraries_fts: FTS5 index over library names and descriptions
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.doccontext/corpus.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	snippets, err := store.FetchCandidates(ctx, types.MustParseLibraryID("tiangolo/fastapi"))
//	if errors.Is(err, storage.ErrNotFound) {
//	    // library is not indexed
//	}
//
// A library identifier without a version resolves to the highest indexed
// semantic version. MemoryStore offers the same contract without SQLite and
// is used as a test fixture.
//
// # Build Tags
//
// The default build uses the pure Go modernc.org/sqlite driver. Build with
// -tags "sqlite_cgo sqlite_fts5" to use mattn/go-sqlite3 instead.
package storage
