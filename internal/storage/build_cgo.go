//go:build sqlite_cgo

package storage

// Compiled with -tags "sqlite_cgo sqlite_fts5" and CGO_ENABLED=1.
// Uses github.com/mattn/go-sqlite3; the sqlite_fts5 tag is required for the
// catalog index.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
