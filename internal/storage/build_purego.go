//go:build !sqlite_cgo

package storage

// Default build: pure Go SQLite (modernc.org/sqlite), no C toolchain
// needed. FTS5 is compiled in.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
