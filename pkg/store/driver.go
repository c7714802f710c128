//go:build !sqlitecgo

package store

import _ "modernc.org/sqlite" // pure-Go SQLite driver

// sqliteDriver names the database/sql driver used by SQLiteStore. The
// default build uses the cgo-free modernc driver; build with -tags sqlitecgo
// to link the mattn driver instead.
const sqliteDriver = "sqlite"
