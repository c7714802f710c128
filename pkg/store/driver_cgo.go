//go:build sqlitecgo

package store

import _ "github.com/mattn/go-sqlite3" // cgo SQLite driver

// sqliteDriver names the database/sql driver used by SQLiteStore when the
// sqlitecgo build tag selects the mattn driver.
const sqliteDriver = "sqlite3"
