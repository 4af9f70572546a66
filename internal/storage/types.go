// Package storage provides the durable schedule store used by the bot.
//
// Drivers:
//   - "file": one JSON document replaced atomically on every write (default)
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
package storage

import (
	"errors"
	"time"
)

// ErrCorrupt means durable state exists but cannot be read. Callers must treat it
// as fatal instead of starting with an empty schedule set.
var ErrCorrupt = errors.New("schedule store is corrupt")

var errClosed = errors.New("schedule store closed")

// Config configures storage.
//
// If Driver is empty it defaults to "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
