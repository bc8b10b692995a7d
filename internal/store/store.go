// Package store persists engine records as JSON values under fixed keys.
package store

import (
	"context"
	"fmt"
)

// Record keys, one per entity class.
const (
	KeyLedger        = "ledger"
	KeyRules         = "rules"
	KeyQuarantine    = "quarantine"
	KeyPredictions   = "predictions"
	KeyCooldown      = "cooldown"
	KeyLastReset     = "last_reset"
	KeyReportMarkers = "report_markers"
	KeySettings      = "settings"
)

// Store is a durable key/value store. Save must replace a key atomically:
// an interrupted Save leaves the previous value intact.
type Store interface {
	// Load decodes the value stored under key into v. found is false and v is
	// left untouched when the key is absent.
	Load(ctx context.Context, key string, v any) (found bool, err error)
	Save(ctx context.Context, key string, v any) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string // file, postgres, sqlite, memory
	Dir        string
	SQLitePath string
	Postgres   ConnectionParams
}

// Open builds the backend named in opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "file":
		return NewFile(opts.Dir)
	case "postgres":
		return NewPostgres(opts.Postgres)
	case "sqlite":
		return NewSQLite(opts.SQLitePath)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
