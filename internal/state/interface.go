// Package state provides SQLite-based persistence for the router.
package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/intentrouter/internal/cache"
)

// RunStore handles run history persistence.
type RunStore interface {
	SaveRun(r *RunRecord) error
	GetRun(id string) (*RunRecord, error)
	ListRuns(limit int) ([]RunRecord, error)
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes the focused store interfaces implemented by DB.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	CacheStore() *CacheStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore  = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ RunStore    = (*DB)(nil)
	_ cache.Store = (*CacheStore)(nil)
)
