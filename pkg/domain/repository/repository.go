package repository

import (
	"context"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// AssetStore persists at most one image per dedup key
type AssetStore interface {
	// Lookup returns the stored asset for a domain, if any
	Lookup(domain string) (*entity.Asset, bool, error)
	// Save writes the download unless an asset already exists, in which case
	// it returns entity.ErrAlreadyAcquired alongside the existing asset
	Save(domain string, download *entity.Download) (*entity.Asset, error)
	// Keys lists the dedup keys currently holding an asset
	Keys() ([]string, error)
}

// DomainFilter provides a probabilistic membership index
type DomainFilter interface {
	// Contains checks if a domain may have been seen before
	Contains(domain string) bool
	// Add adds a domain to the filter
	Add(domain string)
}

// Ledger remembers terminal outcomes across runs
type Ledger interface {
	// Get returns the entry for a domain
	Get(ctx context.Context, domain string) (*entity.LedgerEntry, bool, error)
	// Put inserts or replaces an entry
	Put(ctx context.Context, entry *entity.LedgerEntry) error
	// Reset removes entries; when onlyNotFound is set only no_asset_found
	// sentinels are removed
	Reset(ctx context.Context, onlyNotFound bool) (int64, error)
	// Close releases the underlying database
	Close() error
}

// ResultWriter writes per-domain results
type ResultWriter interface {
	// Write writes a single result
	Write(result *entity.Result) error
	// Flush ensures all buffered data is written
	Flush() error
	// Close closes the writer
	Close() error
}

// LogWriter writes structured attempt logs
type LogWriter interface {
	// WriteAttempt writes one fetch attempt
	WriteAttempt(attempt *entity.FetchAttempt) error
	// Close closes all log writers
	Close() error
}

// TaskQueue manages acquisition tasks
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *entity.Task) bool
	// Dequeue removes and returns a task from the queue
	Dequeue() (*entity.Task, bool)
	// Len returns the current queue length
	Len() int
	// Close closes the queue
	Close()
}

// ResultQueue carries finished results to the writer
type ResultQueue interface {
	// Send sends a result to the queue
	Send(result *entity.Result)
	// Receive receives a result from the queue
	Receive() (*entity.Result, bool)
	// Close closes the queue
	Close()
}
