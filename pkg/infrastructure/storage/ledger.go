package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS domains (
    domain     TEXT PRIMARY KEY,
    state      TEXT NOT NULL,
    asset_path TEXT,
    tier       TEXT,
    reason     TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_domains_state ON domains(state);
`

// Ledger implements repository.Ledger using SQLite
type Ledger struct {
	db *sql.DB
}

// NewLedger opens the ledger database, initializing the schema if needed
func NewLedger(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps concurrent workers from hitting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Get returns the entry recorded for a dedup key
func (l *Ledger) Get(ctx context.Context, domain string) (*entity.LedgerEntry, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT domain, state, COALESCE(asset_path, ''), COALESCE(tier, ''), COALESCE(reason, ''), updated_at
		 FROM domains WHERE domain = ?`, domain,
	)

	var entry entity.LedgerEntry
	var state, tier string
	if err := row.Scan(&entry.Domain, &state, &entry.AssetPath, &tier, &entry.Reason, &entry.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	entry.State = entity.State(state)
	entry.Tier = entity.Tier(tier)
	return &entry, true, nil
}

// Put inserts or replaces the entry for its domain
func (l *Ledger) Put(ctx context.Context, entry *entity.LedgerEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO domains (domain, state, asset_path, tier, reason, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
		     state = excluded.state,
		     asset_path = excluded.asset_path,
		     tier = excluded.tier,
		     reason = excluded.reason,
		     updated_at = excluded.updated_at`,
		entry.Domain, string(entry.State), entry.AssetPath, string(entry.Tier), entry.Reason, entry.UpdatedAt,
	)
	return err
}

// Reset deletes entries and reports how many were removed
func (l *Ledger) Reset(ctx context.Context, onlyNotFound bool) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if onlyNotFound {
		result, err = l.db.ExecContext(ctx, `DELETE FROM domains WHERE state = ?`, string(entity.StateNoAssetFound))
	} else {
		result, err = l.db.ExecContext(ctx, `DELETE FROM domains`)
	}
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
