package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"atelier-server-go/db"
	"atelier-server-go/models"

	"github.com/rs/zerolog"
)

// Ledger records in backend B whether the one-time A→B migration has happened.
type Ledger struct {
	store db.Store
	log   zerolog.Logger
}

// NewLedger binds a ledger to the local store
func NewLedger(store db.Store, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Status returns the stored record, or nil when missing or unreadable.
func (l *Ledger) Status(ctx context.Context) *models.MigrationStatus {
	raw, err := l.store.Get(ctx, LedgerKey)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			l.log.Warn().Err(err).Msg("migration ledger unreadable; treating as not completed")
		}
		return nil
	}
	var st models.MigrationStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		l.log.Warn().Err(err).Msg("migration ledger corrupt; treating as not completed")
		return nil
	}
	return &st
}

// IsCompleted never fails: a missing or corrupt record means not completed
func (l *Ledger) IsCompleted(ctx context.Context) bool {
	return l.Status(ctx) != nil
}

// MarkCompleted persists meta as the ledger record
func (l *Ledger) MarkCompleted(ctx context.Context, meta models.MigrationStatus) error {
	raw, err := Serialize(meta)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := l.store.Put(ctx, LedgerKey, raw); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	l.log.Info().Str("source", meta.Source).Int("count", meta.Count).Uint32("checksum", meta.Checksum).Msg("migration ledger marked completed")
	return nil
}

// Clear removes the record
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.store.Delete(ctx, LedgerKey); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}
