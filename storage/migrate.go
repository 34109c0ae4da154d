package storage

import (
	"context"
	"fmt"

	"atelier-server-go/models"
)

// MigrateOptions controls Migrate
type MigrateOptions struct {
	// ForceOverwrite replaces differing data already present in the local store
	ForceOverwrite bool
}

// NeedsMigration is true when the ledger is not completed, the legacy store
// holds at least one classroom with a child, and the local store does not
// already hold the same data.
func (f *Facade) NeedsMigration(ctx context.Context) (bool, error) {
	if f.ledger.IsCompleted(ctx) {
		return false, nil
	}
	legacy, _, err := f.readCollection(ctx, f.legacy, LegacyKey)
	if err != nil {
		return false, fmt.Errorf("read legacy store: %w", err)
	}
	if !meaningful(legacy) {
		return false, nil
	}
	target, found, err := f.readCollection(ctx, f.local, TargetKey)
	if err != nil {
		return false, fmt.Errorf("read local store: %w", err)
	}
	return !found || !equalValues(legacy, target), nil
}

// HasLegacyData reports whether the legacy store holds a readable collection at all
func (f *Facade) HasLegacyData(ctx context.Context) (bool, error) {
	_, found, err := f.readCollection(ctx, f.legacy, LegacyKey)
	return found, err
}

// HasMeaningfulLegacyData reports whether some legacy classroom has a child
func (f *Facade) HasMeaningfulLegacyData(ctx context.Context) (bool, error) {
	legacy, _, err := f.readCollection(ctx, f.legacy, LegacyKey)
	if err != nil {
		return false, err
	}
	return meaningful(legacy), nil
}

// Migrate copies the legacy collection into the local store, verifies it,
// clears the legacy store and switches to the local backend. It never runs
// twice: once the ledger is completed every call is a noop.
func (f *Facade) Migrate(ctx context.Context, opts MigrateOptions) (res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Wait()
	defer func() { f.observe("migrate", res) }()

	if f.ledger.IsCompleted(ctx) {
		return noop("Migration already completed.")
	}
	data, _, err := f.readCollection(ctx, f.legacy, LegacyKey)
	if err != nil {
		return failed("Could not read the legacy store.", err)
	}
	if len(data) == 0 {
		return noop("Nothing to migrate.")
	}
	res = f.transferLocked(ctx, transfer{
		data:       data,
		source:     SourceLegacy,
		backupKind: "idb",
		force:      opts.ForceOverwrite,
	})
	if res.Status == StatusOK {
		res.Message = fmt.Sprintf("Migrated %d classroom(s) to the local store.", len(data))
	}
	return res
}

type transfer struct {
	data       []models.Classroom
	source     Source
	backupKind string
	force      bool
}

// transferLocked is the conflict → backup → write → verify → clear sequence
// shared by Migrate and Import. The legacy store is only cleared after the
// local copy has been read back and matched.
func (f *Facade) transferLocked(ctx context.Context, t transfer) Result {
	if t.data == nil {
		t.data = []models.Classroom{}
	}
	existing, found, err := f.readCollection(ctx, f.local, TargetKey)
	if err != nil {
		return failed("Could not read the local store.", err)
	}
	differs := found && !equalValues(existing, t.data)
	if differs && !t.force {
		return conflict("Different data already exists in the local store. Nothing was changed; retry with force overwrite to replace it.")
	}

	now := f.now()
	f.writeBackup(ctx, backupKey(t.backupKind, now), t.source, t.data)
	if differs {
		f.writeBackup(ctx, backupKey("local", now), SourceLocal, existing)
	}

	raw, err := Serialize(t.data)
	if err != nil {
		return failed("Could not encode the data.", err)
	}
	if err := f.local.Put(ctx, TargetKey, raw); err != nil {
		return failed("Writing to the local store failed. The original data was left untouched.", err)
	}
	readBack, err := f.local.Get(ctx, TargetKey)
	if err != nil {
		return failed("Could not verify the local store after writing. The original data was left untouched.", err)
	}
	if !DeepEqual(raw, readBack) {
		return failed("Verification after write failed. The original data was left untouched.", nil)
	}

	if err := f.legacy.Clear(ctx); err != nil {
		return failed("Data was copied but the legacy store could not be cleared. Still serving the previous data.", err)
	}

	status := models.MigrationStatus{
		Source:      string(t.source),
		Dest:        string(SourceLocal),
		Count:       len(t.data),
		Checksum:    Checksum(raw),
		CompletedAt: now,
	}
	if err := f.ledger.MarkCompleted(ctx, status); err != nil {
		// the legacy store is already empty, so the next Init selects the local store anyway
		f.log.Warn().Err(err).Msg("could not record migration ledger")
	}

	f.cache = models.CloneClassrooms(t.data)
	f.switchLocked(BackendLocal)
	return ok(fmt.Sprintf("%d classroom(s) written to the local store.", len(t.data)))
}

// writeBackup stores data as a re-importable export payload. Failures are
// logged only.
func (f *Facade) writeBackup(ctx context.Context, key string, source Source, data []models.Classroom) {
	payload, err := f.buildPayload(source, data)
	if err == nil {
		var raw []byte
		raw, err = Serialize(payload)
		if err == nil {
			err = f.local.Put(ctx, key, raw)
		}
	}
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("backup write failed; continuing")
		return
	}
	f.log.Info().Str("key", key).Int("classrooms", len(data)).Msg("backup written")
}

func (f *Facade) observe(operation string, res Result) {
	f.metrics.ObserveResult(operation, string(res.Status))
	ev := f.log.Info()
	if res.Status == StatusError {
		ev = f.log.Error().Err(res.Cause)
	}
	ev.Str("operation", operation).Str("status", string(res.Status)).Msg(res.Message)
}
