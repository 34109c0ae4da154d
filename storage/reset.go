package storage

import (
	"context"

	"atelier-server-go/models"
)

// DefaultClassroomName is used by ResetAndStartFresh when no name is given
const DefaultClassroomName = "Classe 1"

// ResetAndStartFresh discards all data in both stores and starts over on the
// local backend with a single empty classroom.
func (f *Facade) ResetAndStartFresh(ctx context.Context, name string) (res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Wait()
	defer func() { f.observe("reset", res) }()

	if name == "" {
		name = DefaultClassroomName
	}
	if err := f.legacy.Clear(ctx); err != nil {
		return failed("Could not clear the legacy store.", err)
	}
	if err := f.local.Delete(ctx, TargetKey); err != nil {
		return failed("Could not clear the local store.", err)
	}
	if err := f.ledger.Clear(ctx); err != nil {
		return failed("Could not clear the migration status.", err)
	}

	now := f.now()
	data := []models.Classroom{{ID: newID("class-", now), Name: name, Children: []models.Child{}}}
	raw, err := Serialize(data)
	if err != nil {
		return failed("Could not encode the new classroom.", err)
	}
	if err := f.local.Put(ctx, TargetKey, raw); err != nil {
		return failed("Could not write the new classroom.", err)
	}
	f.cache = data
	f.version++
	f.switchLocked(BackendLocal)

	if err := f.ledger.MarkCompleted(ctx, models.MigrationStatus{
		Source:      string(SourceReset),
		Dest:        string(SourceLocal),
		Count:       len(data),
		Checksum:    Checksum(raw),
		CompletedAt: now,
	}); err != nil {
		return failed("Data was reset but the migration status could not be saved.", err)
	}
	return ok("All data cleared. A new empty classroom was created.")
}
