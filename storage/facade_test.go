package storage

import (
	"context"
	"sync"
	"testing"

	"atelier-server-go/db"
	"atelier-server-go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSelectsLegacyWhenItHoldsChildren(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	putCollection(t, legacy, LegacyKey, []models.Classroom{classroomWithChild("c1", "Classe A", house("red", "blue"))})

	f := newTestFacade(t, legacy, local)
	report, err := f.Init(ctx)
	require.NoError(t, err)

	assert.Equal(t, BackendLegacy, report.Backend)
	assert.Equal(t, BackendLegacy, f.Backend())
	list := f.ListClassrooms()
	require.Len(t, list, 1)
	assert.Equal(t, "Classe A", list[0].Name)
	require.Len(t, list[0].Children[0].History, 1)

	needs, err := f.NeedsMigration(ctx)
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestInitSelectsLocalWhenLedgerCompleted(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	putCollection(t, legacy, LegacyKey, []models.Classroom{classroomWithChild("old", "Old")})
	putCollection(t, local, TargetKey, []models.Classroom{classroomWithChild("new", "New")})
	require.NoError(t, NewLedger(local, testLogger()).MarkCompleted(ctx, models.MigrationStatus{Source: "idb", Dest: "localStorage"}))

	f := newTestFacade(t, legacy, local)
	report, err := f.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, report.Backend)
	assert.Equal(t, "New", f.ListClassrooms()[0].Name)
}

func TestInitSelectsLocalWhenLegacyHasNoChildren(t *testing.T) {
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	putCollection(t, legacy, LegacyKey, []models.Classroom{{ID: "c1", Name: "Empty", Children: []models.Child{}}})

	f := newTestFacade(t, legacy, local)
	report, err := f.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, report.Backend)
	assert.Empty(t, f.ListClassrooms(), "the facade does not create a default classroom itself")
}

func TestInitTreatsCorruptLocalDataAsEmpty(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	require.NoError(t, local.Put(ctx, TargetKey, []byte(`{not json`)))
	require.NoError(t, local.Put(ctx, LedgerKey, []byte(`garbage`)))

	f := newTestFacade(t, legacy, local)
	report, err := f.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, report.Backend)
	assert.Empty(t, f.ListClassrooms())
	assert.False(t, f.Ledger().IsCompleted(ctx))
}

func TestInitBootstrapsLegacyFromOlderLocalGeneration(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	older := []models.Classroom{classroomWithChild("v1", "Ancienne", house("yellow", "red"))}
	putCollection(t, local, LegacyLocalKey, older)

	f := newTestFacade(t, legacy, local)
	report, err := f.Init(ctx)
	require.NoError(t, err)

	assert.True(t, report.Bootstrapped)
	assert.Equal(t, BackendLegacy, report.Backend)
	assert.Equal(t, older, getCollection(t, legacy, LegacyKey))
	assert.Equal(t, older, getCollection(t, local, LegacyLocalKey), "the older generation is never deleted")
}

func TestInitSurfacesUnavailableLegacyStore(t *testing.T) {
	local := db.NewMemoryStore()
	putCollection(t, local, TargetKey, []models.Classroom{{ID: "c1", Name: "Local", Children: []models.Child{}}})

	f := newTestFacade(t, brokenStore{}, local)
	report, err := f.Init(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, report.Backend)
	assert.True(t, report.LegacyUnavailable)
	assert.Contains(t, report.LegacyError, errUnavailable.Error())
	assert.Len(t, f.ListClassrooms(), 1)
}

func TestInitFailsWhenLocalStoreUnreadable(t *testing.T) {
	f := newTestFacade(t, db.NewMemoryStore(), brokenStore{})
	_, err := f.Init(context.Background())
	assert.ErrorIs(t, err, errUnavailable)
}

func TestInitRunsOnceForConcurrentCallers(t *testing.T) {
	legacy := &countingStore{MemoryStore: db.NewMemoryStore(), key: LegacyKey}
	putCollection(t, legacy.MemoryStore, LegacyKey, []models.Classroom{classroomWithChild("c1", "A")})
	f := newTestFacade(t, legacy, db.NewMemoryStore())

	var wg sync.WaitGroup
	reports := make([]InitReport, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.Init(context.Background())
			assert.NoError(t, err)
			reports[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), legacy.gets.Load())
	for _, r := range reports {
		assert.Equal(t, reports[0], r)
	}
}

func TestCRUDPersistsToActiveBackend(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	f := newTestFacade(t, legacy, local)
	_, err := f.Init(ctx)
	require.NoError(t, err)

	cls := f.CreateClassroom("")
	assert.Equal(t, "Classe 1", cls.Name)
	assert.Contains(t, cls.ID, "class-")

	child := f.AddChild(cls.ID, "")
	require.NotNil(t, child)
	assert.Equal(t, "Enfant 1", child.Name)
	assert.Empty(t, child.History)

	renamed := f.RenameChild(cls.ID, child.ID, "Noé")
	require.NotNil(t, renamed)
	assert.Equal(t, "Noé", renamed.Name)

	updated := f.ReplaceChildHistory(cls.ID, child.ID, []models.House{house("red", "red"), house("blue", "red")})
	require.NotNil(t, updated)
	assert.Len(t, updated.History, 2)

	got := f.GetChild(cls.ID, child.ID)
	require.NotNil(t, got)
	assert.Equal(t, *updated, *got)

	require.NoError(t, f.Flush(ctx))
	stored := getCollection(t, local, TargetKey)
	assert.Equal(t, f.ListClassrooms(), stored)
	_, err = legacy.Get(ctx, LegacyKey)
	assert.ErrorIs(t, err, db.ErrNotFound, "nothing is written to the inactive backend")

	assert.True(t, f.DeleteChild(cls.ID, child.ID))
	require.NoError(t, f.Flush(ctx))
	assert.Empty(t, getCollection(t, local, TargetKey)[0].Children)
}

func TestCRUDNotFoundIsSilent(t *testing.T) {
	f := newTestFacade(t, db.NewMemoryStore(), db.NewMemoryStore())
	_, err := f.Init(context.Background())
	require.NoError(t, err)
	cls := f.CreateClassroom("A")

	assert.Nil(t, f.AddChild("nope", "x"))
	assert.Nil(t, f.RenameChild(cls.ID, "nope", "x"))
	assert.Nil(t, f.GetChild("nope", "nope"))
	assert.Nil(t, f.ReplaceChildHistory(cls.ID, "nope", nil))
	assert.Nil(t, f.GetClassroom("nope"))
	assert.False(t, f.DeleteChild(cls.ID, "nope"))
}

func TestReturnedValuesAreNotAliased(t *testing.T) {
	f := newTestFacade(t, db.NewMemoryStore(), db.NewMemoryStore())
	_, err := f.Init(context.Background())
	require.NoError(t, err)
	cls := f.CreateClassroom("A")
	child := f.AddChild(cls.ID, "Zoé")
	history := []models.House{house("red", "blue")}
	f.ReplaceChildHistory(cls.ID, child.ID, history)

	history[0].Body.Color = "yellow"
	before := f.ListClassrooms()
	before[0].Name = "changed"
	before[0].Children[0].History[0].Roof.Color = "yellow"

	after := f.GetChild(cls.ID, child.ID)
	assert.Equal(t, "red", after.History[0].Body.Color)
	assert.Equal(t, "blue", after.History[0].Roof.Color)
	assert.Equal(t, "A", f.ListClassrooms()[0].Name)
}

func TestLatestWriteWins(t *testing.T) {
	ctx := context.Background()
	local := db.NewMemoryStore()
	f := newTestFacade(t, db.NewMemoryStore(), local)
	_, err := f.Init(ctx)
	require.NoError(t, err)
	cls := f.CreateClassroom("A")
	child := f.AddChild(cls.ID, "Zoé")

	var history []models.House
	colors := []string{"red", "blue", "yellow"}
	for _, b := range colors {
		for _, r := range colors {
			history = append(history, house(b, r))
			f.ReplaceChildHistory(cls.ID, child.ID, history)
		}
	}
	require.NoError(t, f.Flush(ctx))
	stored := getCollection(t, local, TargetKey)
	assert.Len(t, stored[0].Children[0].History, 9)
}

func TestMutationsFollowBackendAfterMigration(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	putCollection(t, legacy, LegacyKey, []models.Classroom{classroomWithChild("c1", "A")})
	f := newTestFacade(t, legacy, local)
	_, err := f.Init(ctx)
	require.NoError(t, err)

	f.AddChild("c1", "Before")
	require.NoError(t, f.Flush(ctx))
	assert.Len(t, getCollection(t, legacy, LegacyKey)[0].Children, 2)

	res := f.Migrate(ctx, MigrateOptions{})
	require.Equal(t, StatusOK, res.Status, res.Message)

	f.AddChild("c1", "After")
	require.NoError(t, f.Flush(ctx))
	assert.Len(t, getCollection(t, local, TargetKey)[0].Children, 3)
	_, err = legacy.Get(ctx, LegacyKey)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBootstrapCopiesOlderPayloadVerbatim(t *testing.T) {
	ctx := context.Background()
	legacy, local := db.NewMemoryStore(), db.NewMemoryStore()
	older := []byte(`[{"id":"v1","name":"Ancienne","theme":"sea","children":[{"id":"k","name":"K","history":[]}]}]`)
	require.NoError(t, local.Put(ctx, LegacyLocalKey, older))

	f := newTestFacade(t, legacy, local)
	report, err := f.Init(ctx)
	require.NoError(t, err)
	require.True(t, report.Bootstrapped)

	copied, err := legacy.Get(ctx, LegacyKey)
	require.NoError(t, err)
	assert.Equal(t, older, copied)
}

func TestFlushDuringConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t, db.NewMemoryStore(), db.NewMemoryStore())
	_, err := f.Init(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				f.CreateClassroom("x")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.NoError(t, f.Flush(ctx))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, f.Flush(ctx))
	assert.Len(t, f.ListClassrooms(), 800)
}
