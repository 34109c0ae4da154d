package storage

import (
	"context"
	"testing"
	"time"

	"atelier-server-go/db"
	"atelier-server-go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(db.NewMemoryStore(), testLogger())

	assert.False(t, l.IsCompleted(ctx))
	assert.Nil(t, l.Status(ctx))

	meta := models.MigrationStatus{Source: "idb", Dest: "localStorage", Count: 2, Checksum: 42, CompletedAt: fixedNow}
	require.NoError(t, l.MarkCompleted(ctx, meta))
	assert.True(t, l.IsCompleted(ctx))
	st := l.Status(ctx)
	require.NotNil(t, st)
	assert.Equal(t, meta.Source, st.Source)
	assert.Equal(t, meta.Count, st.Count)
	assert.Equal(t, uint32(42), st.Checksum)
	assert.True(t, st.CompletedAt.Equal(fixedNow))

	require.NoError(t, l.Clear(ctx))
	assert.False(t, l.IsCompleted(ctx))
}

func TestLedgerToleratesBrokenRecords(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.Put(ctx, LedgerKey, []byte(`{"source":`)))
	assert.False(t, NewLedger(store, testLogger()).IsCompleted(ctx))

	broken := NewLedger(brokenStore{}, testLogger())
	assert.False(t, broken.IsCompleted(ctx))
	assert.Error(t, broken.MarkCompleted(ctx, models.MigrationStatus{CompletedAt: time.Now()}))
}
