package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"atelier-server-go/db"
	"atelier-server-go/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestFacade(t *testing.T, legacy, local db.Store) *Facade {
	t.Helper()
	f := New(legacy, local, WithNow(func() time.Time { return fixedNow }))
	t.Cleanup(func() { _ = f.Flush(context.Background()) })
	return f
}

func house(body, roof string) models.House {
	return models.House{
		Body: models.Part{Type: "square", Color: body, ID: "b-" + body, Top: 10, Left: 20},
		Roof: models.Part{Type: "triangle", Color: roof, ID: "r-" + roof},
	}
}

func classroomWithChild(id, name string, houses ...models.House) models.Classroom {
	if houses == nil {
		houses = []models.House{}
	}
	return models.Classroom{
		ID:   id,
		Name: name,
		Children: []models.Child{
			{ID: id + "-child", Name: "Léa", History: houses},
		},
	}
}

func putCollection(t *testing.T, s db.Store, key string, data []models.Classroom) {
	t.Helper()
	raw, err := Serialize(data)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), key, raw))
}

func getCollection(t *testing.T, s db.Store, key string) []models.Classroom {
	t.Helper()
	raw, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	var data []models.Classroom
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func keysWithPrefix(s *db.MemoryStore, prefix string) []string {
	var out []string
	for _, k := range s.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

var errUnavailable = errors.New("store unavailable")

// brokenStore fails every operation, like a store that cannot be opened
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errUnavailable }
func (brokenStore) Put(context.Context, string, []byte) error { return errUnavailable }
func (brokenStore) Delete(context.Context, string) error { return errUnavailable }
func (brokenStore) Clear(context.Context) error { return errUnavailable }
func (brokenStore) Close() error { return nil }

// countingStore counts Get calls per key
type countingStore struct {
	*db.MemoryStore
	gets atomic.Int64
	key  string
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.key {
		s.gets.Add(1)
		time.Sleep(5 * time.Millisecond)
	}
	return s.MemoryStore.Get(ctx, key)
}

// lossyStore drops the last classroom of every write to key, so read-back
// verification sees different data
type lossyStore struct {
	*db.MemoryStore
	key string
}

func (s *lossyStore) Put(ctx context.Context, key string, value []byte) error {
	if key == s.key {
		var data []models.Classroom
		if err := json.Unmarshal(value, &data); err == nil && len(data) > 0 {
			value, _ = Serialize(data[:len(data)-1])
		}
	}
	return s.MemoryStore.Put(ctx, key, value)
}

// clearFailStore accepts reads and writes but cannot be cleared
type clearFailStore struct {
	*db.MemoryStore
}

func (s *clearFailStore) Clear(context.Context) error { return errUnavailable }

// backupFailStore rejects writes to backup keys only
type backupFailStore struct {
	*db.MemoryStore
}

func (s *backupFailStore) Put(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, backupPrefix) {
		return errUnavailable
	}
	return s.MemoryStore.Put(ctx, key, value)
}
