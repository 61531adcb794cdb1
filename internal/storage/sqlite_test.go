package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	store := NewSQLiteStorage(DefaultSQLiteConfig(filepath.Join(t.TempDir(), "loom.db")))
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := openSQLite(t)
	repo := store.GetRepository("things")
	ctx := context.Background()

	id, err := repo.Insert(ctx, Document{
		"name":   "alpha",
		"rank":   3,
		"nested": map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	doc, err := repo.FindOne(ctx, Eq("id", id.String()))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "alpha", doc["name"])
	// Numbers come back as float64 after the JSON round-trip.
	assert.Equal(t, float64(3), doc["rank"])
	assert.Equal(t, map[string]any{"k": "v"}, doc["nested"])
}

func TestSQLiteFilterAndSort(t *testing.T) {
	store := openSQLite(t)
	repo := store.GetRepository("things")
	ctx := context.Background()

	for _, doc := range []Document{
		{"name": "a", "rank": 3},
		{"name": "b", "rank": 1},
		{"name": "c", "rank": 2},
	} {
		_, err := repo.Insert(ctx, doc)
		require.NoError(t, err)
	}

	docs, err := repo.Find(ctx, Filter{"rank": {Gte: 2}}, &FindOptions{
		Sort: []SortField{{Field: "rank", Order: Asc}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0]["name"])
	assert.Equal(t, "a", docs[1]["name"])
}

func TestSQLiteUpdateAndDelete(t *testing.T) {
	store := openSQLite(t)
	repo := store.GetRepository("things")
	ctx := context.Background()

	id, err := repo.Insert(ctx, Document{"name": "a", "tags": []any{"x"}})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, id, Document{"name": "b"}, Document{"tags": "y"}))

	doc, err := repo.FindOne(ctx, Eq("id", id.String()))
	require.NoError(t, err)
	assert.Equal(t, "b", doc["name"])
	assert.Equal(t, []any{"x", "y"}, doc["tags"])

	require.NoError(t, repo.Delete(ctx, id))
	doc, err = repo.FindOne(ctx, Eq("id", id.String()))
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSQLiteKindsAreIsolated(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	_, err := store.GetRepository("a").Insert(ctx, Document{"name": "only-in-a"})
	require.NoError(t, err)

	docs, err := store.GetRepository("b").Find(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
