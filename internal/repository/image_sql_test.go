package repository

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/imagevault/internal/db"
	"github.com/templui/imagevault/internal/model"
)

func newSQLIndex(t *testing.T) *sqlImageIndex {
	t.Helper()

	database, err := db.Init("sqlite", db.SQLiteConnection(filepath.Join(t.TempDir(), "images.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return NewSQLImageIndex(database, &sync.Mutex{})
}

func TestSQLIndexEmpty(t *testing.T) {
	index := newSQLIndex(t)

	records, err := index.Load()
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	_, err = index.Get("nope")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestSQLIndexAddGetReplace(t *testing.T) {
	index := newSQLIndex(t)
	now := time.Now().Truncate(time.Second)

	require.NoError(t, index.Add(record("one", "first", now)))
	require.NoError(t, index.Add(record("two", "second", now)))
	require.NoError(t, index.Add(record("ONE", "replaced", now.Add(time.Minute))))

	got, err := index.Get("one")
	require.NoError(t, err)
	assert.Equal(t, "ONE", got.ID)
	assert.Equal(t, "replaced", got.Description)
	assert.Equal(t, "image/png", got.OriginalContentType)
	assert.WithinDuration(t, now.Add(time.Minute), got.UploadedAt, time.Second)
	assert.Equal(t, time.UTC, got.UploadedAt.Location())

	records, err := index.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"two", "ONE"}, []string{records[0].ID, records[1].ID}, "replaced record moves to the end")
}

func TestSQLIndexSave(t *testing.T) {
	index := newSQLIndex(t)
	now := time.Now()

	require.NoError(t, index.Add(record("old", "", now)))
	require.NoError(t, index.Save([]model.ImageRecord{record("c", "", now), record("a", "", now), record("b", "", now)}))

	records, err := index.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c", records[0].ID)
	assert.Equal(t, "a", records[1].ID)
	assert.Equal(t, "b", records[2].ID)
}
