package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreInternIdempotent(t *testing.T) {
	ds := NewDocumentStore()
	a := ds.Intern("/a.txt")
	b := ds.Intern("/b.txt")
	again := ds.Intern("/a.txt")

	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, ds.Len())
}

func TestDocumentStoreShouldSkip(t *testing.T) {
	ds := NewDocumentStore()
	now := time.Now().Truncate(time.Second)
	id := ds.Intern("/a.txt")
	ds.UpdateMetadata(id, 100, now, 12)

	assert.True(t, ds.ShouldSkip("/a.txt", 100, now))
	assert.False(t, ds.ShouldSkip("/a.txt", 101, now))
	assert.False(t, ds.ShouldSkip("/a.txt", 100, now.Add(time.Second)))
	assert.False(t, ds.ShouldSkip("/unseen.txt", 100, now))
}

func TestDocumentStorePersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docstore.bin")

	ds := NewDocumentStore()
	now := time.Now().Truncate(time.Second).UTC()
	id0 := ds.Intern("/one.txt")
	id1 := ds.Intern("/two.txt")
	ds.UpdateMetadata(id0, 10, now, 3)
	ds.UpdateMetadata(id1, 20, now.Add(time.Minute), 7)

	require.NoError(t, ds.Persist(path))

	loaded, err := LoadDocumentStore(path)
	require.NoError(t, err)
	assert.Equal(t, ds.Len(), loaded.Len())

	rec0, ok := loaded.Get(id0)
	require.True(t, ok)
	assert.Equal(t, "/one.txt", rec0.Path)
	assert.Equal(t, int64(10), rec0.Size)
	assert.Equal(t, uint32(3), rec0.Length)
	assert.True(t, rec0.ModTime.Equal(now))

	assert.Equal(t, id0, loaded.Intern("/one.txt"))
	assert.Equal(t, id1, loaded.Intern("/two.txt"))
}

func TestLoadDocumentStoreMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	ds, err := LoadDocumentStore(filepath.Join(dir, "does-not-exist.bin"))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestLoadDocumentStoreRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docstore.bin")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 0}, 0o644))

	_, err := LoadDocumentStore(path)
	assert.Error(t, err)
}
