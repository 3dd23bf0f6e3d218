package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	st := store.Load(context.Background())
	require.NotNil(t, st)
	assert.Equal(t, 0, st.Len())
}

func TestFileStoreCorruptFile(t *testing.T) {
	tests := map[string]string{
		"not json":      "{{{",
		"wrong shape":   `{"last_seen": ["a", "b"]}`,
		"bad timestamp": `{"last_seen": {"https://a/feed": "2026-01-01T00:00:00Z", "https://b/feed": "yesterday"}}`,
		"empty":         "",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			st := NewFileStore(path).Load(context.Background())
			require.NotNil(t, st)
			assert.Equal(t, 0, st.Len())
		})
	}
}

func TestFileStoreUnreadablePathIsEmpty(t *testing.T) {
	// A directory cannot be read as a file.
	st := NewFileStore(t.TempDir()).Load(context.Background())
	assert.Equal(t, 0, st.Len())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStore(path)

	zone := time.FixedZone("", -7*3600)
	a := time.Date(2026, 2, 1, 8, 30, 0, 500, zone)
	b := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	st := New()
	st.Set("https://a/feed", a)
	st.Set("https://b/feed", b)
	require.NoError(t, store.Save(context.Background(), st))

	loaded := store.Load(context.Background())
	require.Equal(t, 2, loaded.Len())
	got, ok := loaded.Get("https://a/feed")
	require.True(t, ok)
	assert.True(t, got.Equal(a))
	_, offset := got.Zone()
	assert.Equal(t, -7*3600, offset)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_seen"`)
	assert.Contains(t, string(data), `"2026-02-01T08:30:00.0000005-07:00"`)

	// No temporary files are left next to the state file.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreReadsOriginalFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{
  "last_seen": {
    "https://archlinux.org/feeds/news/": "2026-01-05T14:02:11+00:00"
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	st := NewFileStore(path).Load(context.Background())
	got, ok := st.Get("https://archlinux.org/feeds/news/")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 1, 5, 14, 2, 11, 0, time.UTC)))
}

func TestFileStoreSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	// The parent "directory" is a regular file.
	store := NewFileStore(filepath.Join(blocker, "state.json"))
	assert.Error(t, store.Save(context.Background(), New()))
}
