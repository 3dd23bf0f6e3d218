package migrations

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsEmbedded(t *testing.T) {
	migrations, err := LoadMigrations(Files)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Contains(t, migrations[0].Up, "CREATE TABLE IF NOT EXISTS watermarks")
	assert.Contains(t, migrations[0].Down, "DROP TABLE")
}

func TestLoadMigrationsSortsAndSkipsInvalid(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.up.sql":  {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"0001_first.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"0001_first.down.sql": {Data: []byte("DROP TABLE a;")},
		"notes.sql":           {Data: []byte("-- not a migration")},
		"README.md":           {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "DROP TABLE a;", migrations[0].Down)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Empty(t, migrations[1].Down)
}

func TestRunAndRollbackMigrations(t *testing.T) {
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations, err := LoadMigrations(Files)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, migrations))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(db, migrations))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, len(migrations), count)

	_, err = db.Exec("INSERT INTO watermarks (feed_url, watermark, watermark_ns) VALUES ('u', 'w', 1)")
	require.NoError(t, err)

	require.NoError(t, RollbackMigrations(db, migrations, 1))
	_, err = db.Exec("SELECT 1 FROM watermarks")
	assert.Error(t, err)
}
