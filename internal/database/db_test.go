package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/air-quality-server/internal/series"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_alerts.sql", "001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_alerts.sql"}, files)
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	_, err := migrationFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMigrationFiles_RepositoryMigrations(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	require.NoError(t, err)
	assert.Contains(t, files, "001_init.sql")
}

func TestObservedAt(t *testing.T) {
	ts := observedAt(series.NewKey("2024-03-01", "24:00"))
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), *ts)

	assert.Nil(t, observedAt(series.Key("sometime")))
}
