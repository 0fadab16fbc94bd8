package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatestMigrationVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_init.up.sql",
		"000001_init.down.sql",
		"000012_add_replays.up.sql",
		"README.md",
		"abc_notes.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000099_dir"), 0o755))

	assert.Equal(t, int64(12), findLatestMigrationVersion(dir))
	assert.Equal(t, int64(0), findLatestMigrationVersion(filepath.Join(dir, "missing")))
}

func TestRunMigrationsNeedsURL(t *testing.T) {
	assert.Error(t, RunMigrations("", "migrations"))
}
