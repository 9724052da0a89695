package runlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMigrationTestDB opens a test database without applying schema.sql,
// so migrations manage the schema from scratch.
func setupMigrationTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableHasColumn(t *testing.T, db *DB, table, column string) bool {
	t.Helper()
	var has bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&has)
	require.NoError(t, err)
	return has
}

func TestMigrateUpFromEmbedded(t *testing.T) {
	db := setupMigrationTestDB(t)
	fsys := Migrations()

	require.NoError(t, db.MigrateUp(fsys))

	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var tableExists bool
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='runs'
	`).Scan(&tableExists)
	require.NoError(t, err)
	assert.True(t, tableExists, "runs table should exist after migration")

	assert.True(t, tableHasColumn(t, db, "runs", "finished_unix_nanos"))
}

func TestMigrateUpIdempotent(t *testing.T) {
	db := setupMigrationTestDB(t)
	fsys := Migrations()

	require.NoError(t, db.MigrateUp(fsys))
	require.NoError(t, db.MigrateUp(fsys), "second up should be a no-op")

	version, _, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrateDownRemovesFinishedColumn(t *testing.T) {
	db := setupMigrationTestDB(t)
	fsys := Migrations()

	require.NoError(t, db.MigrateUp(fsys))
	require.NoError(t, db.MigrateDown(fsys))

	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	assert.False(t, tableHasColumn(t, db, "runs", "finished_unix_nanos"))
	assert.True(t, tableHasColumn(t, db, "runs", "started_unix_nanos"))
}

func TestMigrateVersionFresh(t *testing.T) {
	db := setupMigrationTestDB(t)

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestMigrateTo(t *testing.T) {
	db := setupMigrationTestDB(t)
	fsys := Migrations()

	require.NoError(t, db.MigrateTo(fsys, 1))
	version, _, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, tableHasColumn(t, db, "runs", "finished_unix_nanos"))

	require.NoError(t, db.MigrateTo(fsys, 2))
	version, _, err = db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, tableHasColumn(t, db, "runs", "finished_unix_nanos"))
}

func TestMigrateForce(t *testing.T) {
	db := setupMigrationTestDB(t)
	fsys := Migrations()

	require.NoError(t, db.MigrateUp(fsys))
	require.NoError(t, db.MigrateForce(fsys, 1))

	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty, "force should clear the dirty flag")
}

func TestSchemaMatchesMigrations(t *testing.T) {
	// Schema-on-open and fully replayed migrations must agree on the
	// final table shapes.
	dir := t.TempDir()

	fromSchema, err := NewDB(filepath.Join(dir, "schema.db"))
	require.NoError(t, err)
	defer fromSchema.Close()

	fromMigrations, err := OpenDB(filepath.Join(dir, "migrated.db"))
	require.NoError(t, err)
	defer fromMigrations.Close()
	require.NoError(t, fromMigrations.MigrateUp(Migrations()))

	columns := func(db *DB, table string) []string {
		rows, err := db.Query(`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
		require.NoError(t, err)
		defer rows.Close()
		var names []string
		for rows.Next() {
			var n string
			require.NoError(t, rows.Scan(&n))
			names = append(names, n)
		}
		require.NoError(t, rows.Err())
		return names
	}

	for _, table := range []string{"runs", "metrics"} {
		assert.Equal(t, columns(fromSchema, table), columns(fromMigrations, table), table)
	}
}
