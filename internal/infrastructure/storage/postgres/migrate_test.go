package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_LoadSortsAndSkips(t *testing.T) {
	files := fstest.MapFS{
		"010_indexes.sql": {Data: []byte("CREATE INDEX a ON t (x);")},
		"002_ledger.sql":  {Data: []byte("CREATE TABLE l ();")},
		"001_init.sql":    {Data: []byte("CREATE TABLE t ();")},
		"README.md":       {Data: []byte("docs")},
		"draft.sql":       {Data: []byte("SELECT 1;")},
		"abc_x.sql":       {Data: []byte("SELECT 1;")},
	}

	migrations, err := NewMigrator(nil, files).Load()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_init.sql", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE t ();", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestMigrator_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_init.sql": {Data: []byte("SELECT 1;")},
		"1_again.sql":  {Data: []byte("SELECT 2;")},
	}

	_, err := NewMigrator(nil, files).Load()
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations()).Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	for _, table := range []string{"tenants", "catalog_items", "stock_movements", "subscriptions", "sys_audit", "sys_idempotency"} {
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
