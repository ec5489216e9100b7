package repository

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	srcErr     error
	dbErr      error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.srcErr, f.dbErr }

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		default:
			t.Errorf("unexpected file in migrations: %s", e.Name())
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")

	up, err := fs.ReadFile(migrationsFS, "migrations/000001_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "username      TEXT PRIMARY KEY")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://localhost/db?sslmode=disable", "pgx5://localhost/db?sslmode=disable"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestNewMigrator_InvalidScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize migrator")
}

func TestMigrator_Up(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Up())
	require.NoError(t, (&Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}).Up())

	err := (&Migrator{m: &fakeMigrate{upErr: errors.New("boom")}}).Up()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMigrator_Down(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}).Down())
	require.Error(t, (&Migrator{m: &fakeMigrate{downErr: errors.New("boom")}}).Down())
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{version: 1, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("db down")}}).Version()
	require.Error(t, err)
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	srcErr := errors.New("source")
	dbErr := errors.New("database")
	err := (&Migrator{m: &fakeMigrate{srcErr: srcErr, dbErr: dbErr}}).Close()
	assert.ErrorIs(t, err, srcErr)
	assert.ErrorIs(t, err, dbErr)
}
