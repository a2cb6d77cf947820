package migrate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/pkg/logger"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(Embedded()))

	names, err := fs.Glob(Embedded(), "*.sql")
	require.NoError(t, err)
	assert.Len(t, names, 8)
}

func TestRescueBagMigrationGuardsCounters(t *testing.T) {
	content := readMigration(t, "*_create_rescue_bags.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS rescue_bags",
		"CHECK (available_qty >= 0)",
		"CHECK (reserved_qty >= 0)",
		"CHECK (reserved_qty <= available_qty)",
		"CHECK (pickup_start < pickup_end)",
		"CHECK (original_value IS NULL OR price <= original_value)",
		"DROP TABLE IF EXISTS rescue_bags",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestReservationMigrationConstrainsStatus(t *testing.T) {
	content := readMigration(t, "*_create_reservations.sql")
	for _, sub := range []string{
		"FOREIGN KEY (rescue_bag_id) REFERENCES rescue_bags(id)",
		"CHECK (quantity >= 1)",
		"'pending', 'confirmed', 'ready', 'picked-up', 'cancelled', 'expired'",
		"reservations_overdue_idx",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestFavoritesMigrationKeysByUserAndBusiness(t *testing.T) {
	content := readMigration(t, "*_create_favorites.sql")
	for _, sub := range []string{
		"PRIMARY KEY (user_id, business_id)",
		"REFERENCES businesses(id) ON DELETE CASCADE",
		"favorites_notifications_enabled boolean NOT NULL DEFAULT true",
		"preferences jsonb NOT NULL",
		"latitude BETWEEN -90 AND 90",
		"DROP TABLE IF EXISTS favorites",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestImpactCreditsKeyedByReservation(t *testing.T) {
	assert.Contains(t, readMigration(t, "*_create_impact_credits.sql"), "reservation_id uuid PRIMARY KEY")
}

func TestCreateWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 7, 4, 10, 11, 12, 0, time.UTC)

	path, err := Create(dir, "Add Bag Tags!", now)
	require.NoError(t, err)
	assert.Equal(t, "20250704101112_add_bag_tags.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = Create(dir, "add bag tags", now)
	assert.Error(t, err, "same version must not overwrite")

	_, err = Create(dir, "  !! ", now)
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	migrations := fstest.MapFS{
		"001_init.sql":                  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20250101000000_a.sql":          {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20250101000000_b.sql":          {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20250102000000_no_down.sql":    {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20250103000000_unbalanced.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		"20250104000000_down_first.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"README.md":                     {Data: []byte("ignored")},
	}

	err := Validate(migrations)
	require.Error(t, err)
	for _, want := range []string{"001_init.sql", "already used", "missing -- +goose Down", "StatementBegin", "precedes Up"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "README")
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20250601090300")
	require.NoError(t, err)
	assert.Equal(t, int64(20250601090300), v)

	v, err = ParseVersion("0")
	require.NoError(t, err)
	assert.Zero(t, v)

	for _, bad := range []string{"", "2025", "2025060109030x", "-20250601090300"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestDialectFor(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx", "sqlite", "sqlite3"} {
		_, err := dialectFor(driver)
		assert.NoError(t, err, driver)
	}
	_, err := dialectFor("mysql")
	assert.Error(t, err)
}

var sqliteMigrations = fstest.MapFS{
	"20250101000000_create_bags.sql": {Data: []byte(`-- +goose Up
CREATE TABLE bags (id TEXT PRIMARY KEY, qty INTEGER NOT NULL CHECK (qty >= 0));

-- +goose Down
DROP TABLE bags;
`)},
	"20250102000000_add_title.sql": {Data: []byte(`-- +goose Up
ALTER TABLE bags ADD COLUMN title TEXT;

-- +goose Down
ALTER TABLE bags DROP COLUMN title;
`)},
}

func newSQLiteRunner(t *testing.T) *Runner {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	runner, err := NewRunner(sqlDB, conn.Dialector.Name(), sqliteMigrations, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	return runner
}

func TestRunnerAppliesAndRollsBack(t *testing.T) {
	ctx := context.Background()
	runner := newSQLiteRunner(t)

	pending, err := runner.Pending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, runner.Up(ctx))
	statuses, err := runner.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.File)
	}

	require.NoError(t, runner.Down(ctx))
	statuses, err = runner.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[1].Applied)

	require.NoError(t, runner.To(ctx, 0))
	statuses, err = runner.Status(ctx)
	require.NoError(t, err)
	assert.False(t, statuses[0].Applied)

	require.NoError(t, runner.To(ctx, 20250102000000))
	pending, err = runner.Pending(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}
