package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var fixtureFS embed.FS

// useMigrations points the package at fsys/dir for the duration of t.
func useMigrations(t *testing.T, fsys embed.FS, dir string) {
	t.Helper()
	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() { MigrationsFS, MigrationsDir = prevFS, prevDir })
}

func tableExists(t *testing.T, db *DB, table string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master lookup: %v", err)
	}
	return n == 1
}

func columnExists(t *testing.T, db *DB, table, column string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name=?", table, column,
	).Scan(&n)
	if err != nil {
		t.Fatalf("pragma_table_info: %v", err)
	}
	return n == 1
}

// =============================================================================
// Migrate / MigrateDown
// =============================================================================

func TestMigrate_Lifecycle(t *testing.T) {
	useMigrations(t, fixtureFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "dispatch_log") || !columnExists(t, db, "dispatch_log", "kind") {
		t.Fatal("dispatch_log.kind missing after Migrate()")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Fatalf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[1].Version != "20260102_000000" {
		t.Errorf("applied versions = %s, %s", applied[0].Version, applied[1].Version)
	}

	// A second run has nothing to do.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	// Each MigrateDown peels off only the newest migration.
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if !tableExists(t, db, "dispatch_log") || columnExists(t, db, "dispatch_log", "kind") {
		t.Error("after one MigrateDown() want table without kind column")
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "dispatch_log") {
		t.Error("dispatch_log still present after rolling back both migrations")
	}

	applied, pending, err = db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Errorf("applied=%d pending=%d, want 0 and 2", len(applied), len(pending))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrate_EmptyFS(t *testing.T) {
	var empty embed.FS
	useMigrations(t, empty, ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}

func TestGetMigrationStatus_BeforeMigrate(t *testing.T) {
	useMigrations(t, fixtureFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Fatalf("applied=%d pending=%d, want 0 and 2", len(applied), len(pending))
	}
	if pending[0].Name != "create_dispatch_log" || pending[1].Name != "add_dispatch_kind" {
		t.Errorf("pending names = %q, %q", pending[0].Name, pending[1].Name)
	}
	if pending[0].UpSQL == "" || pending[0].DownSQL == "" {
		t.Error("pending[0] missing up or down SQL")
	}
}

// =============================================================================
// Filenames
// =============================================================================

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_dispatch_audit.up.sql", "20260301_120000", true, true},
		{"20260301_120000_dispatch_audit.down.sql", "20260301_120000", false, true},
		{"20260301_120000_dispatch_audit.sql", "", false, false},
		{"notes.md", "", false, false},
		{"audit.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (version != tt.wantVersion || up != tt.wantUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, up, tt.wantVersion, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_120000_dispatch_audit.up.sql":      "dispatch_audit",
		"20260102_000000_add_dispatch_kind.down.sql": "add_dispatch_kind",
		"20260101_000000_create_dispatch_log.up.sql": "create_dispatch_log",
	}
	for filename, want := range tests {
		t.Run(filename, func(t *testing.T) {
			if got := extractMigrationName(filename); got != want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", filename, got, want)
			}
		})
	}
}
