package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyRecordsApplied(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;")},
		"README.md":      &fstest.MapFile{Data: []byte("not a migration")},
	}

	applied, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001_create.sql" {
		t.Fatalf("applied = %v, want [001_create.sql]", applied)
	}
	if got := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("migration rows = %d, want 1", got)
	}
	if !tableExists(t, db, "items") {
		t.Fatal("expected applied table to exist")
	}

	applied, err = Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("applied on rerun = %v, want none", applied)
	}
}

func TestApplyDoesNotRecordFailedMigration(t *testing.T) {
	db := openInMemoryDB(t)
	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT table things(id INT);")},
	}
	if _, err := Apply(context.Background(), db, bad, ""); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if got := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 0 {
		t.Fatalf("migration rows = %d, want 0", got)
	}

	good := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE things(id INTEGER PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, good, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("migration rows = %d, want 1", got)
	}
}

func TestApplyRespectsRoot(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"journal/001_events.sql": &fstest.MapFile{Data: []byte("CREATE TABLE event_rows(id TEXT PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, migrations, "journal"); err != nil {
		t.Fatalf("apply migrations with root: %v", err)
	}
	var name string
	if err := db.QueryRow("SELECT name FROM schema_migrations LIMIT 1").Scan(&name); err != nil {
		t.Fatalf("query name: %v", err)
	}
	if name != "journal/001_events.sql" {
		t.Fatalf("migration key = %q, want %q", name, "journal/001_events.sql")
	}
	if !tableExists(t, db, "event_rows") {
		t.Fatal("expected migrated table")
	}
}

func TestExtractUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CREATE TABLE a(x);", "CREATE TABLE a(x);"},
		{"-- +migrate Up\nCREATE TABLE a(x);", "\nCREATE TABLE a(x);"},
		{"-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a(x);\n"},
	}
	for _, tt := range tests {
		if got := ExtractUp(tt.in); got != tt.want {
			t.Fatalf("ExtractUp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
