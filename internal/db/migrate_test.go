package db_test

import (
	"context"
	"testing"
	"testing/fstest"

	dbfs "github.com/garnizeh/fieldops/db"
	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/internal/db/dbtest"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, dbtest.DSN(t), nil)
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 migrations recorded, got %d", count)
	}

	for _, table := range []string{"users", "jobs", "job_tasks", "equipment", "job_task_equipment", "background_jobs", "dead_letter_jobs"} {
		var name string
		if err := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestMigrate_BadSQLIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	d, err := db.New(ctx, dbtest.DSN(t), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	fsys := fstest.MapFS{
		"migrations/0001_bad.sql": &fstest.MapFile{Data: []byte("CREATE TABLE nope (")},
	}
	if err := db.Migrate(ctx, d, fsys); err == nil {
		t.Fatalf("expected error for malformed migration")
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed migration must not be recorded, got %d rows", count)
	}
}

func TestSeed_EquipmentCatalog(t *testing.T) {
	ctx := context.Background()
	d := dbtest.Open(t)

	n, err := db.Seed(ctx, d, dbfs.SeedFiles)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 equipment rows seeded, got %d", n)
	}

	again, err := db.Seed(ctx, d, dbfs.SeedFiles)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected reseed to insert nothing, got %d", again)
	}
}

func TestLoadEquipmentSeed_Missing(t *testing.T) {
	items, err := db.LoadEquipmentSeed(fstest.MapFS{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(items))
	}
}
