package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Migrate applies the SQL files found under migrations/ in migrationFS that
// have not been recorded in the `schema_migrations` table yet. Files are
// applied in lexical order and each one runs in its own transaction together
// with its bookkeeping row.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		// filename without extension is the version key
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}

		if err := applyMigration(ctx, d, version, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	return nil
}

func applyMigration(ctx context.Context, d *DB, version, stmt string) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, time.Now().UTC().Unix()); err != nil {
		return err
	}

	return tx.Commit()
}

// SeedEquipment is one entry of seed/equipment.yaml.
type SeedEquipment struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	SerialNumber string `yaml:"serial_number"`
}

type equipmentSeed struct {
	Equipment []SeedEquipment `yaml:"equipment"`
}

// LoadEquipmentSeed decodes the default equipment catalog from seedFS. A
// missing file yields an empty catalog.
func LoadEquipmentSeed(seedFS fs.FS) ([]SeedEquipment, error) {
	b, err := fs.ReadFile(seedFS, path.Join("seed", "equipment.yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read equipment seed: %w", err)
	}

	var s equipmentSeed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode equipment seed: %w", err)
	}

	return s.Equipment, nil
}

// Seed inserts the equipment catalog, skipping serial numbers that already
// exist. It returns the number of rows inserted.
func Seed(ctx context.Context, d *DB, seedFS fs.FS) (int64, error) {
	items, err := LoadEquipmentSeed(seedFS)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().UnixMilli()
	var inserted int64
	for _, it := range items {
		res, err := d.Exec(ctx, `INSERT OR IGNORE INTO equipment (name, type, serial_number, is_active, created, updated) VALUES (?, ?, ?, 1, ?, ?)`, it.Name, it.Type, it.SerialNumber, now, now)
		if err != nil {
			return inserted, fmt.Errorf("seed equipment %s: %w", it.SerialNumber, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	return inserted, nil
}
