// Package dbtest opens migrated, isolated in-memory databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	dbfs "github.com/garnizeh/fieldops/db"
	"github.com/garnizeh/fieldops/internal/db"
)

var seq atomic.Int64

// DSN returns a shared-cache in-memory DSN unique to the calling test.
func DSN(t testing.TB) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
}

// Open returns a migrated database that is closed when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	d, err := db.New(ctx, DSN(t), logger)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return d
}
