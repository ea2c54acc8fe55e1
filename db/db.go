// Package db embeds the SQL migrations and the equipment catalog shipped with
// the binaries.
package db

import "embed"

// Migrations are applied in file name order by internal/db.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedFiles holds seed/equipment.yaml, the default equipment catalog.
//
//go:embed seed/*.yaml
var SeedFiles embed.FS
