// Package db embeds the Postgres schema migrations applied by pg.Migrate.
package db

import "embed"

// Migrations holds the goose SQL migrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the files.
const MigrationsDir = "migrations"
