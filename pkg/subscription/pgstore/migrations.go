package pgstore

import "embed"

// Migrations holds the goose migrations for the billing tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"
