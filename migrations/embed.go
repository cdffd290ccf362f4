// Package migrations embeds the params partition schema into the binary.
package migrations

import "embed"

// FS holds the migration files at its root; pass "." as the directory
// to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
