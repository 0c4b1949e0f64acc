// Package migrations embeds the SQL schema of the Minutes database.
//
// Files are named NNN_description.up.sql / .down.sql and applied in order.
package migrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
