// Package migrations embeds the crowdfunding SQLite schema.
package migrations

import "embed"

// FS holds the ordered migration files.
//
//go:embed *.sql
var FS embed.FS
