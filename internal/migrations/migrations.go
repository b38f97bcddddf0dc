// Package migrations embeds the Journals database schema. Files are named
// NNN_description.sql and applied in version order by store.ApplyMigrations.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
