// Package migrations embeds the schema migration files so the binary is
// self-contained.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
