// Package migrations embeds the goose SQL migrations for the allocation schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
