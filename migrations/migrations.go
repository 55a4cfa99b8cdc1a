// Package migrations embeds the goose SQL migrations for the DKN schema.
// Every file must stay portable between SQLite and PostgreSQL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
