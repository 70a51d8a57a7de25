// Package migrations embeds the SQL schema migrations for the device-local
// SQLite database. Migrations are applied with goose at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
