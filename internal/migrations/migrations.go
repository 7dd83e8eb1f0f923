// Package migrations embeds the goose SQL migrations for the local store.
//
// The schema is versioned: goose tracks applied steps in its own version
// table, every step is idempotent, and a database with missing collections
// is treated as "run migrations", never as an error.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
