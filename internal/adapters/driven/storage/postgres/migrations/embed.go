// Package migrations holds the versioned PostgreSQL schema, applied with
// golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
