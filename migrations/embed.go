// Package migrations carries the schema as embedded SQL for golang-migrate.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

const Dir = "sql"
