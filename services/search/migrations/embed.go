// Package migrations holds the schema of the market-context database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
