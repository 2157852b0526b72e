// Package migrations embeds the schema owned by the archive tool.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
