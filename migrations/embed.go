// Package migrations embeds the task store schema migrations for Goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
