// Package migrations embeds the identity store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
