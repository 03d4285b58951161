// Package migrations embeds the goose SQL migrations for the server and portalctl.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
