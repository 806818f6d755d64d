// Package migrations embeds the golang-migrate SQL files so the server binary
// and integration tests apply the same schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
