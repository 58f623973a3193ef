// Package migrations embeds the goose migration scripts so the migrate
// command ships as a single binary.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
