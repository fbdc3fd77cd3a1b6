// Package db embeds the SQL schema applied by cmd/fluxia-migrate.
package db

import "embed"

// Migrations holds migrations/*.sql, applied in lexical order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
