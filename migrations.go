// Package qrshield holds assets embedded into the binary.
package qrshield

import "embed"

// Migrations contains the goose SQL migrations for the PostgreSQL cache backend.
//
//go:embed migrations/*.sql
var Migrations embed.FS
