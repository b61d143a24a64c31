// Package db provides embedded database migrations and seed data.
package db

import "embed"

// Migrations holds the versioned schema migrations in golang-migrate layout.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Products is the default catalog in JSON form.
//
//go:embed seed/products.json
var Products []byte
