// Package coredb holds all the migrations for the inventory database
package coredb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every numbered migration file registers into.
var Migrations = migrate.NewMigrations()
