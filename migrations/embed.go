// Package migrations embeds the audit log schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
