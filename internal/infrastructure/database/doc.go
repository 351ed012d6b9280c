// Package database provides the SQLite connection behind the command audit log.
//
// Migrations are embedded SQL files named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
// Each migration runs in its own transaction and is recorded in
// schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
