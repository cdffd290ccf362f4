// Package database provides SQLite connectivity for the params partitions.
//
// Each partition (primary, storage, tracking) is its own SQLite file opened
// with WAL mode and a busy timeout so managed processes can read params
// while the manager writes them.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Params.Primary.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Migrations are additive-only. Each migration has a .up.sql file and
// optionally a .down.sql file, named YYYYMMDD_HHMMSS_description.
package database
