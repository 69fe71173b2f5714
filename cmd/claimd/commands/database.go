package commands

import (
	"database/sql"

	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/db"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/logger"
)

// openDatabase opens and migrates the claimd database. If dbPath is empty,
// the configured path is used.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration")
		}
		dbPath = cfg.Database.Path
		if dbPath == "" {
			dbPath = "claimd.db"
		}
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}
