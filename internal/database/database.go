// Package database keeps the analysis run history in SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	_ "modernc.org/sqlite"
)

// DB wraps the history database handle
type DB struct {
	handler  *sql.DB
	log      zerolog.Logger
	lock     sync.RWMutex
	squirrel sq.StatementBuilderType
}

// NewDB opens (creating if needed) the history database in dir and migrates it
func NewDB(dir string, log zerolog.Logger) (*DB, error) {
	var (
		err error
		DSN = filepath.Join(dir, domain.HistoryDatabase) + "?_pragma=busy_timeout%3d1000"
	)

	handler, err := sql.Open("sqlite", DSN)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}

	if _, err = handler.Exec(`PRAGMA journal_mode = wal;`); err != nil {
		handler.Close()
		return nil, errors.Wrap(err, "unable to enable WAL mode")
	}

	db := newDB(handler, log)
	if err := db.Migrate(); err != nil {
		handler.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return db, nil
}

func newDB(handler *sql.DB, log zerolog.Logger) *DB {
	return &DB{
		handler:  handler,
		log:      log.With().Str("module", "database").Logger(),
		squirrel: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates or upgrades the schema based on PRAGMA user_version
func (db *DB) Migrate() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	var version int
	if err := db.handler.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "failed to query schema version")
	}

	if version == len(historyMigrations) {
		return nil
	} else if version > len(historyMigrations) {
		return errors.Errorf("history database schema version (%d) is newer than supported (%d)", version, len(historyMigrations))
	}

	db.log.Info().Msgf("Beginning database schema upgrade from version %v to version: %v", version, len(historyMigrations))

	tx, err := db.handler.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if version == 0 {
		if _, err := tx.Exec(historySchema); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
		db.log.Info().Msg("Created initial history database schema")
	} else {
		for i := version; i < len(historyMigrations); i++ {
			if historyMigrations[i] == "" {
				continue
			}
			db.log.Info().Msgf("Upgrading history database schema to version: %v", i+1)
			if _, err := tx.Exec(historyMigrations[i]); err != nil {
				return errors.Wrapf(err, "failed to execute migration #%v", i)
			}
		}
	}

	if _, err = tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(historyMigrations))); err != nil {
		return errors.Wrap(err, "failed to bump schema version")
	}

	db.log.Info().Msgf("Database schema upgraded to version: %v", len(historyMigrations))
	return tx.Commit()
}

// Close optimizes and closes the database
func (db *DB) Close() error {
	if _, err := db.handler.Exec(`PRAGMA optimize;`); err != nil {
		return errors.Wrap(err, "query planner optimization")
	}

	return db.handler.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.handler.PingContext(ctx)
}
