// Package repository persists the job store and the import history in an
// embedded sqlite database.
package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jamesokelly/jobsheet-importer/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	wip_number  TEXT NOT NULL DEFAULT '',
	vehicle_reg TEXT NOT NULL DEFAULT '',
	vhc_status  TEXT NOT NULL DEFAULT 'N/A',
	description TEXT NOT NULL DEFAULT '',
	aws         INTEGER NOT NULL DEFAULT 0,
	minutes     INTEGER NOT NULL DEFAULT 0,
	job_date    TEXT NOT NULL DEFAULT '',
	job_time    TEXT NOT NULL DEFAULT '',
	logged_at   TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_wip ON jobs(wip_number);

CREATE TABLE IF NOT EXISTS imports (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	hash        TEXT NOT NULL UNIQUE,
	total_rows  INTEGER NOT NULL,
	rows_json   TEXT NOT NULL,
	imported_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_imports_hash ON imports(hash);
`

// Open opens (or creates) the sqlite database and bootstraps the schema.
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Infow("db.open", "path", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "open sqlite")
	}
	// modernc sqlite is single-writer; keep the pool at one connection to
	// avoid SQLITE_BUSY under the transactional commit.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "bootstrap schema")
	}
	return db, nil
}

// Close closes the database connection gracefully.
func Close(db *sql.DB, logger *zap.SugaredLogger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil && logger != nil {
		logger.Errorw("db.close.failed", "err", err)
	}
}

// HealthCheck pings the database to catch path/permission issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}
