package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

// JobRepository is the behavior the session depends on: read the whole
// collection, and commit a reconciled batch atomically.
type JobRepository interface {
	GetAll(ctx context.Context) ([]entity.Job, error)
	SaveAll(ctx context.Context, jobs []entity.Job) error
	// CommitBatch upserts the batch and records the import in one
	// transaction. Either everything lands or nothing does.
	CommitBatch(ctx context.Context, jobs []entity.Job, rec entity.ImportRecord) error
}

// ImportRepository exposes the import history used for re-import
// detection.
type ImportRepository interface {
	FindByHash(ctx context.Context, hash string) (*entity.ImportRecord, error)
	List(ctx context.Context) ([]entity.ImportRecord, error)
}

// SQLRepository implements both repositories over one sqlite handle.
type SQLRepository struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

func NewSQLRepository(db *sql.DB, log *zap.SugaredLogger) *SQLRepository {
	return &SQLRepository{db: db, log: log}
}

const timeLayout = time.RFC3339

func (r *SQLRepository) GetAll(ctx context.Context) ([]entity.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, wip_number, vehicle_reg, vhc_status, description,
		       aws, minutes, job_date, job_time, logged_at, created_at, updated_at
		FROM jobs ORDER BY wip_number, id`)
	if err != nil {
		return nil, common.WrapError(err, "query jobs")
	}
	defer rows.Close()

	var jobs []entity.Job
	for rows.Next() {
		var j entity.Job
		var vhc, loggedAt, createdAt, updatedAt string
		if err := rows.Scan(&j.ID, &j.WIPNumber, &j.VehicleReg, &vhc, &j.Description,
			&j.AWs, &j.Minutes, &j.JobDate, &j.JobTime, &loggedAt, &createdAt, &updatedAt); err != nil {
			return nil, common.WrapError(err, "scan job")
		}
		j.VHCStatus = constants.VHCStatus(vhc)
		j.LoggedAt = parseTime(loggedAt)
		j.CreatedAt = parseTime(createdAt)
		j.UpdatedAt = parseTime(updatedAt)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// SaveAll upserts the given jobs in one transaction. An existing job
// keeps its created_at.
func (r *SQLRepository) SaveAll(ctx context.Context, jobs []entity.Job) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertJobs(ctx, tx, jobs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.NewAppError("COMMIT_FAILED", "commit jobs", common.ErrCommitFailed)
	}
	return nil
}

func (r *SQLRepository) CommitBatch(ctx context.Context, jobs []entity.Job, rec entity.ImportRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertJobs(ctx, tx, jobs); err != nil {
		return err
	}
	if err := insertImport(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.NewAppError("COMMIT_FAILED", "commit batch", common.ErrCommitFailed)
	}
	if r.log != nil {
		r.log.Infow("repo.commit.ok", "jobs", len(jobs), "hash", rec.Hash)
	}
	return nil
}

func upsertJobs(ctx context.Context, tx *sql.Tx, jobs []entity.Job) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO jobs (id, wip_number, vehicle_reg, vhc_status, description,
		                  aws, minutes, job_date, job_time, logged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			wip_number  = excluded.wip_number,
			vehicle_reg = excluded.vehicle_reg,
			vhc_status  = excluded.vhc_status,
			description = excluded.description,
			aws         = excluded.aws,
			minutes     = excluded.minutes,
			job_date    = excluded.job_date,
			job_time    = excluded.job_time,
			logged_at   = excluded.logged_at,
			updated_at  = excluded.updated_at`)
	if err != nil {
		return common.WrapError(err, "prepare upsert")
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx, j.ID, j.WIPNumber, j.VehicleReg, string(j.VHCStatus),
			j.Description, j.AWs, j.Minutes, j.JobDate, j.JobTime,
			formatTime(j.LoggedAt), formatTime(j.CreatedAt), formatTime(j.UpdatedAt)); err != nil {
			return common.WrapError(err, "upsert job "+j.ID)
		}
	}
	return nil
}

func insertImport(ctx context.Context, tx *sql.Tx, rec entity.ImportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	snapshot, err := json.Marshal(rec.Rows)
	if err != nil {
		return common.WrapError(err, "marshal row snapshot")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, filename, hash, total_rows, rows_json, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			filename    = excluded.filename,
			total_rows  = excluded.total_rows,
			rows_json   = excluded.rows_json,
			imported_at = excluded.imported_at`,
		rec.ID, rec.Filename, rec.Hash, rec.TotalRows, string(snapshot), formatTime(rec.ImportedAt))
	return common.WrapError(err, "insert import record")
}

func (r *SQLRepository) FindByHash(ctx context.Context, hash string) (*entity.ImportRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, hash, total_rows, rows_json, imported_at
		FROM imports WHERE hash = ?`, hash)

	var rec entity.ImportRecord
	var rowsJSON, importedAt string
	err := row.Scan(&rec.ID, &rec.Filename, &rec.Hash, &rec.TotalRows, &rowsJSON, &importedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "query import by hash")
	}
	if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
		return nil, common.WrapError(err, "decode row snapshot")
	}
	rec.ImportedAt = parseTime(importedAt)
	return &rec, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]entity.ImportRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, hash, total_rows, imported_at
		FROM imports ORDER BY imported_at DESC`)
	if err != nil {
		return nil, common.WrapError(err, "query imports")
	}
	defer rows.Close()

	var recs []entity.ImportRecord
	for rows.Next() {
		var rec entity.ImportRecord
		var importedAt string
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Hash, &rec.TotalRows, &importedAt); err != nil {
			return nil, common.WrapError(err, "scan import record")
		}
		rec.ImportedAt = parseTime(importedAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
