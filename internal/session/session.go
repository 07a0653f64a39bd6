// Package session orchestrates one PDF import end to end: extraction,
// table reconstruction, field parsing, scoring, reconciliation, preview
// edits and the final transactional commit. The result is handed back to
// the caller directly; nothing is stashed in ambient state.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
	"github.com/jamesokelly/jobsheet-importer/internal/parse"
	"github.com/jamesokelly/jobsheet-importer/internal/reconcile"
	"github.com/jamesokelly/jobsheet-importer/internal/table"
)

// Store is the slice of the persistence layer the session needs.
type Store interface {
	GetAll(ctx context.Context) ([]entity.Job, error)
	CommitBatch(ctx context.Context, jobs []entity.Job, rec entity.ImportRecord) error
	FindByHash(ctx context.Context, hash string) (*entity.ImportRecord, error)
}

// Extractor pulls positioned text fragments out of raw PDF bytes.
type Extractor interface {
	Extract(ctx context.Context, content []byte) ([]entity.TextFragment, error)
}

// ProgressFunc receives transient progress values. Only the latest value
// matters; the final value for a session is always complete or error.
type ProgressFunc func(entity.ImportProgress)

// Session is a single in-flight import. All methods are safe for
// concurrent use, though processing itself is single-threaded.
type Session struct {
	id            uuid.UUID
	log           *zap.SugaredLogger
	store         Store
	extractor     Extractor
	reconstructor *table.Reconstructor
	parser        *parse.Parser
	scorer        *parse.Scorer
	reconciler    *reconcile.Reconciler
	progress      ProgressFunc
	release       func()

	mu       sync.Mutex
	status   constants.ImportStatus
	result   *entity.ImportResult
	existing []entity.Job
}

// ID is the session handle.
func (s *Session) ID() uuid.UUID { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() constants.ImportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the import result once the session has reached preview.
func (s *Session) Result() *entity.ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Run parses the file and reconciles it against the job store, leaving
// the session in preview (even with zero rows) or error. The result is
// returned to the caller; the session keeps it only for edits and commit.
func (s *Session) Run(ctx context.Context, filename string, content []byte) (*entity.ImportResult, error) {
	s.mu.Lock()
	if s.status != constants.StatusIdle {
		s.mu.Unlock()
		return nil, common.ErrBadState
	}
	s.status = constants.StatusParsing
	s.mu.Unlock()

	res := &entity.ImportResult{Filename: filepath.Base(filename)}

	sum := sha256.Sum256(content)
	res.Hash = hex.EncodeToString(sum[:])

	// A byte-identical re-import is answered from the stored snapshot:
	// every row is a known duplicate, nothing is re-reconstructed.
	if prev, err := s.store.FindByHash(ctx, res.Hash); err == nil && prev != nil {
		return s.shortCircuit(ctx, res, prev)
	} else if err != nil {
		return s.fail(res, common.WrapError(err, "lookup import history"))
	}

	s.emit(constants.StatusParsing, constants.StageExtract, 0, 0, "extracting text layer")
	frags, err := s.extractor.Extract(ctx, content)
	if err != nil {
		res.ParseLog = append(res.ParseLog, entity.ParseLogEntry{
			Level: entity.LogError, Message: "could not read PDF", RawData: err.Error(),
		})
		return s.fail(res, err)
	}
	if len(frags) == 0 {
		// Empty text layer: most likely a pure scanned image. Not fatal;
		// the preview offers the log instead of rows.
		res.ParseLog = append(res.ParseLog, entity.ParseLogEntry{
			Level:   entity.LogWarning,
			Message: "no extractable text layer found; if this is a scanned document the table cannot be recovered",
		})
		return s.preview(res, nil)
	}
	res.ParseLog = append(res.ParseLog, entity.ParseLogEntry{
		Level: entity.LogInfo, Message: fmt.Sprintf("extracted %d text fragments", len(frags)),
	})

	s.emit(constants.StatusParsing, constants.StageReconstruct, 0, 0, "reconstructing table rows")
	recRows := s.reconstructor.Reconstruct(frags)
	res.ParseLog = append(res.ParseLog, entity.ParseLogEntry{
		Level: entity.LogInfo, Message: fmt.Sprintf("reconstructed %d table rows", len(recRows)),
	})

	rows := make([]entity.ParsedJobRow, 0, len(recRows))
	for i, rr := range recRows {
		if err := ctx.Err(); err != nil {
			return s.fail(res, err)
		}
		row, entries := s.parser.ParseRow(rr)
		s.scorer.Score(&row)
		rows = append(rows, row)
		res.ParseLog = append(res.ParseLog, entries...)
		// Cooperative checkpoint: one progress event per row, never
		// interrupting a row mid-computation.
		s.emit(constants.StatusParsing, constants.StageParse, i+1, len(recRows), "")
	}

	s.emit(constants.StatusParsing, constants.StageReconcile, len(rows), len(rows), "reconciling against job store")
	existing, err := s.store.GetAll(ctx)
	if err != nil {
		return s.fail(res, common.WrapError(err, "load job store"))
	}
	s.reconciler.Reconcile(rows, existing)

	s.mu.Lock()
	s.existing = existing
	s.mu.Unlock()

	return s.preview(res, rows)
}

// Commit applies the reconciled actions to the job store, all or nothing.
// It refuses while more than one non-skipped row shares a WIP number.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.status != constants.StatusPreview {
		s.mu.Unlock()
		return common.ErrBadState
	}
	res := s.result
	s.status = constants.StatusImporting
	s.mu.Unlock()

	if dups := reconcile.UnresolvedDuplicateWIPs(res.Rows); len(dups) > 0 {
		s.mu.Lock()
		s.status = constants.StatusPreview
		s.mu.Unlock()
		return common.NewAppError("DUPLICATE_WIP",
			fmt.Sprintf("unresolved duplicate WIP numbers: %v", dups), common.ErrDuplicateWIP)
	}

	s.emit(constants.StatusImporting, constants.StageCommit, 0, len(res.Rows), "committing batch")

	now := time.Now()
	var jobs []entity.Job
	for _, row := range res.Rows {
		if row.Action == constants.ActionCreate || row.Action == constants.ActionUpdate {
			jobs = append(jobs, row.ToJob(now))
		}
	}
	rec := entity.ImportRecord{
		ID:         uuid.NewString(),
		Filename:   res.Filename,
		Hash:       res.Hash,
		TotalRows:  len(res.Rows),
		Rows:       res.Rows,
		ImportedAt: now,
	}

	if err := s.store.CommitBatch(ctx, jobs, rec); err != nil {
		s.mu.Lock()
		s.status = constants.StatusError
		s.mu.Unlock()
		s.emit(constants.StatusError, constants.StageCommit, 0, len(res.Rows), "commit failed")
		s.done()
		return common.WrapError(err, "commit batch")
	}

	s.mu.Lock()
	s.status = constants.StatusComplete
	s.mu.Unlock()
	s.emit(constants.StatusComplete, constants.StageCommit, len(res.Rows), len(res.Rows), "import complete")
	if s.log != nil {
		s.log.Infow("session.commit.ok", "session_id", s.id.String(), "jobs", len(jobs), "rows", len(res.Rows))
	}
	s.done()
	return nil
}

// Discard abandons a previewed result without touching the store and
// frees the in-flight slot. Discarding a preview is terminal: observers
// of the progress stream always see a final complete or error value.
func (s *Session) Discard() {
	s.mu.Lock()
	wasPreview := s.status == constants.StatusPreview
	if wasPreview || s.status == constants.StatusIdle {
		if wasPreview {
			s.status = constants.StatusComplete
		}
		s.result = nil
	}
	s.mu.Unlock()
	if wasPreview {
		s.emit(constants.StatusComplete, "", 0, 0, "import discarded; nothing committed")
	}
	s.done()
}

func (s *Session) shortCircuit(ctx context.Context, res *entity.ImportResult, prev *entity.ImportRecord) (*entity.ImportResult, error) {
	// Edits after the replay still reconcile against the real collection,
	// so the store snapshot is loaded here as it would be on a full parse.
	existing, err := s.store.GetAll(ctx)
	if err != nil {
		return s.fail(res, common.WrapError(err, "load job store"))
	}
	s.mu.Lock()
	s.existing = existing
	s.mu.Unlock()

	rows := make([]entity.ParsedJobRow, len(prev.Rows))
	copy(rows, prev.Rows)
	for i := range rows {
		rows[i].Action = constants.ActionSkip
		rows[i].Duplicate = true
	}
	res.ParseLog = append(res.ParseLog, entity.ParseLogEntry{
		Level: entity.LogWarning,
		Message: fmt.Sprintf("identical file already imported as %q on %s; all rows treated as duplicates",
			prev.Filename, prev.ImportedAt.Format("02/01/2006 15:04")),
	})
	if s.log != nil {
		s.log.Infow("session.reimport.detected", "session_id", s.id.String(), "hash", res.Hash)
	}
	return s.preview(res, rows)
}

func (s *Session) preview(res *entity.ImportResult, rows []entity.ParsedJobRow) (*entity.ImportResult, error) {
	res.Rows = rows
	res.Recount()

	s.mu.Lock()
	s.result = res
	s.status = constants.StatusPreview
	s.mu.Unlock()

	s.emit(constants.StatusPreview, "", len(rows), len(rows), "ready for review")
	if s.log != nil {
		s.log.Infow("session.parse.ok",
			"session_id", s.id.String(),
			"file", res.Filename,
			"rows", res.Summary.TotalRows,
			"invalid", res.Summary.InvalidRows,
			"duplicates", res.Summary.Duplicates,
		)
	}
	return res, nil
}

func (s *Session) fail(res *entity.ImportResult, err error) (*entity.ImportResult, error) {
	s.mu.Lock()
	s.result = res
	s.status = constants.StatusError
	s.mu.Unlock()

	s.emit(constants.StatusError, "", 0, 0, err.Error())
	if s.log != nil {
		s.log.Errorw("session.parse.failed", "session_id", s.id.String(), "err", err)
	}
	s.done()
	return nil, err
}

func (s *Session) emit(status constants.ImportStatus, stage constants.Stage, cur, total int, msg string) {
	if s.progress == nil {
		return
	}
	s.progress(entity.ImportProgress{
		Status:     status,
		Stage:      stage,
		CurrentRow: cur,
		TotalRows:  total,
		Message:    msg,
	})
}

// done frees the manager's in-flight slot; safe to call more than once.
func (s *Session) done() {
	if s.release != nil {
		s.release()
	}
}
