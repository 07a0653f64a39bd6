package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
	"github.com/jamesokelly/jobsheet-importer/internal/extract"
	"github.com/jamesokelly/jobsheet-importer/internal/table"
)

type fakeStore struct {
	jobs      []entity.Job
	imports   map[string]*entity.ImportRecord
	committed [][]entity.Job
	getErr    error
	commitErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{imports: map[string]*entity.ImportRecord{}}
}

func (f *fakeStore) GetAll(ctx context.Context) ([]entity.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]entity.Job(nil), f.jobs...), nil
}

func (f *fakeStore) CommitBatch(ctx context.Context, jobs []entity.Job, rec entity.ImportRecord) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, jobs)
	for _, j := range jobs {
		replaced := false
		for i := range f.jobs {
			if f.jobs[i].ID == j.ID {
				f.jobs[i] = j
				replaced = true
				break
			}
		}
		if !replaced {
			f.jobs = append(f.jobs, j)
		}
	}
	stored := rec
	f.imports[rec.Hash] = &stored
	return nil
}

func (f *fakeStore) FindByHash(ctx context.Context, hash string) (*entity.ImportRecord, error) {
	return f.imports[hash], nil
}

type fakeExtractor struct {
	frags []entity.TextFragment
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, content []byte) ([]entity.TextFragment, error) {
	f.calls++
	return f.frags, f.err
}

func frag(text string, x, y, w float64) entity.TextFragment {
	return entity.TextFragment{Text: text, PageIndex: 0, X: x, Y: y, Width: w, Height: 10}
}

// sheetLine lays one row onto the default template's column bands.
func sheetLine(y float64, wip, reg, vhc, desc, aws, date string) []entity.TextFragment {
	var frags []entity.TextFragment
	add := func(text string, x, w float64) {
		if text != "" {
			frags = append(frags, frag(text, x, y, w))
		}
	}
	add(wip, 40, 30)
	add(reg, 120, 45)
	add(vhc, 200, 35)
	add(desc, 260, 120)
	add(aws, 560, 15)
	add(date, 700, 80)
	return frags
}

// threeRowSheet: a clean row, a same-WIP duplicate, and a row with no WIP
// and zero allocated work.
func threeRowSheet() []entity.TextFragment {
	var frags []entity.TextFragment
	frags = append(frags, sheetLine(700, "12345", "AB12CDE", "Green", "Brake pads", "10", "01/06/2025 09:30")...)
	frags = append(frags, sheetLine(680, "12345", "AB12CDE", "Green", "Brake pads", "10", "01/06/2025 09:30")...)
	frags = append(frags, sheetLine(660, "", "XY99ZZZ", "", "Wiper blades", "0", "01/06/2025 11:00")...)
	return frags
}

func newTestManager(store Store, ex Extractor) *Manager {
	return NewManager(nil, store, ex, table.DefaultTemplate(), 6.0, common.ScoringConfig{})
}

func mustRun(t *testing.T, mgr *Manager, progress ProgressFunc, content []byte) (*Session, *entity.ImportResult) {
	t.Helper()
	sess, err := mgr.Begin(progress)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	res, err := sess.Run(context.Background(), "sheet.pdf", content)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sess, res
}

func TestRunProducesPreview(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)

	var events []entity.ImportProgress
	sess, res := mustRun(t, mgr, func(p entity.ImportProgress) { events = append(events, p) }, []byte("sheet-v1"))

	if sess.Status() != constants.StatusPreview {
		t.Fatalf("status = %v, want preview", sess.Status())
	}
	if res.Summary.TotalRows != 3 || res.Summary.ValidRows != 2 || res.Summary.InvalidRows != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if res.Summary.Duplicates != 2 {
		t.Errorf("duplicates = %d, want both rows of the shared WIP flagged", res.Summary.Duplicates)
	}

	clean := res.Rows[0]
	if clean.WIPNumber != "12345" || clean.Action != constants.ActionCreate || !clean.Duplicate {
		t.Errorf("first row = %+v", clean)
	}
	if clean.Confidence != 1.0 {
		t.Errorf("clean row confidence = %v, want 1.0", clean.Confidence)
	}
	if clean.Minutes != 50 {
		t.Errorf("clean row minutes = %d, want aws*5", clean.Minutes)
	}

	broken := res.Rows[2]
	if broken.WIPNumber != "" || broken.AWs != 0 || len(broken.ValidationErrors) == 0 {
		t.Errorf("third row = %+v", broken)
	}
	if math.Abs(broken.Confidence-0.35) > 1e-9 {
		t.Errorf("third row confidence = %v, want 0.35 (missing WIP and zero AWS)", broken.Confidence)
	}
	if constants.BucketFor(broken.Confidence) != constants.BucketLow {
		t.Errorf("third row bucket = %v, want low", constants.BucketFor(broken.Confidence))
	}
	if broken.Action != constants.ActionCreate || broken.Duplicate {
		t.Errorf("third row action/duplicate = %v/%v", broken.Action, broken.Duplicate)
	}

	parseEvents := 0
	for _, p := range events {
		if p.Stage == constants.StageParse {
			parseEvents++
		}
	}
	if parseEvents != 3 {
		t.Errorf("parse progress events = %d, want one per row", parseEvents)
	}
	last := events[len(events)-1]
	if last.Status != constants.StatusPreview {
		t.Errorf("final progress status = %v, want preview", last.Status)
	}
}

func TestCommitBlockedUntilDuplicatesResolved(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)
	sess, res := mustRun(t, mgr, nil, []byte("sheet-v1"))

	err := sess.Commit(context.Background())
	if !errors.Is(err, common.ErrDuplicateWIP) {
		t.Fatalf("Commit err = %v, want ErrDuplicateWIP", err)
	}
	if sess.Status() != constants.StatusPreview {
		t.Fatalf("status after refused commit = %v, want preview", sess.Status())
	}
	if len(store.committed) != 0 {
		t.Fatal("refused commit must not touch the store")
	}

	// Skip one of the duplicate pair and the gate opens.
	if err := sess.SetRowAction(res.Rows[0].ID, constants.ActionSkip); err != nil {
		t.Fatalf("SetRowAction: %v", err)
	}
	if err := sess.Commit(context.Background()); err != nil {
		t.Fatalf("Commit after resolution: %v", err)
	}
	if sess.Status() != constants.StatusComplete {
		t.Fatalf("status = %v, want complete", sess.Status())
	}
	if len(store.committed) != 1 || len(store.committed[0]) != 2 {
		t.Fatalf("committed jobs = %+v, want the surviving Create rows", store.committed)
	}
	if store.imports[res.Hash] == nil {
		t.Error("commit must record the import for re-import detection")
	}
}

func TestReimportShortCircuitsFromSnapshot(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)
	content := []byte("sheet-v1")

	sess, res := mustRun(t, mgr, nil, content)
	if err := sess.SetRowAction(res.Rows[0].ID, constants.ActionSkip); err != nil {
		t.Fatalf("SetRowAction: %v", err)
	}
	if err := sess.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	_, res2 := mustRun(t, mgr, nil, content)
	if ex.calls != 1 {
		t.Fatalf("extractor calls = %d; a byte-identical re-import must replay the snapshot", ex.calls)
	}
	if res2.Summary.TotalRows != 3 || res2.Summary.Duplicates != 3 {
		t.Fatalf("summary = %+v, want every row a duplicate", res2.Summary)
	}
	for _, row := range res2.Rows {
		if row.Action != constants.ActionSkip || !row.Duplicate {
			t.Errorf("row %q action/duplicate = %v/%v, want Skip/true", row.ID, row.Action, row.Duplicate)
		}
	}
	warned := false
	for _, e := range res2.ParseLog {
		if e.Level == entity.LogWarning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected an already-imported warning in the parse log")
	}
}

func TestEditAfterReimportReconcilesAgainstStore(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)
	content := []byte("sheet-v1")

	sess, res := mustRun(t, mgr, nil, content)
	if err := sess.SetRowAction(res.Rows[0].ID, constants.ActionSkip); err != nil {
		t.Fatalf("SetRowAction: %v", err)
	}
	if err := sess.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	sess2, res2 := mustRun(t, mgr, nil, content)
	target := res2.Rows[2]
	updated, err := sess2.EditCell(target.ID, constants.ColDescription, "Washer blades")
	if err != nil {
		t.Fatalf("EditCell: %v", err)
	}
	if updated.Action != constants.ActionUpdate {
		t.Fatalf("edited replayed row action = %v, want Update against the stored job", updated.Action)
	}
	// Untouched replayed rows still match the store and stay Skip.
	if got := sess2.Result().Rows[1].Action; got != constants.ActionSkip {
		t.Errorf("untouched replayed row action = %v, want Skip", got)
	}
}

func TestReconcileAgainstExistingJobs(t *testing.T) {
	existing := entity.Job{
		ID:         "job-1",
		WIPNumber:  "12345",
		VehicleReg: "AB12CDE",
		VHCStatus:  constants.VHCGreen,
		AWs:        4,
		Minutes:    20,
		JobDate:    "01/06/2025",
		JobTime:    "09:30",
	}
	store := newFakeStore()
	store.jobs = []entity.Job{existing}
	ex := &fakeExtractor{frags: sheetLine(700, "12345", "AB12CDE", "Green", "", "10", "01/06/2025 09:30")}
	mgr := newTestManager(store, ex)

	_, res := mustRun(t, mgr, nil, []byte("sheet-v2"))
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(res.Rows))
	}
	row := res.Rows[0]
	if row.Action != constants.ActionUpdate {
		t.Fatalf("action = %v, want Update (AWS changed)", row.Action)
	}
	if row.ID != "job-1" {
		t.Errorf("row ID = %q, want the existing job's ID", row.ID)
	}
}

func TestSingleInFlightSession(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)

	sess, err := mgr.Begin(nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := mgr.Begin(nil); !errors.Is(err, common.ErrImportInFlight) {
		t.Fatalf("second Begin err = %v, want ErrImportInFlight", err)
	}

	sess.Discard()
	if _, err := mgr.Begin(nil); err != nil {
		t.Fatalf("Begin after discard: %v", err)
	}
}

func TestRunExtractorFailureReleasesSlot(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{err: common.NewAppError("PDF_OPEN", "open pdf", common.ErrUnreadablePDF)}
	mgr := newTestManager(store, ex)

	sess, err := mgr.Begin(nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := sess.Run(context.Background(), "bad.pdf", []byte("x")); !errors.Is(err, common.ErrUnreadablePDF) {
		t.Fatalf("Run err = %v, want ErrUnreadablePDF", err)
	}
	if sess.Status() != constants.StatusError {
		t.Fatalf("status = %v, want error", sess.Status())
	}
	if _, err := mgr.Begin(nil); err != nil {
		t.Fatalf("Begin after failed run: %v", err)
	}
}

func TestRunEmptyTextLayerPreviewsZeroRows(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{} // parses fine, no text layer
	mgr := newTestManager(store, ex)

	sess, res := mustRun(t, mgr, nil, []byte("scanned"))
	if sess.Status() != constants.StatusPreview {
		t.Fatalf("status = %v, want preview", sess.Status())
	}
	if res.Summary.TotalRows != 0 {
		t.Fatalf("rows = %d, want 0", res.Summary.TotalRows)
	}
	warned := false
	for _, e := range res.ParseLog {
		if e.Level == entity.LogWarning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a no-text-layer warning")
	}
}

func TestDiscardEmitsTerminalProgress(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)

	var events []entity.ImportProgress
	sess, _ := mustRun(t, mgr, func(p entity.ImportProgress) { events = append(events, p) }, []byte("sheet-v1"))

	sess.Discard()
	if sess.Status() != constants.StatusComplete {
		t.Fatalf("status = %v, want complete", sess.Status())
	}
	last := events[len(events)-1]
	if last.Status != constants.StatusComplete {
		t.Fatalf("final progress status = %v, want complete", last.Status)
	}
	if len(store.committed) != 0 {
		t.Error("discard must not touch the store")
	}
	if _, err := mgr.Begin(nil); err != nil {
		t.Errorf("Begin after discard: %v", err)
	}
}

func TestRunRefusedOutsideIdle(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{frags: threeRowSheet()}
	mgr := newTestManager(store, ex)
	sess, _ := mustRun(t, mgr, nil, []byte("sheet-v1"))

	if _, err := sess.Run(context.Background(), "sheet.pdf", []byte("sheet-v1")); !errors.Is(err, common.ErrBadState) {
		t.Fatalf("second Run err = %v, want ErrBadState", err)
	}
}

func TestExtractorContractWithRealImplementation(t *testing.T) {
	// The concrete extractor must satisfy the session's consumer interface.
	var _ Extractor = extract.NewExtractor(nil)
}
