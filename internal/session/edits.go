package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
	"github.com/jamesokelly/jobsheet-importer/internal/parse"
)

// BulkEdit is the closed set of operations the preview can apply to a row
// selection. Invalid operation/value combinations are unrepresentable.
type BulkEdit interface {
	isBulkEdit()
}

// SetVHC sets the VHC status for every selected row.
type SetVHC struct {
	Status constants.VHCStatus
}

// FindReplace replaces text within the selected rows' descriptions.
type FindReplace struct {
	Find    string
	Replace string
}

// ClearAWs zeroes the allocated work (and therefore minutes) for every
// selected row.
type ClearAWs struct{}

func (SetVHC) isBulkEdit()      {}
func (FindReplace) isBulkEdit() {}
func (ClearAWs) isBulkEdit()    {}

const dateTimeLayout = "02/01/2006 15:04"

// EditCell applies a single-cell edit to a previewed row, updates that
// field's validation state, re-scores the row and re-runs reconciliation
// (the identity key may have changed). Errors on untouched fields keep
// their provenance; only the edited column's error is cleared or set.
// Returns the updated row; its ID can change when the WIP number does.
func (s *Session) EditCell(rowID string, column constants.Column, value string) (entity.ParsedJobRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != constants.StatusPreview {
		return entity.ParsedJobRow{}, common.ErrBadState
	}

	idx := s.rowIndexLocked(rowID)
	if idx < 0 {
		return entity.ParsedJobRow{}, common.NewAppError("ROW_NOT_FOUND", rowID, common.ErrNotFound)
	}
	row := &s.result.Rows[idx]
	value = strings.TrimSpace(value)

	switch column {
	case constants.ColWIP:
		if value == "" {
			row.WIPNumber = ""
			row.SetFieldError(constants.ColWIP, fmt.Sprintf("row %d: WIP number missing", row.SourceRow+1))
		} else {
			wip, ok := parse.ParseWIP(value)
			if !ok {
				return entity.ParsedJobRow{}, common.NewAppError("EDIT_INVALID",
					"WIP number must reduce to exactly 5 digits", common.ErrInvalidInput)
			}
			row.WIPNumber = wip
			row.SetFieldError(constants.ColWIP, "")
		}
	case constants.ColReg:
		row.VehicleReg = parse.NormalizeReg(value)
		if row.VehicleReg != "" && !parse.ValidRegShape(row.VehicleReg) {
			row.SetFieldError(constants.ColReg,
				fmt.Sprintf("row %d: vehicle registration %q has an unrecognized format", row.SourceRow+1, row.VehicleReg))
		} else {
			row.SetFieldError(constants.ColReg, "")
		}
	case constants.ColVHC:
		status, _ := parse.MatchVHC(value)
		row.VHCStatus = status
	case constants.ColDescription:
		row.JobDescription = value
	case constants.ColAWs:
		if value == "" {
			row.SetAWs(0)
		} else {
			aws, ok := parse.ParseAWs(value)
			if !ok {
				return entity.ParsedJobRow{}, common.NewAppError("EDIT_INVALID",
					"AWS must be a non-negative integer", common.ErrInvalidInput)
			}
			row.SetAWs(aws)
		}
		row.SetFieldError(constants.ColAWs, "")
	case constants.ColDateTime:
		if value == "" {
			row.LoggedAt = time.Time{}
			row.JobDate = ""
			row.JobTime = ""
		} else {
			ts, err := time.ParseInLocation(dateTimeLayout, value, time.Local)
			if err != nil {
				return entity.ParsedJobRow{}, common.NewAppError("EDIT_INVALID",
					"date & time must be DD/MM/YYYY HH:mm", common.ErrInvalidInput)
			}
			row.LoggedAt = ts
			row.JobDate = ts.Format("02/01/2006")
			row.JobTime = ts.Format("15:04")
		}
		row.SetFieldError(constants.ColDateTime, "")
	default:
		return entity.ParsedJobRow{}, common.NewAppError("EDIT_INVALID",
			fmt.Sprintf("column %q is not editable", column), common.ErrInvalidInput)
	}

	row.DeriveID()
	s.scorer.Score(row)
	s.reconcileLocked()
	return s.result.Rows[idx], nil
}

// ApplyBulkEdit applies one operation to the selected rows. Touched rows
// are re-scored; reconciliation is re-run once at the end. Returns the
// number of rows changed.
func (s *Session) ApplyBulkEdit(edit BulkEdit, rowIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != constants.StatusPreview {
		return 0, common.ErrBadState
	}

	selected := make(map[string]bool, len(rowIDs))
	for _, id := range rowIDs {
		selected[id] = true
	}

	changed := 0
	for i := range s.result.Rows {
		row := &s.result.Rows[i]
		if !selected[row.ID] {
			continue
		}
		switch e := edit.(type) {
		case SetVHC:
			row.VHCStatus = e.Status
		case FindReplace:
			if e.Find == "" {
				return 0, common.NewAppError("EDIT_INVALID", "find text is required", common.ErrInvalidInput)
			}
			row.JobDescription = strings.ReplaceAll(row.JobDescription, e.Find, e.Replace)
		case ClearAWs:
			row.SetAWs(0)
			row.SetFieldError(constants.ColAWs, "")
		default:
			return 0, common.NewAppError("EDIT_INVALID", "unknown bulk edit", common.ErrInvalidInput)
		}
		s.scorer.Score(row)
		changed++
	}

	if changed > 0 {
		s.reconcileLocked()
	}
	return changed, nil
}

// SetRowAction overrides a row's reconciled action; marking one of a
// duplicate pair as Skip is how the duplicate gate is resolved.
func (s *Session) SetRowAction(rowID string, action constants.RowAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != constants.StatusPreview {
		return common.ErrBadState
	}
	idx := s.rowIndexLocked(rowID)
	if idx < 0 {
		return common.NewAppError("ROW_NOT_FOUND", rowID, common.ErrNotFound)
	}
	switch action {
	case constants.ActionCreate, constants.ActionUpdate, constants.ActionSkip:
		s.result.Rows[idx].Action = action
	default:
		return common.NewAppError("EDIT_INVALID", "unknown row action", common.ErrInvalidInput)
	}
	s.result.Recount()
	return nil
}

// ResolveDuplicateWIPs keeps the first row of each duplicate WIP group
// and marks the rest Skip, the standard resolution the preview offers.
// Rows of a group share a derived ID, so resolution works positionally
// here rather than through SetRowAction. Returns the number of rows
// skipped.
func (s *Session) ResolveDuplicateWIPs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != constants.StatusPreview {
		return 0, common.ErrBadState
	}

	seen := map[string]bool{}
	skipped := 0
	for i := range s.result.Rows {
		row := &s.result.Rows[i]
		if row.WIPNumber == "" || !row.Duplicate {
			continue
		}
		if seen[row.WIPNumber] {
			if row.Action != constants.ActionSkip {
				row.Action = constants.ActionSkip
				skipped++
			}
			continue
		}
		seen[row.WIPNumber] = true
	}

	if skipped > 0 {
		s.result.Recount()
	}
	return skipped, nil
}

// reconcileLocked re-runs reconciliation against the store snapshot
// cached at parse time and refreshes the summary.
func (s *Session) reconcileLocked() {
	s.reconciler.Reconcile(s.result.Rows, s.existing)
	s.result.Recount()
}

func (s *Session) rowIndexLocked(rowID string) int {
	for i := range s.result.Rows {
		if s.result.Rows[i].ID == rowID {
			return i
		}
	}
	return -1
}
