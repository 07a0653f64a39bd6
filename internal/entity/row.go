package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesokelly/jobsheet-importer/constants"
)

// rowNamespace seeds the deterministic row IDs so repeated imports of the
// same sheet converge on the same identity.
var rowNamespace = uuid.MustParse("9b1dc3e0-4f3a-4c8e-9a57-2f6f1f0a7d31")

// ParsedJobRow is the central entity of the import pipeline: one table row
// promoted to typed fields, with the validation trail needed for triage.
type ParsedJobRow struct {
	ID               string              `json:"id"`
	WIPNumber        string              `json:"wip_number"`
	VehicleReg       string              `json:"vehicle_reg"`
	VHCStatus        constants.VHCStatus `json:"vhc_status"`
	JobDescription   string              `json:"job_description"`
	AWs              int                 `json:"aws"`
	Minutes          int                 `json:"minutes"`
	JobDate          string              `json:"job_date"` // DD/MM/YYYY
	JobTime          string              `json:"job_time"` // HH:mm
	LoggedAt         time.Time           `json:"logged_at,omitempty"`
	Confidence       float64             `json:"confidence"`
	ValidationErrors []string            `json:"validation_errors,omitempty"`
	// FieldErrors keys each validation failure by the column it belongs
	// to, so a preview edit can clear exactly the edited field's error
	// and leave the rest of the row's trail alone.
	FieldErrors map[constants.Column]string `json:"field_errors,omitempty"`
	Action           constants.RowAction `json:"action,omitempty"`
	Duplicate        bool                `json:"duplicate,omitempty"`
	SourcePage       int                 `json:"source_page"`
	SourceRow        int                 `json:"source_row"`
}

// IdentityKey is the reconciliation key: WIP number when present, vehicle
// registration plus job date as a fallback. Empty when neither is usable.
func (r ParsedJobRow) IdentityKey() string {
	if r.WIPNumber != "" {
		return "wip:" + r.WIPNumber
	}
	if r.VehicleReg != "" && r.JobDate != "" {
		return "reg:" + r.VehicleReg + ":" + r.JobDate
	}
	return ""
}

// DeriveID assigns the stable row ID from the identity key. Rows with no
// usable key get a positional ID so they still round-trip through edits.
func (r *ParsedJobRow) DeriveID() {
	key := r.IdentityKey()
	if key == "" {
		key = fmt.Sprintf("row:%d:%d", r.SourcePage, r.SourceRow)
	}
	r.ID = uuid.NewSHA1(rowNamespace, []byte(key)).String()
}

// SetFieldError records (msg non-empty) or clears (msg empty) the
// validation failure for one column and rebuilds the flat error list in
// column order.
func (r *ParsedJobRow) SetFieldError(col constants.Column, msg string) {
	if msg == "" {
		if _, ok := r.FieldErrors[col]; !ok {
			return
		}
		delete(r.FieldErrors, col)
	} else {
		if r.FieldErrors == nil {
			r.FieldErrors = make(map[constants.Column]string)
		}
		r.FieldErrors[col] = msg
	}
	r.ValidationErrors = nil
	for _, c := range constants.TableColumns() {
		if m, ok := r.FieldErrors[c]; ok {
			r.ValidationErrors = append(r.ValidationErrors, m)
		}
	}
}

// SetAWs updates the allocated work units and re-derives minutes, keeping
// the minutes == aws*5 invariant.
func (r *ParsedJobRow) SetAWs(aws int) {
	if aws < 0 {
		aws = 0
	}
	r.AWs = aws
	r.Minutes = aws * constants.MinutesPerAW
}

// ToJob promotes the row to its committed form.
func (r ParsedJobRow) ToJob(now time.Time) Job {
	return Job{
		ID:          r.ID,
		WIPNumber:   r.WIPNumber,
		VehicleReg:  r.VehicleReg,
		VHCStatus:   r.VHCStatus,
		Description: r.JobDescription,
		AWs:         r.AWs,
		Minutes:     r.Minutes,
		JobDate:     r.JobDate,
		JobTime:     r.JobTime,
		LoggedAt:    r.LoggedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MatchesJob reports whether the row's technician-entered fields are
// identical to an existing job's.
func (r ParsedJobRow) MatchesJob(j Job) bool {
	return r.WIPNumber == j.WIPNumber &&
		r.VehicleReg == j.VehicleReg &&
		r.VHCStatus == j.VHCStatus &&
		r.JobDescription == j.Description &&
		r.AWs == j.AWs &&
		r.Minutes == j.Minutes &&
		r.JobDate == j.JobDate &&
		r.JobTime == j.JobTime
}
