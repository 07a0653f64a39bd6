package entity

import (
	"time"

	"github.com/jamesokelly/jobsheet-importer/constants"
)

// Job is the committed form of a parsed row, owned by the job store.
// Jobs are only ever created or updated through a reconciled commit.
type Job struct {
	ID          string              `json:"id"`
	WIPNumber   string              `json:"wip_number"`
	VehicleReg  string              `json:"vehicle_reg"`
	VHCStatus   constants.VHCStatus `json:"vhc_status"`
	Description string              `json:"description"`
	AWs         int                 `json:"aws"`
	Minutes     int                 `json:"minutes"`
	JobDate     string              `json:"job_date"` // DD/MM/YYYY as written on the sheet
	JobTime     string              `json:"job_time"` // HH:mm
	LoggedAt    time.Time           `json:"logged_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Equal reports whether the technician-entered fields match. Bookkeeping
// timestamps are ignored; a row that matches an existing job in all of
// these is a Skip.
func (j Job) Equal(other Job) bool {
	return j.WIPNumber == other.WIPNumber &&
		j.VehicleReg == other.VehicleReg &&
		j.VHCStatus == other.VHCStatus &&
		j.Description == other.Description &&
		j.AWs == other.AWs &&
		j.Minutes == other.Minutes &&
		j.JobDate == other.JobDate &&
		j.JobTime == other.JobTime
}
