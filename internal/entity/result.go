package entity

import "github.com/jamesokelly/jobsheet-importer/constants"

// LogLevel classifies parse log entries.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// ParseLogEntry is one append-only diagnostic record. RawData carries the
// offending source text when a field could not be parsed.
type ParseLogEntry struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
	RawData string   `json:"raw_data,omitempty"`
}

// ImportSummary aggregates the parse outcome for the preview header.
type ImportSummary struct {
	TotalRows   int `json:"total_rows"`
	ValidRows   int `json:"valid_rows"`
	InvalidRows int `json:"invalid_rows"`
	Duplicates  int `json:"duplicates"`
}

// ImportResult is the atomic hand-off value from a finished parse: the
// rows, their diagnostic trail, and enough provenance to detect a
// byte-identical re-import.
type ImportResult struct {
	Filename string          `json:"filename"`
	Hash     string          `json:"hash"` // sha256 of the source file, hex
	Rows     []ParsedJobRow  `json:"rows"`
	ParseLog []ParseLogEntry `json:"parse_log"`
	Summary  ImportSummary   `json:"summary"`
}

// Recount recomputes the summary from the rows. Called after parsing,
// reconciliation, and every edit.
func (r *ImportResult) Recount() {
	s := ImportSummary{TotalRows: len(r.Rows)}
	for _, row := range r.Rows {
		if len(row.ValidationErrors) == 0 {
			s.ValidRows++
		} else {
			s.InvalidRows++
		}
		if row.Duplicate {
			s.Duplicates++
		}
	}
	r.Summary = s
}

// ImportProgress is the transient value emitted while a session runs.
// Only the latest value matters to an observer.
type ImportProgress struct {
	Status     constants.ImportStatus `json:"status"`
	Stage      constants.Stage        `json:"stage,omitempty"`
	CurrentRow int                    `json:"current_row"`
	TotalRows  int                    `json:"total_rows"`
	Message    string                 `json:"message,omitempty"`
}
