package entity

import "time"

// ImportRecord is one committed import in the store's history. The row
// snapshot lets a byte-identical re-import be answered without re-running
// table reconstruction.
type ImportRecord struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	Hash       string         `json:"hash"`
	TotalRows  int            `json:"total_rows"`
	Rows       []ParsedJobRow `json:"rows"`
	ImportedAt time.Time      `json:"imported_at"`
}
