package entity

import "github.com/jamesokelly/jobsheet-importer/constants"

// TextFragment is one positioned piece of text pulled from the PDF's
// vector text layer. Coordinates are in PDF points with the origin at the
// bottom-left of the page (higher Y is higher on the page).
type TextFragment struct {
	Text      string  `json:"text"`
	PageIndex int     `json:"page_index"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// ReconstructedRow is one logical table row recovered from the fragment
// cloud, keyed by column. Cell values may span multiple source lines.
type ReconstructedRow struct {
	Cells     map[constants.Column]string `json:"cells"`
	PageIndex int                         `json:"page_index"`
	RowIndex  int                         `json:"row_index"`
}

// Cell returns the raw text for a column, empty if the column was blank.
func (r ReconstructedRow) Cell(col constants.Column) string {
	if r.Cells == nil {
		return ""
	}
	return r.Cells[col]
}

// Empty reports whether every cell is blank. Structurally empty rows are
// dropped before field parsing.
func (r ReconstructedRow) Empty() bool {
	for _, v := range r.Cells {
		if v != "" {
			return false
		}
	}
	return true
}
