// Package table recovers logical job sheet rows from the positioned
// fragment cloud: Y-band clustering into lines, column assignment against
// a header-derived or configured template, and stitching of wrapped cells.
package table

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

// Reconstructor clusters text fragments into table rows.
type Reconstructor struct {
	log          *zap.SugaredLogger
	tmpl         Template
	rowTolerance float64
}

// NewReconstructor builds a reconstructor around a fallback template.
// rowTolerance is the Y band (points) within which fragments belong to
// the same line; roughly one line height.
func NewReconstructor(log *zap.SugaredLogger, tmpl Template, rowTolerance float64) *Reconstructor {
	if rowTolerance <= 0 {
		rowTolerance = 6.0
	}
	if len(tmpl.Columns) == 0 {
		tmpl = DefaultTemplate()
	}
	return &Reconstructor{log: log, tmpl: tmpl, rowTolerance: rowTolerance}
}

var (
	rePartialHours   = regexp.MustCompile(`^\d+h$`)
	rePartialMinutes = regexp.MustCompile(`^\d+m$`)
)

// Reconstruct turns the fragment cloud into logical table rows, page by
// page in reading order. Structurally empty rows are dropped; header rows
// are consumed for column inference and never emitted.
func (r *Reconstructor) Reconstruct(frags []entity.TextFragment) []entity.ReconstructedRow {
	byPage := map[int][]entity.TextFragment{}
	var pages []int
	for _, f := range frags {
		if _, seen := byPage[f.PageIndex]; !seen {
			pages = append(pages, f.PageIndex)
		}
		byPage[f.PageIndex] = append(byPage[f.PageIndex], f)
	}
	sort.Ints(pages)

	var rows []entity.ReconstructedRow
	rowIndex := 0
	for _, page := range pages {
		pageRows := r.reconstructPage(page, byPage[page], &rowIndex)
		rows = append(rows, pageRows...)
	}

	if r.log != nil {
		r.log.Infow("table.reconstruct.ok", "fragments", len(frags), "rows", len(rows))
	}
	return rows
}

func (r *Reconstructor) reconstructPage(page int, frags []entity.TextFragment, rowIndex *int) []entity.ReconstructedRow {
	lines := r.clusterLines(frags)

	tmpl := r.tmpl
	pageRight := tmpl.rightEdge()
	if right := rightEdge(frags); right > pageRight {
		pageRight = right
	}

	var rows []entity.ReconstructedRow
	for _, line := range lines {
		if labels, ok := detectHeader(line); ok {
			// Header row fixes the column bands for the rest of the page.
			tmpl = fromHeader(labels, pageRight+headerSlack)
			continue
		}

		cells := assignCells(line, tmpl)
		row := entity.ReconstructedRow{Cells: cells, PageIndex: page, RowIndex: *rowIndex}
		if row.Empty() {
			continue
		}

		if len(rows) > 0 && isContinuation(row) {
			mergeContinuation(&rows[len(rows)-1], row)
			continue
		}

		rows = append(rows, row)
		*rowIndex++
	}
	return rows
}

// clusterLines groups a page's fragments into lines by Y proximity and
// returns them top of page first, each line sorted left to right.
func (r *Reconstructor) clusterLines(frags []entity.TextFragment) [][]entity.TextFragment {
	type bucket struct {
		yMin, yMax float64
		frags      []entity.TextFragment
	}
	var buckets []bucket

	for _, f := range frags {
		placed := false
		for i := range buckets {
			if f.Y >= buckets[i].yMin-r.rowTolerance && f.Y <= buckets[i].yMax+r.rowTolerance {
				buckets[i].frags = append(buckets[i].frags, f)
				if f.Y < buckets[i].yMin {
					buckets[i].yMin = f.Y
				}
				if f.Y > buckets[i].yMax {
					buckets[i].yMax = f.Y
				}
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{yMin: f.Y, yMax: f.Y, frags: []entity.TextFragment{f}})
		}
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].yMax > buckets[j].yMax })

	lines := make([][]entity.TextFragment, len(buckets))
	for i, b := range buckets {
		line := b.frags
		sort.Slice(line, func(x, y int) bool { return line[x].X < line[y].X })
		lines[i] = line
	}
	return lines
}

// detectHeader recognizes the column heading line: it must contain a WIP
// label plus at least one other known heading. Duplicate labels (the
// "Time" inside "Date & Time") keep their first occurrence only.
func detectHeader(line []entity.TextFragment) ([]headerLabel, bool) {
	var labels []headerLabel
	seen := map[constants.Column]bool{}
	for _, f := range line {
		col, ok := matchHeaderColumn(f.Text)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		labels = append(labels, headerLabel{column: col, x: f.X})
	}
	if !seen[constants.ColWIP] || len(labels) < 2 {
		return nil, false
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].x < labels[j].x })
	return labels, true
}

// assignCells maps each fragment of a line to its column band, joining
// multiple fragments in the same band with single spaces.
func assignCells(line []entity.TextFragment, tmpl Template) map[constants.Column]string {
	cells := map[constants.Column]string{}
	for _, f := range line {
		col, ok := tmpl.ColumnFor(f.X + f.Width/2)
		if !ok {
			continue
		}
		if cells[col] != "" {
			cells[col] += " "
		}
		cells[col] += strings.TrimSpace(f.Text)
	}
	return cells
}

// isContinuation reports whether a reconstructed line is a wrapped tail of
// the previous logical row: no WIP or registration of its own, but content
// under the Description, Time or Date columns.
func isContinuation(row entity.ReconstructedRow) bool {
	if row.Cell(constants.ColWIP) != "" || row.Cell(constants.ColReg) != "" {
		return false
	}
	return row.Cell(constants.ColDescription) != "" ||
		row.Cell(constants.ColDateTime) != "" ||
		row.Cell(constants.ColTime) != "" ||
		row.Cell(constants.ColAWs) != ""
}

// mergeContinuation folds a wrapped line into its logical row. Wrapped
// prose joins with a newline; split value tokens (a lone "2h" followed by
// a lone "0m") re-join into one token on the same line.
func mergeContinuation(dst *entity.ReconstructedRow, cont entity.ReconstructedRow) {
	for col, v := range cont.Cells {
		if v == "" {
			continue
		}
		prev := dst.Cells[col]
		if prev == "" {
			dst.Cells[col] = v
			continue
		}
		if isSplitValue(prev, v) {
			dst.Cells[col] = prev + " " + v
		} else {
			dst.Cells[col] = prev + "\n" + v
		}
	}
}

// isSplitValue recognizes a value broken across two lines by the export:
// an hours token followed by a minutes token.
func isSplitValue(prev, next string) bool {
	prevFields := strings.Fields(prev)
	if len(prevFields) == 0 {
		return false
	}
	last := prevFields[len(prevFields)-1]
	return rePartialHours.MatchString(last) && rePartialMinutes.MatchString(strings.TrimSpace(next))
}

func (t Template) rightEdge() float64 {
	var right float64
	for _, c := range t.Columns {
		if c.MaxX > right {
			right = c.MaxX
		}
	}
	return right
}

func rightEdge(frags []entity.TextFragment) float64 {
	var right float64
	for _, f := range frags {
		if e := f.X + f.Width; e > right {
			right = e
		}
	}
	return right
}
