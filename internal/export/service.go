// Package export renders a finished import result into its artifact
// forms: CSV rows, a JSON parse log, and an XLSX workbook.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

// rowHeaders is the fixed column order of the preview table; CSV and XLSX
// both use it.
var rowHeaders = []string{
	"WIP Number",
	"Vehicle Reg",
	"VHC",
	"Description",
	"AWS",
	"Minutes",
	"Job Date",
	"Job Time",
	"Confidence",
	"Action",
	"Validation Errors",
}

// Service produces export artifacts from an ImportResult.
type Service struct {
	log *zap.SugaredLogger
}

func NewService(log *zap.SugaredLogger) *Service {
	return &Service{log: log}
}

// RowsCSV renders one CSV line per parsed row.
func (s *Service) RowsCSV(res entity.ImportResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(rowHeaders); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	for _, row := range res.Rows {
		if err := w.Write(csvRecord(row)); err != nil {
			return nil, fmt.Errorf("csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}

	if s.log != nil {
		s.log.Infow("export.csv.ok", "rows", len(res.Rows))
	}
	return buf.Bytes(), nil
}

// ParseLogJSON renders the session parse log, one document per import.
func (s *Service) ParseLogJSON(res entity.ImportResult) ([]byte, error) {
	doc := struct {
		Filename string                 `json:"filename"`
		Hash     string                 `json:"hash"`
		Summary  entity.ImportSummary   `json:"summary"`
		Entries  []entity.ParseLogEntry `json:"entries"`
	}{
		Filename: res.Filename,
		Hash:     res.Hash,
		Summary:  res.Summary,
		Entries:  res.ParseLog,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal parse log: %w", err)
	}
	if s.log != nil {
		s.log.Infow("export.log.ok", "entries", len(res.ParseLog))
	}
	return out, nil
}

// RowsXLSX returns an XLSX workbook with the parsed rows.
func (s *Service) RowsXLSX(res entity.ImportResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range rowHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowNum := 2
	for _, r := range res.Rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowNum)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.WIPNumber)
		write(2, r.VehicleReg)
		write(3, string(r.VHCStatus))
		write(4, truncate(r.JobDescription, 140))
		write(5, r.AWs)
		write(6, r.Minutes)
		write(7, r.JobDate)
		write(8, r.JobTime)
		write(9, r.Confidence)
		write(10, string(r.Action))
		write(11, strings.Join(r.ValidationErrors, "; "))
		rowNum++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "D", "D", 48)
	_ = f.SetColWidth(sheet, "G", "H", 12)
	_ = f.SetColWidth(sheet, "K", "K", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	if s.log != nil {
		s.log.Infow("export.xlsx.ok",
			"rows", len(res.Rows),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return buf.Bytes(), nil
}

// CSVFilename derives the rows artifact name from the source filename.
func CSVFilename(source string) string {
	return artifactName(source) + "_rows.csv"
}

// LogFilename derives the parse log artifact name from the source filename.
func LogFilename(source string) string {
	return artifactName(source) + "_log.json"
}

// XLSXFilename derives the workbook artifact name from the source filename.
func XLSXFilename(source string) string {
	return artifactName(source) + "_rows.xlsx"
}

func artifactName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "import"
	}
	return base
}

func csvRecord(r entity.ParsedJobRow) []string {
	return []string{
		r.WIPNumber,
		r.VehicleReg,
		string(r.VHCStatus),
		r.JobDescription,
		fmt.Sprintf("%d", r.AWs),
		fmt.Sprintf("%d", r.Minutes),
		r.JobDate,
		r.JobTime,
		fmt.Sprintf("%.2f", r.Confidence),
		string(r.Action),
		strings.Join(r.ValidationErrors, "; "),
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
