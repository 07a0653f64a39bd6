// Package parse converts reconstructed table rows into typed job rows,
// correcting OCR-style character confusion and recording every field
// failure in the parse log instead of aborting the row.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

// ocrDigitFixes maps characters commonly mis-exported in numeric fields
// to the digit they stand for.
var ocrDigitFixes = map[rune]rune{
	'O': '0', 'o': '0',
	'I': '1', 'l': '1', 'i': '1',
	'S': '5', 's': '5',
	'B': '8',
}

var (
	reNonDigit = regexp.MustCompile(`[^0-9]`)

	// UK registration shapes: current (AA99AAA), prefix (A999AAA),
	// suffix (AAA999A) and dateless formats.
	regShapes = []*regexp.Regexp{
		regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{3}$`),
		regexp.MustCompile(`^[A-Z][0-9]{1,3}[A-Z]{3}$`),
		regexp.MustCompile(`^[A-Z]{3}[0-9]{1,3}[A-Z]$`),
		regexp.MustCompile(`^[0-9]{1,4}[A-Z]{1,3}$`),
		regexp.MustCompile(`^[A-Z]{1,3}[0-9]{1,4}$`),
	}

	reWorkTime = regexp.MustCompile(`(?i)^\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m)?\s*$`)
	reSpace    = regexp.MustCompile(`\s+`)
)

// workTimeToleranceMinutes: the free-text work time only cross-checks the
// AWS-derived minutes; disagreement within one AW is noise.
const workTimeToleranceMinutes = constants.MinutesPerAW

const dateTimeLayout = "02/01/2006 15:04"

// Parser turns reconstructed rows into ParsedJobRow values.
type Parser struct {
	log *zap.SugaredLogger
}

func NewParser(log *zap.SugaredLogger) *Parser {
	return &Parser{log: log}
}

// ParseRow parses one reconstructed row. The returned log entries belong
// to the session's parse log; the row always survives, with failed fields
// at their zero values and the failure recorded.
func (p *Parser) ParseRow(rr entity.ReconstructedRow) (entity.ParsedJobRow, []entity.ParseLogEntry) {
	row := entity.ParsedJobRow{
		SourcePage: rr.PageIndex,
		SourceRow:  rr.RowIndex,
		VHCStatus:  constants.VHCNone,
	}
	var logEntries []entity.ParseLogEntry
	addErr := func(col constants.Column, msg, raw string) {
		row.SetFieldError(col, msg)
		logEntries = append(logEntries, entity.ParseLogEntry{Level: entity.LogError, Message: msg, RawData: raw})
	}
	addWarn := func(msg, raw string) {
		logEntries = append(logEntries, entity.ParseLogEntry{Level: entity.LogWarning, Message: msg, RawData: raw})
	}

	// WIP number
	rawWIP := strings.TrimSpace(rr.Cell(constants.ColWIP))
	if rawWIP == "" {
		addErr(constants.ColWIP, fmt.Sprintf("row %d: WIP number missing", rr.RowIndex+1), "")
	} else if wip, ok := ParseWIP(rawWIP); ok {
		row.WIPNumber = wip
	} else {
		addErr(constants.ColWIP, fmt.Sprintf("row %d: WIP number is not a 5-digit reference", rr.RowIndex+1), rawWIP)
	}

	// Vehicle registration
	rawReg := rr.Cell(constants.ColReg)
	row.VehicleReg = NormalizeReg(rawReg)
	if row.VehicleReg != "" && !ValidRegShape(row.VehicleReg) {
		addErr(constants.ColReg, fmt.Sprintf("row %d: vehicle registration %q has an unrecognized format", rr.RowIndex+1, row.VehicleReg), rawReg)
	}

	// VHC status
	rawVHC := strings.TrimSpace(rr.Cell(constants.ColVHC))
	if rawVHC != "" {
		status, matched := MatchVHC(rawVHC)
		row.VHCStatus = status
		if !matched {
			addWarn(fmt.Sprintf("row %d: unrecognized VHC status, defaulting to N/A", rr.RowIndex+1), rawVHC)
		}
	}

	// Description (may span lines; kept verbatim)
	row.JobDescription = strings.TrimSpace(rr.Cell(constants.ColDescription))

	// AWS. Minutes are derived, never parsed.
	rawAWs := strings.TrimSpace(rr.Cell(constants.ColAWs))
	if rawAWs == "" {
		row.SetAWs(0)
		addWarn(fmt.Sprintf("row %d: AWS missing, treated as 0", rr.RowIndex+1), "")
	} else if aws, ok := ParseAWs(rawAWs); ok {
		row.SetAWs(aws)
	} else {
		row.SetAWs(0)
		addErr(constants.ColAWs, fmt.Sprintf("row %d: AWS is not a non-negative integer", rr.RowIndex+1), rawAWs)
	}

	// Work time cross-check. AWS is the source of truth; a disagreement is
	// only worth a warning.
	rawTime := strings.TrimSpace(reSpace.ReplaceAllString(rr.Cell(constants.ColTime), " "))
	if rawTime != "" {
		if mins, ok := parseWorkTime(rawTime); ok {
			if diff := mins - row.Minutes; diff > workTimeToleranceMinutes || diff < -workTimeToleranceMinutes {
				addWarn(fmt.Sprintf("row %d: work time %q disagrees with AWS-derived %d minutes", rr.RowIndex+1, rawTime, row.Minutes), rawTime)
			}
		} else {
			addWarn(fmt.Sprintf("row %d: unparseable work time", rr.RowIndex+1), rawTime)
		}
	}

	// Date & time, taken literally in local wall-clock time.
	rawDate := strings.TrimSpace(reSpace.ReplaceAllString(rr.Cell(constants.ColDateTime), " "))
	if rawDate != "" {
		if ts, err := time.ParseInLocation(dateTimeLayout, rawDate, time.Local); err == nil {
			row.LoggedAt = ts
			row.JobDate = ts.Format("02/01/2006")
			row.JobTime = ts.Format("15:04")
		} else {
			addErr(constants.ColDateTime, fmt.Sprintf("row %d: date & time is not DD/MM/YYYY HH:mm", rr.RowIndex+1), rawDate)
		}
	}

	row.DeriveID()
	if p.log != nil && len(row.ValidationErrors) > 0 {
		p.log.Debugw("parse.row.invalid", "row", rr.RowIndex, "errors", row.ValidationErrors)
	}
	return row, logEntries
}

// ParseWIP applies OCR digit correction, strips separators and accepts
// exactly five digits.
func ParseWIP(raw string) (string, bool) {
	corrected := correctOCRDigits(raw)
	digits := reNonDigit.ReplaceAllString(corrected, "")
	if len(digits) != 5 {
		return "", false
	}
	return digits, true
}

// ParseAWs parses a non-negative integer with OCR digit correction.
func ParseAWs(raw string) (int, bool) {
	corrected := correctOCRDigits(raw)
	n, err := strconv.Atoi(strings.TrimSpace(corrected))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func correctOCRDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if d, ok := ocrDigitFixes[r]; ok {
			return d
		}
		return r
	}, s)
}

// NormalizeReg uppercases a registration and strips all whitespace.
func NormalizeReg(raw string) string {
	return reSpace.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
}

// ValidRegShape reports whether a normalized registration matches any
// known UK plate format.
func ValidRegShape(reg string) bool {
	for _, re := range regShapes {
		if re.MatchString(reg) {
			return true
		}
	}
	return false
}

// MatchVHC fuzzy-matches a raw token against the closed VHC set. The
// second return is false when the input matched nothing and the status
// fell back to N/A.
func MatchVHC(raw string) (constants.VHCStatus, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.Trim(s, ".")
	if s == "" {
		return constants.VHCNone, false
	}
	if s == "NA" || s == "N/A" || s == "N A" {
		return constants.VHCNone, true
	}

	for _, status := range constants.AllVHCStatuses() {
		cand := strings.ToUpper(string(status))
		if s == cand {
			return status, true
		}
	}
	// Partial OCR corruption: prefix or small edit distance.
	for _, status := range []constants.VHCStatus{constants.VHCOrange, constants.VHCGreen, constants.VHCRed} {
		cand := strings.ToUpper(string(status))
		if len(s) >= 3 && (strings.HasPrefix(cand, s) || strings.HasPrefix(s, cand)) {
			return status, true
		}
		maxDist := 2
		if len(cand) <= 3 {
			maxDist = 1
		}
		if levenshtein.Distance(s, cand, nil) <= maxDist {
			return status, true
		}
	}
	return constants.VHCNone, false
}

// parseWorkTime converts free text like "2h 0m", "45m" or "1h" into
// minutes.
func parseWorkTime(raw string) (int, bool) {
	m := reWorkTime.FindStringSubmatch(raw)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, false
	}
	mins := 0
	if m[1] != "" {
		h, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		mins += h * 60
	}
	if m[2] != "" {
		mm, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, false
		}
		mins += mm
	}
	return mins, true
}
