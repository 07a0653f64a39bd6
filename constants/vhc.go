package constants

// VHCStatus is the Vehicle Health Check outcome printed on a job sheet.
// The set is closed; anything the parser cannot match falls back to N/A.
type VHCStatus string

const (
	VHCRed    VHCStatus = "Red"
	VHCOrange VHCStatus = "Orange"
	VHCGreen  VHCStatus = "Green"
	VHCNone   VHCStatus = "N/A"
)

// AllVHCStatuses lists the closed set in display order.
func AllVHCStatuses() []VHCStatus {
	return []VHCStatus{VHCRed, VHCOrange, VHCGreen, VHCNone}
}

// MinutesPerAW is the domain-wide conversion rate: 1 allocated work unit
// equals five minutes of work time. Minutes are always derived from AWs,
// never parsed independently.
const MinutesPerAW = 5
