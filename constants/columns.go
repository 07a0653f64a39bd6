package constants

// Column is a named column of the job sheet table. The values double as
// CSV/preview headers, so they are stable strings.
type Column string

const (
	ColWIP         Column = "WIP"
	ColReg         Column = "Reg"
	ColVHC         Column = "VHC"
	ColDescription Column = "Description"
	ColAWs         Column = "AWS"
	ColTime        Column = "Time"
	ColDateTime    Column = "Date & Time"
)

// TableColumns is the fixed left-to-right column order of the known job
// sheet export format. Export artifacts use the same order.
func TableColumns() []Column {
	return []Column{ColWIP, ColReg, ColVHC, ColDescription, ColAWs, ColTime, ColDateTime}
}
