package constants

// ImportStatus is the canonical lifecycle state of an import session.
type ImportStatus string

// Stable values (these exact strings appear in progress events and logs).
const (
	StatusIdle      ImportStatus = "idle"      // session created, no file yet
	StatusParsing   ImportStatus = "parsing"   // extraction/reconstruction/field parse in flight
	StatusPreview   ImportStatus = "preview"   // parse finished, rows editable, nothing committed
	StatusImporting ImportStatus = "importing" // commit in flight
	StatusComplete  ImportStatus = "complete"  // commit applied, or preview discarded with nothing written
	StatusError     ImportStatus = "error"     // terminal failure, see parse log
)

// Stage identifies the pipeline phase a progress event belongs to.
// Observers must switch on this value, never on message text.
type Stage string

const (
	StageExtract     Stage = "EXTRACT"     // pulling positioned text from the PDF
	StageReconstruct Stage = "RECONSTRUCT" // clustering fragments into table rows
	StageParse       Stage = "PARSE"       // typed field parsing + scoring
	StageReconcile   Stage = "RECONCILE"   // diffing against the job store
	StageCommit      Stage = "COMMIT"      // writing resolved actions to the store
)

// RowAction is the reconciliation outcome for a parsed row.
type RowAction string

const (
	ActionCreate RowAction = "CREATE" // no existing job shares the identity key
	ActionUpdate RowAction = "UPDATE" // existing job differs in at least one field
	ActionSkip   RowAction = "SKIP"   // identical to the existing job, or user-resolved duplicate
)
