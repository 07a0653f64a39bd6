// Package reconcile diffs a parsed batch against the existing job
// collection, assigning each row a Create/Update/Skip action and flagging
// intra-batch WIP duplicates for the commit gate.
package reconcile

import (
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

type Reconciler struct {
	log *zap.SugaredLogger
}

func NewReconciler(log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{log: log}
}

// Reconcile assigns actions in place. A row whose identity key matches an
// existing job adopts that job's ID so an Update lands on the same record.
func (r *Reconciler) Reconcile(rows []entity.ParsedJobRow, existing []entity.Job) {
	byKey := make(map[string]entity.Job, len(existing))
	for _, j := range existing {
		if key := jobKey(j); key != "" {
			byKey[key] = j
		}
	}

	for i := range rows {
		key := rows[i].IdentityKey()
		job, found := byKey[key]
		if key == "" || !found {
			rows[i].Action = constants.ActionCreate
			continue
		}
		rows[i].ID = job.ID
		if rows[i].MatchesJob(job) {
			rows[i].Action = constants.ActionSkip
		} else {
			rows[i].Action = constants.ActionUpdate
		}
	}

	flagged := FlagBatchDuplicates(rows)
	if r.log != nil {
		r.log.Infow("reconcile.ok", "rows", len(rows), "existing", len(existing), "duplicates", flagged)
	}
}

// FlagBatchDuplicates marks every row whose WIP number appears more than
// once in the batch. Duplicates are surfaced, never auto-resolved: the
// commit gate refuses the batch until at most one row per WIP survives.
func FlagBatchDuplicates(rows []entity.ParsedJobRow) int {
	counts := map[string]int{}
	for _, row := range rows {
		if row.WIPNumber != "" {
			counts[row.WIPNumber]++
		}
	}
	flagged := 0
	for i := range rows {
		dup := rows[i].WIPNumber != "" && counts[rows[i].WIPNumber] > 1
		rows[i].Duplicate = dup
		if dup {
			flagged++
		}
	}
	return flagged
}

// UnresolvedDuplicateWIPs returns the WIP numbers still shared by more
// than one row that would write to the store (anything not Skip).
func UnresolvedDuplicateWIPs(rows []entity.ParsedJobRow) []string {
	counts := map[string]int{}
	var order []string
	for _, row := range rows {
		if row.WIPNumber == "" || row.Action == constants.ActionSkip {
			continue
		}
		if counts[row.WIPNumber] == 0 {
			order = append(order, row.WIPNumber)
		}
		counts[row.WIPNumber]++
	}
	var dups []string
	for _, wip := range order {
		if counts[wip] > 1 {
			dups = append(dups, wip)
		}
	}
	return dups
}

func jobKey(j entity.Job) string {
	if j.WIPNumber != "" {
		return "wip:" + j.WIPNumber
	}
	if j.VehicleReg != "" && j.JobDate != "" {
		return "reg:" + j.VehicleReg + ":" + j.JobDate
	}
	return ""
}
