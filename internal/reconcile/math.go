package reconcile

import (
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
)

// EffectiveLoss is the number of units a defect row permanently removes from
// the stage: reworked units rejoin the flow, so only the remainder counts.
// Non-reworkable defects lose the full quantity.
func EffectiveLoss(row models.DefectRow) int {
	if row.Reworkable {
		return row.Qty - row.QtyRework
	}
	return row.Qty
}

// Output computes a stage's output quantity from its input and ledger:
// input minus total effective loss plus total replacement, floored at zero.
func Output(input int, rows []models.DefectRow) int {
	total := input
	for _, row := range rows {
		total -= EffectiveLoss(row)
		total += row.QtyReplacement
	}
	if total < 0 {
		return 0
	}
	return total
}

// Quantities is a candidate ledger row's numeric payload, validated before
// any write regardless of whether it arrives directly or via an approved
// change request.
type Quantities struct {
	Qty            int
	QtyRework      int
	QtyNoGood      int
	QtyReplacement int
}

// ValidateQuantities enforces the ledger invariants: quantities are
// non-negative, qty splits exactly into rework + no-good, non-reworkable
// defects carry zero rework, and replacement is allowed only on the first
// catalog stage and never exceeds qty.
func ValidateQuantities(q Quantities, reworkable, firstStage bool) error {
	if q.Qty < 0 || q.QtyRework < 0 || q.QtyNoGood < 0 || q.QtyReplacement < 0 {
		return errors.New(errors.CodeInvariantViolation, "defect quantities must be non-negative")
	}
	if q.Qty != q.QtyRework+q.QtyNoGood {
		return errors.New(errors.CodeInvariantViolation, "qty must equal rework plus no-good").
			WithDetails(map[string]any{"qty": q.Qty, "qtyRework": q.QtyRework, "qtyNoGood": q.QtyNoGood})
	}
	if !reworkable && q.QtyRework != 0 {
		return errors.New(errors.CodeInvariantViolation, "non-reworkable defects cannot carry rework quantity")
	}
	if q.QtyReplacement > 0 && !firstStage {
		return errors.New(errors.CodeInvariantViolation, "replacement is only recorded on the first stage")
	}
	if q.QtyReplacement > q.Qty {
		return errors.New(errors.CodeInvariantViolation, "replacement cannot exceed defect quantity").
			WithDetails(map[string]any{"qty": q.Qty, "qtyReplacement": q.QtyReplacement})
	}
	return nil
}
