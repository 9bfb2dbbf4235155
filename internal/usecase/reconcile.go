package usecase

import (
	"math"

	"github.com/mealsmith/backend/internal/domain"
)

// ReconcileTarget is the aggregate a reconciliation pass steers toward.
type ReconcileTarget struct {
	Calories float64
	Protein  float64
}

// ReconcileOutcome reports what a reconciliation pass did.
type ReconcileOutcome struct {
	Adjusted bool
	// Factor is the scalar applied to the non-protein macro portion.
	// Zero when no adjustment was made.
	Factor float64
	// OutOfBounds is true when the factor fell outside the sane band. The
	// scaled result is still returned: an extreme factor is a data-quality
	// signal about the input, not a reason to drop the adjustment.
	OutOfBounds bool
	Violation   *domain.Violation
	// ProteinDeviationPct is how far the post-adjustment protein aggregate
	// sits from the protein target, when one was supplied. Calorie
	// correction leaves protein alone by default, so the gap is reported
	// rather than acted on.
	ProteinDeviationPct float64
}

// Reconciler proportionally scales non-protein macros so aggregate calories
// approach a target within a tolerance band.
type Reconciler struct {
	inv *Invariants
}

// NewReconciler creates a reconciler that validates factors against the
// given invariant engine.
func NewReconciler(inv *Invariants) *Reconciler {
	return &Reconciler{inv: inv}
}

// Reconcile scales the macro results in place toward the target. Results
// with an error code were zeroed upstream and contribute nothing, so they
// pass through untouched. Protein is excluded from scaling unless
// allowProteinScaling is set, preserving the protein target independent of
// calorie correction.
func (r *Reconciler) Reconcile(macros []domain.MacroResult, target ReconcileTarget, tolerancePct float64, allowProteinScaling bool) ([]domain.MacroResult, ReconcileOutcome) {
	out := make([]domain.MacroResult, len(macros))
	copy(out, macros)

	if target.Calories <= 0 {
		return out, ReconcileOutcome{}
	}

	current := aggregate(out)
	if current.Calories <= 0 {
		return out, ReconcileOutcome{}
	}

	deviationPct := math.Abs(current.Calories-target.Calories) / target.Calories * 100
	if deviationPct <= tolerancePct {
		return out, ReconcileOutcome{}
	}

	factor := target.Calories / current.Calories
	outcome := ReconcileOutcome{Adjusted: true, Factor: factor}
	if v := r.inv.CheckFactorBounds(factor); v != nil {
		outcome.OutOfBounds = true
		outcome.Violation = v
	}

	for i := range out {
		if out[i].ErrorCode != "" {
			continue
		}
		if allowProteinScaling {
			out[i].Calories *= factor
			out[i].Protein *= factor
			out[i].Fat *= factor
			out[i].Carbs *= factor
			continue
		}
		proteinKcal := out[i].Protein * kcalPerProteinGram
		out[i].Calories = proteinKcal + (out[i].Calories-proteinKcal)*factor
		out[i].Fat *= factor
		out[i].Carbs *= factor
	}

	if target.Protein > 0 {
		scaled := aggregate(out)
		outcome.ProteinDeviationPct = math.Abs(scaled.Protein-target.Protein) / target.Protein * 100
	}

	return out, outcome
}

// aggregate sums macro results into day/meal totals.
func aggregate(macros []domain.MacroResult) domain.MacroTotals {
	var totals domain.MacroTotals
	for _, m := range macros {
		totals.Calories += m.Calories
		totals.Protein += m.Protein
		totals.Fat += m.Fat
		totals.Carbs += m.Carbs
	}
	return totals
}
