package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealsmith/backend/internal/domain"
)

// Pipeline stage names, in execution order.
const (
	StageEntryGuard         = "entry-guard"
	StageValidateStructure  = "validate-structure"
	StageValidateOutput     = "validate-llm-output"
	StageNormalizeState     = "normalize-state"
	StageExtractIngredients = "extract-ingredients"
	StageFetchNutrition     = "fetch-nutrition"
	StageComputeMacros      = "compute-macros"
	StageMealReconcile      = "meal-reconcile"
	StageDayReconcile       = "day-reconcile"
	StageSanitize           = "sanitize"
	StageResponseBlock      = "response-block-check"
	StageValidatePlan       = "validate-plan"
)

// PipelineConfig is the single immutable configuration value threaded
// through one pipeline run. Two runs with different tuning never interfere.
type PipelineConfig struct {
	Invariants InvariantConfig
	Corrector  CorrectorConfig

	MealTolerancePct    float64
	DayTolerancePct     float64
	AllowProteinScaling bool

	// ResponseBlockRate is the flagged-item rate above which the whole
	// plan is rejected even though no single item was critical.
	ResponseBlockRate float64

	MaxValidationRetries int

	// Fallback-lookup rate alert thresholds.
	FallbackElevatedRate float64
	FallbackHighRate     float64

	OilDensityGMl float64
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.MealTolerancePct <= 0 {
		c.MealTolerancePct = 5
	}
	if c.DayTolerancePct <= 0 {
		c.DayTolerancePct = 5
	}
	if c.ResponseBlockRate <= 0 {
		c.ResponseBlockRate = 0.8
	}
	if c.MaxValidationRetries <= 0 {
		c.MaxValidationRetries = 2
	}
	if c.FallbackElevatedRate <= 0 {
		c.FallbackElevatedRate = 0.3
	}
	if c.FallbackHighRate <= 0 {
		c.FallbackHighRate = 0.6
	}
	return c
}

// ExecuteRequest is the pipeline entry payload.
type ExecuteRequest struct {
	RawMeals []domain.RawMeal
	Targets  domain.MacroTargets
	// Retry regenerates the meals array after a validation failure.
	// Optional; without it a schema failure is immediately fatal.
	Retry    domain.RegenerateFunc
	Progress domain.Progress
	// Config overrides the pipeline's default configuration for this run.
	Config *PipelineConfig
}

// ExecuteResult is the pipeline output.
type ExecuteResult struct {
	TraceID    string               `json:"traceId"`
	Meals      []domain.MealResult  `json:"meals"`
	DayTotals  domain.MacroTotals   `json:"dayTotals"`
	Targets    domain.MacroTargets  `json:"targets"`
	Validation ValidationResult     `json:"validation"`
	Trace      domain.PipelineTrace `json:"trace"`
}

// Pipeline sequences validation, normalization, nutrition lookup, macro
// computation, reconciliation and sanitization into one deterministic,
// partially fault-tolerant run.
type Pipeline struct {
	lookup domain.NutritionLookup
	sink   domain.EventSink
	cfg    PipelineConfig
}

// NewPipeline creates an orchestrator with the given collaborators and
// default configuration.
func NewPipeline(lookup domain.NutritionLookup, sink domain.EventSink, cfg PipelineConfig) *Pipeline {
	return &Pipeline{lookup: lookup, sink: sink, cfg: cfg.withDefaults()}
}

// run holds per-invocation state owned exclusively by the orchestrator.
type run struct {
	traceID string
	trace   domain.PipelineTrace
	sink    domain.EventSink
}

func newRun(sink domain.EventSink) *run {
	traceID := uuid.NewString()
	return &run{
		traceID: traceID,
		sink:    sink,
		trace: domain.PipelineTrace{
			TraceID: traceID,
			Timings: make(map[string]time.Duration),
		},
	}
}

// stage records entry into a stage and returns a closure that records its
// elapsed time.
func (r *run) stage(name string) func() {
	start := time.Now()
	r.trace.Stages = append(r.trace.Stages, name)
	return func() {
		r.trace.Timings[name] = time.Since(start)
	}
}

func (r *run) log(level, message string, data map[string]any) {
	if r.sink != nil {
		r.sink.Log(r.traceID, level, message, data)
	}
}

func (r *run) alert(level, alertType string, payload map[string]any) {
	if r.sink != nil {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["traceId"] = r.traceID
		r.sink.Alert(domain.AlertEvent{Level: level, Type: alertType, Payload: payload})
	}
}

// fail builds the typed pipeline error and emits the failure alert.
func (r *run) fail(stage string, errs []string, cause error) error {
	r.alert("error", domain.AlertPipelineFailure, map[string]any{
		"stage":  stage,
		"errors": errs,
	})
	return &domain.PipelineError{TraceID: r.traceID, Stage: stage, Errs: errs, Cause: cause}
}

// computeKey deduplicates macro computation within a single run.
type computeKey struct {
	key   string
	qty   float64
	unit  string
	state domain.ItemState
}

// Execute drives the full stage machine over one raw plan.
func (p *Pipeline) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	cfg := p.cfg
	if req.Config != nil {
		cfg = req.Config.withDefaults()
	}

	inv := NewInvariants(cfg.Invariants)
	corrector := NewCorrector(cfg.Corrector)
	transformer := NewTransformer(cfg.OilDensityGMl)
	reconciler := NewReconciler(inv)

	r := newRun(p.sink)
	r.log("info", "pipeline started", map[string]any{"meals": len(req.RawMeals)})

	// ENTRY-GUARD: upstream callers have historically passed malformed
	// shapes, so reject them before doing any work.
	done := r.stage(StageEntryGuard)
	if len(req.RawMeals) == 0 {
		done()
		return nil, r.fail(StageEntryGuard, nil,
			&domain.StructuralError{Reason: "raw meals array is missing or empty"})
	}
	done()

	// VALIDATE-STRUCTURE: meals without items are excluded from
	// computation but stay in the response; all-excluded aborts the run.
	done = r.stage(StageValidateStructure)
	computable, skipped := partitionMeals(req.RawMeals)
	for _, s := range skipped {
		r.log("warn", "meal excluded: empty items array", map[string]any{"meal": s.Name})
	}
	if len(computable) == 0 {
		done()
		return nil, r.fail(StageValidateStructure, nil,
			&domain.StructuralError{Reason: "every meal has a missing or empty items array"})
	}
	done()

	// VALIDATE-LLM-OUTPUT: schema + constraint validation with bounded
	// regeneration retries on schema failure.
	done = r.stage(StageValidateOutput)
	validation := corrector.Validate(computable)
	for attempt := 1; !validation.Valid && attempt <= cfg.MaxValidationRetries && req.Retry != nil; attempt++ {
		r.log("warn", "schema validation failed, regenerating", map[string]any{
			"attempt": attempt,
			"errors":  validation.SchemaErrors,
		})
		fresh, err := req.Retry(ctx)
		if err != nil {
			validation.SchemaErrors = append(validation.SchemaErrors,
				fmt.Sprintf("regeneration failed: %v", err))
			break
		}
		freshComputable, freshSkipped := partitionMeals(fresh)
		if len(freshComputable) == 0 {
			validation.SchemaErrors = append(validation.SchemaErrors,
				"regenerated plan has no computable meals")
			continue
		}
		computable, skipped = freshComputable, freshSkipped
		validation = corrector.Validate(computable)
	}
	if !validation.Valid {
		done()
		return nil, r.fail(StageValidateOutput, validation.Errors(), domain.ErrValidationExhausted)
	}
	for _, e := range validation.ItemErrors {
		r.log("warn", "constraint violation", map[string]any{"error": e})
		if req.Progress.ValidationWarning != nil {
			req.Progress.ValidationWarning("", e)
		}
	}
	done()

	meals := validation.Meals

	// NORMALIZE-STATE: resolve missing or invalid states from the
	// ingredient key. Inference substitutes for a missing upstream signal,
	// so it is logged as a warning.
	done = r.stage(StageNormalizeState)
	for mi := range meals {
		for ii := range meals[mi].Items {
			state, inferred := ResolveState(meals[mi].Items[ii])
			if inferred {
				r.log("warn", "item state inferred from key", map[string]any{
					"key":   meals[mi].Items[ii].Key,
					"state": string(state),
				})
			}
			meals[mi].Items[ii].StateHint = state
		}
	}
	done()

	// EXTRACT-INGREDIENTS: unique normalized keys for the lookup fan-out.
	done = r.stage(StageExtractIngredients)
	unique := make(map[string]bool)
	for _, meal := range meals {
		for _, item := range meal.Items {
			unique[NormalizeKey(item.Key)] = true
		}
	}
	done()

	// FETCH-NUTRITION: one concurrent lookup per unique key. Results are
	// keyed, so completion order is irrelevant.
	done = r.stage(StageFetchNutrition)
	records := p.fetchNutrition(ctx, r, unique, req.Progress, cfg)
	done()

	// COMPUTE-MACROS: per item, invariant-gated, cached per run.
	done = r.stage(StageComputeMacros)
	results, flagged, total := p.computeMeals(r, meals, skipped, records, transformer, inv, req.Progress)
	done()

	// MEAL-RECONCILE: per-meal share of the day targets.
	done = r.stage(StageMealReconcile)
	if req.Targets.Calories > 0 {
		computed := 0
		for i := range results {
			if !results[i].Skipped {
				computed++
			}
		}
		mealTarget := ReconcileTarget{
			Calories: req.Targets.Calories / float64(computed),
			Protein:  req.Targets.Protein / float64(computed),
		}
		for i := range results {
			if results[i].Skipped {
				continue
			}
			macros, outcome := reconciler.Reconcile(results[i].Macros, mealTarget,
				cfg.MealTolerancePct, cfg.AllowProteinScaling)
			results[i].Macros = macros
			results[i].Totals = aggregate(macros)
			p.reportReconcile(r, "meal", results[i].Meal.Name, outcome)
		}
	}
	done()

	// DAY-RECONCILE: re-aggregates over the meal-adjusted items, so the
	// factor is typically close to 1.0.
	done = r.stage(StageDayReconcile)
	if req.Targets.Calories > 0 {
		p.reconcileDay(r, results, req.Targets, reconciler, cfg)
	}
	done()

	// ENHANCE/SANITIZE: final backstop independent of all upstream guards.
	done = r.stage(StageSanitize)
	r.trace.SanitizationStats = sanitizePlan(results)
	done()

	// RESPONSE-BLOCK-CHECK: systemic inconsistency rejects the whole plan.
	done = r.stage(StageResponseBlock)
	if total > 0 {
		flaggedRate := float64(flagged) / float64(total)
		if flaggedRate > cfg.ResponseBlockRate {
			done()
			r.alert("critical", domain.AlertResponseBlocked, map[string]any{
				"flaggedRate": flaggedRate,
				"threshold":   cfg.ResponseBlockRate,
			})
			return nil, r.fail(StageResponseBlock,
				[]string{fmt.Sprintf("flagged-item rate %.2f over threshold %.2f", flaggedRate, cfg.ResponseBlockRate)},
				domain.ErrResponseBlocked)
		}
	}
	done()

	// VALIDATE-PLAN: composite day-level soft check.
	done = r.stage(StageValidatePlan)
	dayTotals := planTotals(results)
	targets := req.Targets
	var targetsPtr *domain.MacroTargets
	if targets.Calories > 0 {
		targetsPtr = &targets
	}
	for _, v := range inv.CheckDayTotals(dayTotals, targetsPtr) {
		r.trace.InvariantStats.Violations = append(r.trace.InvariantStats.Violations, v)
		r.log("warn", "day-level invariant violation", map[string]any{
			"invariant": v.InvariantID,
			"message":   v.Message,
		})
	}
	done()

	r.log("info", "pipeline complete", map[string]any{
		"meals":   len(results),
		"flagged": flagged,
		"items":   total,
	})

	return &ExecuteResult{
		TraceID:    r.traceID,
		Meals:      results,
		DayTotals:  dayTotals,
		Targets:    targets,
		Validation: validation,
		Trace:      r.trace,
	}, nil
}

// partitionMeals separates meals with items from meals the structure guard
// excludes.
func partitionMeals(raw []domain.RawMeal) (computable, skipped []domain.RawMeal) {
	for _, meal := range raw {
		if len(meal.Items) == 0 {
			skipped = append(skipped, meal)
			continue
		}
		computable = append(computable, meal)
	}
	return computable, skipped
}

// fetchNutrition fans out one lookup per unique normalized key and awaits
// them all. Lookup failures degrade to a missing record.
func (p *Pipeline) fetchNutrition(ctx context.Context, r *run, unique map[string]bool, progress domain.Progress, cfg PipelineConfig) map[string]*domain.NutritionRecord {
	records := make(map[string]*domain.NutritionRecord, len(unique))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for key := range unique {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			rec, err := p.lookup.Lookup(ctx, k)

			mu.Lock()
			defer mu.Unlock()
			if err != nil || rec == nil {
				records[k] = nil
				reason := "not found"
				if err != nil {
					reason = err.Error()
				}
				r.log("warn", "nutrition lookup failed", map[string]any{"key": k, "reason": reason})
				if progress.IngredientFailed != nil {
					progress.IngredientFailed(k, reason)
				}
				return
			}
			records[k] = rec
			if progress.IngredientFound != nil {
				progress.IngredientFound(k, rec)
			}
		}(key)
	}
	wg.Wait()

	if len(unique) > 0 {
		fallbacks := 0
		for _, rec := range records {
			if rec != nil && rec.Source == domain.SourceFallback {
				fallbacks++
			}
		}
		rate := float64(fallbacks) / float64(len(unique))
		switch {
		case rate > cfg.FallbackHighRate:
			r.alert("critical", domain.AlertFallbackRate, map[string]any{"rate": rate})
		case rate > cfg.FallbackElevatedRate:
			r.alert("warning", domain.AlertFallbackRate, map[string]any{"rate": rate})
		}
	}

	return records
}

// computeMeals computes macros for every item, distributes absorbed oil per
// meal, and appends the structure-guard-excluded meals to the response.
func (p *Pipeline) computeMeals(r *run, meals []domain.Meal, skipped []domain.RawMeal, records map[string]*domain.NutritionRecord, transformer *Transformer, inv *Invariants, progress domain.Progress) (results []domain.MealResult, flagged, total int) {
	cache := make(map[computeKey]itemComputation)

	for _, meal := range meals {
		macros := make([]domain.MacroResult, len(meal.Items))
		oilItems := make([]OilShareItem, len(meal.Items))

		for i, item := range meal.Items {
			ck := computeKey{
				key:   NormalizeKey(item.Key),
				qty:   item.QuantityValue,
				unit:  item.QuantityUnit,
				state: item.StateHint,
			}
			comp, hit := cache[ck]
			if !hit {
				comp = computeItemMacros(item, records[ck.key], transformer, inv)
				cache[ck] = comp
			}

			total++
			r.trace.InvariantStats.Checked++
			if comp.Result.Flagged {
				flagged++
				r.trace.InvariantStats.Flagged++
				if progress.IngredientFlagged != nil {
					progress.IngredientFlagged(item.Key, comp.Result.DeviationPct)
				}
			}
			if comp.Result.ErrorCode != "" {
				r.trace.InvariantStats.Failed++
			}
			if !comp.Transform.YieldMapped {
				r.alert("warning", domain.AlertYieldUnmapped, map[string]any{"key": item.Key})
			}

			for _, v := range comp.Violations {
				r.trace.InvariantStats.Violations = append(r.trace.InvariantStats.Violations, v)
				if v.InvariantID == InvMacroConsistency {
					r.alert(string(v.Severity), domain.AlertMacroInconsistency, map[string]any{
						"key":          item.Key,
						"deviationPct": comp.Result.DeviationPct,
					})
				}
				if progress.InvariantWarning != nil {
					progress.InvariantWarning(v)
				}
			}

			macros[i] = comp.Result
			oilItems[i] = OilShareItem{
				Key:         item.Key,
				GramsAsSold: comp.Result.GramsAsSold,
				Method:      comp.Transform.ResolvedMethod,
				Unit:        item.QuantityUnit,
				Quantity:    item.QuantityValue,
			}
		}

		// Oil soaked up during cooking lands on the plate, not back in
		// the bottle: move it onto the absorbing items' macros.
		for i, grams := range transformer.DistributeOil(oilItems) {
			if grams > 0 && macros[i].ErrorCode == "" {
				macros[i].Fat += grams
				macros[i].Calories += grams * kcalPerFatGram
			}
		}

		results = append(results, domain.MealResult{
			Meal:   meal,
			Macros: macros,
			Totals: aggregate(macros),
		})
	}

	for _, s := range skipped {
		results = append(results, domain.MealResult{
			Meal:    domain.Meal{Type: s.Type, Name: s.Name, Items: []domain.Item{}},
			Macros:  []domain.MacroResult{},
			Skipped: true,
		})
	}

	return results, flagged, total
}

// reconcileDay scales every computed item so day totals approach the day
// target, taking the meal-adjusted macros as input.
func (p *Pipeline) reconcileDay(r *run, results []domain.MealResult, targets domain.MacroTargets, reconciler *Reconciler, cfg PipelineConfig) {
	var all []domain.MacroResult
	var owners []int
	for i := range results {
		if results[i].Skipped {
			continue
		}
		for range results[i].Macros {
			owners = append(owners, i)
		}
		all = append(all, results[i].Macros...)
	}

	adjusted, outcome := reconciler.Reconcile(all,
		ReconcileTarget{Calories: targets.Calories, Protein: targets.Protein},
		cfg.DayTolerancePct, cfg.AllowProteinScaling)
	p.reportReconcile(r, "day", "", outcome)
	if !outcome.Adjusted {
		return
	}

	cursor := make(map[int]int)
	for idx, mealIdx := range owners {
		results[mealIdx].Macros[cursor[mealIdx]] = adjusted[idx]
		cursor[mealIdx]++
	}
	for i := range results {
		if !results[i].Skipped {
			results[i].Totals = aggregate(results[i].Macros)
		}
	}
}

func (p *Pipeline) reportReconcile(r *run, scope, name string, outcome ReconcileOutcome) {
	if !outcome.Adjusted {
		return
	}
	fields := map[string]any{
		"scope":  scope,
		"name":   name,
		"factor": outcome.Factor,
	}
	if outcome.ProteinDeviationPct > 0 {
		fields["proteinDeviationPct"] = outcome.ProteinDeviationPct
	}
	r.log("info", "reconciliation applied", fields)
	if outcome.OutOfBounds {
		r.trace.InvariantStats.Violations = append(r.trace.InvariantStats.Violations, *outcome.Violation)
		r.alert("warning", domain.AlertFactorOutOfBounds, map[string]any{
			"scope":  scope,
			"name":   name,
			"factor": outcome.Factor,
		})
	}
}

// planTotals aggregates all computed meals into day totals.
func planTotals(results []domain.MealResult) domain.MacroTotals {
	var totals domain.MacroTotals
	for _, meal := range results {
		if meal.Skipped {
			continue
		}
		totals.Calories += meal.Totals.Calories
		totals.Protein += meal.Totals.Protein
		totals.Fat += meal.Totals.Fat
		totals.Carbs += meal.Totals.Carbs
	}
	return totals
}
