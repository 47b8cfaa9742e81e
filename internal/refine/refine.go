// Package refine implements the refinement analyzer: decides whether a
// merged page result warrants another extraction pass, and if so, builds
// the append-only plan extension to drive it.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/dispatch"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/strategy"
)

// Decision is the outcome of one refinement check: either Emit (stop) or a
// non-empty NewSteps slice to append to the plan and re-run through the
// Extractor.
type Decision struct {
	Emit     bool
	NewSteps []model.ExtractionStep
}

// Analyzer decides whether to extend a page's plan.
type Analyzer struct {
	Dispatcher   *dispatch.Dispatcher
	DefaultModel string
	Config       model.PipelineConfig
}

type verdict struct {
	NeedsRefinement       bool     `json:"needs_refinement"`
	MissingAspects        []string `json:"missing_aspects"`
	RecommendedStrategies []string `json:"recommended_strategies"`
}

// Tried records the (strategy, sorted missing-aspects) tuples already
// attempted for a page across refinement cycles, so the same focus is
// never retried twice.
type Tried map[string]bool

// NewTried builds an empty tracker. Callers own one Tried per page across
// its whole refinement lifetime.
func NewTried() Tried { return make(Tried) }

func focusKey(s model.ExtractionStrategy, missingAspects []string) string {
	sorted := append([]string(nil), missingAspects...)
	sort.Strings(sorted)
	return string(s) + "|" + strings.Join(sorted, ",")
}

// Analyze runs one refinement check over a page's current merged result.
// cycle is the number of refinement passes already completed for this
// page (0 on the very first check).
func (a *Analyzer) Analyze(ctx context.Context, page model.PageInput, result model.PageResult, plan model.ExtractionPlan, cycle int, tried Tried) Decision {
	if !a.Config.IterativeRefinementEnabled || cycle >= a.Config.MaxRefinementCycles {
		return Decision{Emit: true}
	}
	if a.Dispatcher == nil || a.DefaultModel == "" {
		return Decision{Emit: true}
	}

	raw, _, err := a.Dispatcher.Call(ctx, a.DefaultModel, func(modelID string) llm.Request {
		return llm.Request{
			Messages:       buildAnalysisMessages(result),
			Temperature:    0.1,
			ResponseFormat: llm.ResponseFormatJSONObject,
		}
	})
	if err != nil {
		log.Warn().Err(err).Int("page", page.PageIndex).Msg("refinement analysis failed; emitting")
		return Decision{Emit: true}
	}

	v, err := parseVerdict(raw)
	if err != nil {
		log.Warn().Err(err).Int("page", page.PageIndex).Msg("refinement verdict unparseable; emitting")
		return Decision{Emit: true}
	}
	if !v.NeedsRefinement {
		return Decision{Emit: true}
	}

	maxNew := a.Config.MaxNewSteps(len(plan.Steps))
	if maxNew <= 0 {
		return Decision{Emit: true}
	}

	newSteps := buildNewSteps(plan, v, tried, maxNew)
	if len(newSteps) == 0 {
		// Every recommendation repeats an already-tried (strategy, focus)
		// tuple: nothing new to do, so stop rather than loop forever.
		return Decision{Emit: true}
	}
	return Decision{Emit: false, NewSteps: newSteps}
}

func buildNewSteps(plan model.ExtractionPlan, v verdict, tried Tried, maxNew int) []model.ExtractionStep {
	next := plan.NextStepNumber()
	steps := make([]model.ExtractionStep, 0, maxNew)
	for _, raw := range v.RecommendedStrategies {
		if len(steps) >= maxNew {
			break
		}
		id := model.ExtractionStrategy(strings.ToLower(strings.TrimSpace(raw)))
		if !model.IsKnownStrategy(id) {
			log.Warn().Str("strategy", string(id)).Msg("refinement recommended unknown strategy; dropping")
			continue
		}
		key := focusKey(id, v.MissingAspects)
		if tried[key] {
			continue
		}
		tried[key] = true
		steps = append(steps, model.ExtractionStep{
			StepNumber: next,
			Strategy:   id,
			Rationale:  "refinement: " + strings.Join(v.MissingAspects, "; "),
			IsFallback: false,
		})
		next++
	}
	return steps
}

func buildAnalysisMessages(result model.PageResult) []llm.Message {
	system := "You are a quality-control reviewer for a document extraction pipeline. Given a merged page " +
		"extraction result, decide whether another extraction pass would materially improve it. Respond with " +
		"strict JSON only: " +
		`{"needs_refinement": bool, "missing_aspects": string[], "recommended_strategies": string[]}. ` +
		"Only request refinement when something concrete and likely present on the page is still missing."
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", result.MainTitle)
	fmt.Fprintf(&sb, "Summary: %s\n", result.PageSummary)
	fmt.Fprintf(&sb, "Sections found: %d\n", len(result.KeySections))
	fmt.Fprintf(&sb, "Visual elements found: %d\n", len(result.VisualElements))
	fmt.Fprintf(&sb, "Successful steps: %d/%d\n", result.SuccessfulSteps, result.TotalSteps)
	return []llm.Message{
		{Role: "system", Text: system},
		{Role: "user", Text: sb.String()},
	}
}

func parseVerdict(raw string) (verdict, error) {
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}
	repaired := strategy.Repair(raw)
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return verdict{}, fmt.Errorf("parse refinement verdict: %w", err)
	}
	return v, nil
}
