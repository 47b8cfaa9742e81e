// Package extractor executes an ExtractionPlan's steps through the
// strategy set, sequentially per page.
package extractor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/budget"
	"github.com/hkshon115/semanticarranger/internal/dispatch"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/strategy"
)

// reservedOutputTokens budgets room for the model's JSON response and the
// fixed strategy system prompt when deciding how much of a page's text can
// be included.
const reservedOutputTokens = 1500

// Extractor runs plan steps against the strategy registry.
type Extractor struct {
	Dispatcher   *dispatch.Dispatcher
	Registry     *strategy.Registry
	DefaultModel string
}

// Run executes every step in steps (a whole plan, or just the newly
// appended tail from a refinement cycle) against page, returning one
// ExtractionResult per step in step order. A failed step never aborts the
// remaining steps.
func (e *Extractor) Run(ctx context.Context, page model.PageInput, steps []model.ExtractionStep) []model.ExtractionResult {
	results := make([]model.ExtractionResult, 0, len(steps))
	for _, step := range steps {
		results = append(results, e.runStep(ctx, page, step))
	}
	return results
}

func (e *Extractor) runStep(ctx context.Context, page model.PageInput, step model.ExtractionStep) model.ExtractionResult {
	started := time.Now()
	impl, ok := e.Registry.Get(step.Strategy)
	if !ok {
		return model.ExtractionResult{
			StepNumber: step.StepNumber,
			Strategy:   step.Strategy,
			Success:    false,
			Error:      "unknown strategy: " + string(step.Strategy),
			ElapsedMS:  int(time.Since(started).Milliseconds()),
		}
	}

	page = e.fitToModelBudget(page)

	raw, modelUsed, err := e.Dispatcher.Call(ctx, e.DefaultModel, func(modelID string) llm.Request {
		return llm.Request{
			Messages:       impl.PromptFor(page),
			Temperature:    0.2,
			ResponseFormat: llm.ResponseFormatJSONObject,
		}
	})
	if err != nil {
		log.Warn().Err(err).Int("page", page.PageIndex).Int("step", step.StepNumber).Str("strategy", string(step.Strategy)).Msg("extraction step failed")
		return model.ExtractionResult{
			StepNumber: step.StepNumber,
			Strategy:   step.Strategy,
			Success:    false,
			Error:      err.Error(),
			ModelUsed:  modelUsed,
			ElapsedMS:  int(time.Since(started).Milliseconds()),
		}
	}

	content, err := impl.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Int("page", page.PageIndex).Int("step", step.StepNumber).Str("strategy", string(step.Strategy)).Msg("extraction parse failed")
		return model.ExtractionResult{
			StepNumber: step.StepNumber,
			Strategy:   step.Strategy,
			Success:    false,
			Error:      err.Error(),
			ModelUsed:  modelUsed,
			ElapsedMS:  int(time.Since(started).Milliseconds()),
		}
	}

	return model.ExtractionResult{
		StepNumber: step.StepNumber,
		Strategy:   step.Strategy,
		Success:    true,
		Content:    content,
		ModelUsed:  modelUsed,
		ElapsedMS:  int(time.Since(started).Milliseconds()),
	}
}

// fitToModelBudget truncates page.Text so the extraction prompt stays
// within the default model's advertised token limit, if one is known. It
// never touches page.Image: vision token accounting is left to the
// provider.
func (e *Extractor) fitToModelBudget(page model.PageInput) model.PageInput {
	if e.Dispatcher == nil || e.Dispatcher.Registry == nil {
		return page
	}
	spec, ok := e.Dispatcher.Registry.Spec(e.DefaultModel)
	if !ok || spec.TokenLimit <= 0 {
		return page
	}
	available := budget.RemainingContext(spec.TokenLimit, reservedOutputTokens)
	if budget.EstimateTokens(page.Text) <= available {
		return page
	}
	log.Warn().Int("page", page.PageIndex).Int("token_limit", spec.TokenLimit).Msg("truncating page text to fit model token budget")
	page.Text = budget.TruncateToFit(page.Text, available)
	return page
}
