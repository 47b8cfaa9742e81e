// Package router implements the per-page planner: a vision-LLM analysis
// call converted into a validated ExtractionPlan, with a guaranteed
// default plan on any upstream failure.
package router

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/dispatch"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

var errNotConfigured = errors.New("router: dispatcher or default model not configured")

const maxRecommendedStrategies = 4

// Router converts a PageInput into an ExtractionPlan.
type Router struct {
	Dispatcher   *dispatch.Dispatcher
	DefaultModel string
}

func analysisSystemPrompt() string {
	return "You are a document page triage assistant. Look at the page image and its extracted text. " +
		"Classify the page and recommend an extraction approach. Respond with strict JSON only: " +
		`{"page_complexity": "simple"|"moderate"|"complex", ` +
		`"table_count": number-or-string, "chart_count": number-or-string, "dense_text_descriptor": number-or-string, ` +
		`"recommended_strategies": string[]}. ` +
		"recommended_strategies must be drawn from: minimal, basic, comprehensive, visual, table_focused, listed in the order they should run."
}

// Route always produces a plan with at least one step. It never returns
// an error: any upstream failure (dispatch error, parse failure) degrades
// to the default single-step comprehensive plan, since routing failure is
// never fatal to the page.
func (r *Router) Route(ctx context.Context, page model.PageInput) model.ExtractionPlan {
	analysis, modelUsed, err := r.analyze(ctx, page)
	if err != nil {
		log.Warn().Err(err).Int("page", page.PageIndex).Msg("router analysis failed; using default plan")
		return defaultPlan(page.PageIndex)
	}
	log.Debug().Int("page", page.PageIndex).Str("model", modelUsed).Str("complexity", string(analysis.PageComplexity)).Msg("router analysis")
	return planFromAnalysis(page.PageIndex, analysis)
}

func (r *Router) analyze(ctx context.Context, page model.PageInput) (model.RouterAnalysis, string, error) {
	if r.Dispatcher == nil || r.DefaultModel == "" {
		return model.RouterAnalysis{}, "", errNotConfigured
	}
	system := analysisSystemPrompt()
	raw, modelUsed, err := r.Dispatcher.Call(ctx, r.DefaultModel, func(modelID string) llm.Request {
		msgs := []llm.Message{{Role: "system", Text: system}}
		user := llm.Message{Role: "user", Text: "Page text:\n\n" + page.Text}
		if len(page.Image) > 0 {
			user.ImageBase64 = llm.EncodeImage(page.Image)
			user.ImageMIME = page.ImageMIME
		}
		msgs = append(msgs, user)
		return llm.Request{
			Messages:       msgs,
			Temperature:    0.1,
			ResponseFormat: llm.ResponseFormatJSONObject,
		}
	})
	if err != nil {
		return model.RouterAnalysis{}, "", err
	}
	analysis, err := parseAnalysis(raw)
	if err != nil {
		return model.RouterAnalysis{}, "", err
	}
	return analysis, modelUsed, nil
}

// planFromAnalysis applies the following tie-break rules:
//   - simple pages always get a single minimal step, overriding whatever
//     the model recommended (cost guard);
//   - zero recommendations with non-trivial declared content appends a
//     comprehensive step;
//   - more than four recommendations are truncated to the first four.
func planFromAnalysis(pageIndex int, analysis model.RouterAnalysis) model.ExtractionPlan {
	if analysis.PageComplexity == model.ComplexitySimple {
		return model.ExtractionPlan{
			PageIndex: pageIndex,
			Steps: []model.ExtractionStep{
				{StepNumber: 1, Strategy: model.StrategyMinimal, Rationale: "page classified simple", IsFallback: false},
			},
		}
	}

	recommended := analysis.RecommendedStrategies
	if len(recommended) == 0 && hasNontrivialContent(analysis) {
		recommended = []model.ExtractionStrategy{model.StrategyComprehensive}
	}
	if len(recommended) == 0 {
		// Still nothing recommended and nothing declared: fall back to a
		// single comprehensive step rather than emitting an empty plan.
		recommended = []model.ExtractionStrategy{model.StrategyComprehensive}
	}
	if len(recommended) > maxRecommendedStrategies {
		recommended = recommended[:maxRecommendedStrategies]
	}

	steps := make([]model.ExtractionStep, 0, len(recommended))
	for i, s := range recommended {
		steps = append(steps, model.ExtractionStep{
			StepNumber: i + 1,
			Strategy:   s,
			Rationale:  "recommended by router analysis",
			IsFallback: false,
		})
	}
	return model.ExtractionPlan{PageIndex: pageIndex, Steps: steps}
}

// defaultPlan is the single comprehensive fallback step emitted when
// routing itself fails.
func defaultPlan(pageIndex int) model.ExtractionPlan {
	return model.ExtractionPlan{
		PageIndex: pageIndex,
		Steps: []model.ExtractionStep{
			{StepNumber: 1, Strategy: model.StrategyComprehensive, Rationale: "router unavailable", IsFallback: true},
		},
	}
}
