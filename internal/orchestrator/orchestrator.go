// Package orchestrator drives every page through route → extract → merge →
// refine under bounded concurrency, independent of the rate limiter that
// separately bounds LLM calls per minute.
package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/chunk"
	"github.com/hkshon115/semanticarranger/internal/errs"
	"github.com/hkshon115/semanticarranger/internal/extractor"
	"github.com/hkshon115/semanticarranger/internal/merge"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/refine"
	"github.com/hkshon115/semanticarranger/internal/render"
	"github.com/hkshon115/semanticarranger/internal/router"
	"github.com/hkshon115/semanticarranger/internal/summary"
)

// Orchestrator wires the core subsystems together and fans the page set out
// across a bounded worker pool, then runs the two downstream consumers
// (executive summary, chunker) over the aggregate.
type Orchestrator struct {
	Renderer  render.PageRenderer
	Router    *router.Router
	Extractor *extractor.Extractor
	Refiner   *refine.Analyzer
	Summary   *summary.Generator
	ChunkOpts chunk.Options
	Config    model.PipelineConfig
}

// Result is the aggregate the Orchestrator returns for one run.
type Result struct {
	// RunID correlates this run's log lines and error records even though
	// pages complete out of order.
	RunID     string
	Pages     []model.PageResult
	Errors    []model.RunError
	Summary   *model.DocumentSummary
	Chunks    []model.Chunk
	Cancelled bool
}

// ProcessDocument is the top-level entrypoint: it drives
// Renderer.RenderPages, fans every yielded page through ProcessPages, then
// runs the executive summary and chunker over the resulting pages. A
// renderer error is recorded as a RunError with PageIndex -1 and does not
// abort pages already rendered.
func (o *Orchestrator) ProcessDocument(ctx context.Context, pdfPath string) Result {
	pageCh, errCh := o.Renderer.RenderPages(ctx, pdfPath)

	var pages []model.PageInput
	var renderErrs []model.RunError
drain:
	for pageCh != nil || errCh != nil {
		select {
		case p, ok := <-pageCh:
			if !ok {
				pageCh = nil
				continue
			}
			pages = append(pages, p)
		case e, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			renderErrs = append(renderErrs, model.RunError{PageIndex: -1, Kind: string(errs.KindTerminalOther), Detail: e.Error()})
		case <-ctx.Done():
			break drain
		}
	}

	result := o.ProcessPages(ctx, pages)
	result.Errors = append(renderErrs, result.Errors...)

	if o.Summary != nil {
		ds := o.Summary.Generate(ctx, result.Pages)
		result.Summary = &ds
	}
	result.Chunks = chunk.Split(result.Pages, o.ChunkOpts)

	return result
}

// ProcessPages drives every page in pages through the pipeline
// concurrently, bounded by Config.ConcurrencyLimit pages in flight. A
// single page's failure never cancels sibling pages. If ctx is cancelled,
// already-completed pages are retained and Result.Cancelled is set; no
// further LLM calls are issued once cancellation is observed at a page's
// next suspension point.
func (o *Orchestrator) ProcessPages(ctx context.Context, pages []model.PageInput) Result {
	runID := uuid.NewString()

	limit := o.Config.ConcurrencyLimit
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	type pageOutcome struct {
		index  int
		page   model.PageResult
		hasPg  bool
		errRec *model.RunError
	}

	outcomes := make([]pageOutcome, len(pages))
	var wg sync.WaitGroup

	for i, p := range pages {
		select {
		case <-ctx.Done():
			// Stop launching new page tasks once cancellation is observed;
			// pages not yet started are simply absent from the result.
			goto collect
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(idx int, page model.PageInput) {
			defer wg.Done()
			defer func() { <-sem }()

			pr, runErr, ok := o.processOnePage(ctx, runID, page)
			if ok {
				outcomes[idx] = pageOutcome{index: idx, page: pr, hasPg: true}
				return
			}
			outcomes[idx] = pageOutcome{index: idx, errRec: runErr}
		}(i, p)
	}

collect:
	wg.Wait()

	result := Result{RunID: runID}
	if ctx.Err() != nil {
		result.Cancelled = true
	}
	for _, o := range outcomes {
		if o.hasPg {
			result.Pages = append(result.Pages, o.page)
		} else if o.errRec != nil {
			result.Errors = append(result.Errors, *o.errRec)
		}
	}
	return result
}

// processOnePage runs one page through route → extract → merge → refine,
// returning either a PageResult or a RunError. Per-step extraction
// failures are never surfaced as RunErrors; only an outright cancellation
// produces one here.
func (o *Orchestrator) processOnePage(ctx context.Context, runID string, page model.PageInput) (model.PageResult, *model.RunError, bool) {
	if err := ctx.Err(); err != nil {
		return model.PageResult{}, &model.RunError{PageIndex: page.PageIndex, Kind: string(errs.KindCancelled), Detail: err.Error()}, false
	}

	log.Info().Str("run", runID).Int("page", page.PageIndex).Msg("routing page")
	plan := o.Router.Route(ctx, page)
	fromRouter := !planIsDefaultFallback(plan)

	allResults := o.Extractor.Run(ctx, page, plan.Steps)

	tried := refine.NewTried()
	cycle := 0
	for {
		merged := merge.Merge(page.PageIndex, pageComplexityOf(plan), fromRouter, allResults)

		if err := ctx.Err(); err != nil {
			return model.PageResult{}, &model.RunError{PageIndex: page.PageIndex, Kind: string(errs.KindCancelled), Detail: err.Error()}, false
		}

		decision := o.Refiner.Analyze(ctx, page, merged, plan, cycle, tried)
		if decision.Emit {
			return merged, nil, true
		}

		plan.Steps = append(plan.Steps, decision.NewSteps...)
		newResults := o.Extractor.Run(ctx, page, decision.NewSteps)
		allResults = append(allResults, newResults...)
		cycle++
	}
}

func planIsDefaultFallback(plan model.ExtractionPlan) bool {
	return len(plan.Steps) == 1 && plan.Steps[0].IsFallback
}

// pageComplexityOf reports the complexity the plan implies, used only to
// populate PageResult.PageComplexity; the router does not currently thread
// the classified complexity back out, so a single-step minimal plan
// implies "simple" and every other plan, including the router's default
// fallback plan, reports "moderate".
func pageComplexityOf(plan model.ExtractionPlan) model.PageComplexity {
	if len(plan.Steps) == 1 && plan.Steps[0].Strategy == model.StrategyMinimal {
		return model.ComplexitySimple
	}
	return model.ComplexityModerate
}
