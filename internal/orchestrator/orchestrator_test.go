package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkshon115/semanticarranger/internal/dispatch"
	"github.com/hkshon115/semanticarranger/internal/extractor"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/refine"
	"github.com/hkshon115/semanticarranger/internal/render"
	"github.com/hkshon115/semanticarranger/internal/router"
	"github.com/hkshon115/semanticarranger/internal/strategy"
	"github.com/hkshon115/semanticarranger/internal/summary"
)

type registryOf string

func (s registryOf) Spec(id string) (model.LLMModelSpec, bool) {
	if id == string(s) {
		return model.LLMModelSpec{ModelID: id}, true
	}
	return model.LLMModelSpec{}, false
}

const comprehensiveJSON = `{"main_title":"Title","page_summary":"Summary","key_sections":[],"visual_elements":[]}`

// concurrencyTrackingClient records the peak number of calls in flight, and
// holds each call open for a short, fixed duration so overlap is observable.
type concurrencyTrackingClient struct {
	raw     string
	inFlt   int64
	peak    int64
	holdFor time.Duration
}

func (c *concurrencyTrackingClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	n := atomic.AddInt64(&c.inFlt, 1)
	for {
		p := atomic.LoadInt64(&c.peak)
		if n <= p || atomic.CompareAndSwapInt64(&c.peak, p, n) {
			break
		}
	}
	time.Sleep(c.holdFor)
	atomic.AddInt64(&c.inFlt, -1)
	return c.raw, nil
}

func newOrchestrator(client llm.Client, limit int) *Orchestrator {
	d := &dispatch.Dispatcher{Client: client, Registry: registryOf("m")}
	return &Orchestrator{
		Router:    &router.Router{}, // unconfigured: always produces the default fallback plan
		Extractor: &extractor.Extractor{Dispatcher: d, Registry: strategy.NewRegistry(), DefaultModel: "m"},
		Refiner:   &refine.Analyzer{Config: model.PipelineConfig{IterativeRefinementEnabled: false}},
		Config:    model.PipelineConfig{ConcurrencyLimit: limit},
	}
}

func pagesN(n int) []model.PageInput {
	pages := make([]model.PageInput, n)
	for i := range pages {
		pages[i] = model.PageInput{PageIndex: i}
	}
	return pages
}

func TestProcessPagesRespectsConcurrencyLimit(t *testing.T) {
	client := &concurrencyTrackingClient{raw: comprehensiveJSON, holdFor: 20 * time.Millisecond}
	o := newOrchestrator(client, 2)

	result := o.ProcessPages(context.Background(), pagesN(6))

	require.Len(t, result.Pages, 6)
	assert.False(t, result.Cancelled)
	assert.LessOrEqual(t, atomic.LoadInt64(&client.peak), int64(2))
}

func TestProcessPagesMergesEachPageIndependently(t *testing.T) {
	client := &concurrencyTrackingClient{raw: comprehensiveJSON}
	o := newOrchestrator(client, 4)

	result := o.ProcessPages(context.Background(), pagesN(3))

	require.Len(t, result.Pages, 3)
	seen := map[int]bool{}
	for _, p := range result.Pages {
		seen[p.PageIndex] = true
		assert.Equal(t, "Title", p.MainTitle)
		assert.Equal(t, "fallback", p.ExtractionMethod, "unconfigured router always falls back")
	}
	assert.Len(t, seen, 3)
}

func TestProcessPagesCancellationRetainsCompletedPages(t *testing.T) {
	client := &concurrencyTrackingClient{raw: comprehensiveJSON, holdFor: 50 * time.Millisecond}
	o := newOrchestrator(client, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	result := o.ProcessPages(ctx, pagesN(10))
	assert.True(t, result.Cancelled)
	assert.Less(t, len(result.Pages), 10, "cancellation must stop launching new page tasks")
}

func TestProcessOnePageReturnsCancelledRunErrorWhenContextAlreadyDone(t *testing.T) {
	client := &concurrencyTrackingClient{raw: comprehensiveJSON}
	o := newOrchestrator(client, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, runErr, ok := o.processOnePage(ctx, "run", model.PageInput{PageIndex: 0})
	require.False(t, ok)
	require.NotNil(t, runErr)
	assert.Equal(t, 0, runErr.PageIndex)
	assert.Equal(t, "cancelled", runErr.Kind)
}

func TestProcessDocumentAggregatesRenderErrorsWithPageIndexMinusOne(t *testing.T) {
	client := &concurrencyTrackingClient{raw: comprehensiveJSON}
	o := newOrchestrator(client, 2)
	o.Renderer = failingRenderer{}
	o.ChunkOpts.TargetTokens = 800
	o.ChunkOpts.OverlapTokens = 80

	result := o.ProcessDocument(context.Background(), "doc.pdf")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, -1, result.Errors[0].PageIndex)
}

func TestProcessDocumentRunsSummaryAndChunker(t *testing.T) {
	client := &concurrencyTrackingClient{raw: comprehensiveJSON}
	o := newOrchestrator(client, 2)
	o.Renderer = fixedRenderer{pages: pagesN(2)}
	o.Summary = &summary.Generator{}
	o.ChunkOpts.TargetTokens = 800
	o.ChunkOpts.OverlapTokens = 80

	result := o.ProcessDocument(context.Background(), "doc.pdf")
	require.Len(t, result.Pages, 2)
	require.NotNil(t, result.Summary)
	assert.NotEmpty(t, result.Chunks)
}

func TestPlanIsDefaultFallback(t *testing.T) {
	assert.True(t, planIsDefaultFallback(model.ExtractionPlan{Steps: []model.ExtractionStep{{IsFallback: true}}}))
	assert.False(t, planIsDefaultFallback(model.ExtractionPlan{Steps: []model.ExtractionStep{{IsFallback: false}}}))
	assert.False(t, planIsDefaultFallback(model.ExtractionPlan{Steps: []model.ExtractionStep{{IsFallback: true}, {IsFallback: true}}}))
}

func TestPageComplexityOf(t *testing.T) {
	simple := model.ExtractionPlan{Steps: []model.ExtractionStep{{Strategy: model.StrategyMinimal}}}
	assert.Equal(t, model.ComplexitySimple, pageComplexityOf(simple))

	other := model.ExtractionPlan{Steps: []model.ExtractionStep{{Strategy: model.StrategyComprehensive}}}
	assert.Equal(t, model.ComplexityModerate, pageComplexityOf(other))
}

type failingRenderer struct{}

func (failingRenderer) RenderPages(ctx context.Context, pdfPath string) (<-chan model.PageInput, <-chan error) {
	pages := make(chan model.PageInput)
	errCh := make(chan error, 1)
	close(pages)
	errCh <- assertionError("render failed")
	close(errCh)
	return pages, errCh
}

type fixedRenderer struct {
	pages []model.PageInput
}

func (f fixedRenderer) RenderPages(ctx context.Context, pdfPath string) (<-chan model.PageInput, <-chan error) {
	pages := make(chan model.PageInput, len(f.pages))
	errCh := make(chan error)
	for _, p := range f.pages {
		pages <- p
	}
	close(pages)
	close(errCh)
	return pages, errCh
}

type assertionError string

func (a assertionError) Error() string { return string(a) }

var _ render.PageRenderer = failingRenderer{}
var _ render.PageRenderer = fixedRenderer{}
