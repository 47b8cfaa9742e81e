// Package model holds the semantic data types shared across the extraction
// pipeline: page inputs, router analysis, extraction plans/results, and the
// merged per-page records the pipeline emits.
package model

import "time"

// PageInput is produced once by the external PDF renderer and is immutable
// for the duration of processing.
type PageInput struct {
	PageIndex   int
	PageWidth   int
	PageHeight  int
	Image       []byte // raster image bytes (e.g. PNG/JPEG), already encoded
	ImageMIME   string
	Text        string
}

// PageComplexity classifies how much visual/structural work a page needs.
type PageComplexity string

const (
	ComplexitySimple   PageComplexity = "simple"
	ComplexityModerate PageComplexity = "moderate"
	ComplexityComplex  PageComplexity = "complex"
)

// FlexInt tolerates either a JSON integer or a free-form descriptor string,
// for fields the vision LLM is not reliably constrained to return as a
// plain number.
type FlexInt struct {
	Value       int
	Descriptor  string
	IsNumeric   bool
}

// RouterAnalysis is the free-form classification summary returned by the
// router's vision call, parsed tolerantly (unknown fields dropped, unknown
// strategy names dropped with a warning).
type RouterAnalysis struct {
	PageComplexity      PageComplexity
	TableCount          FlexInt
	ChartCount          FlexInt
	DenseTextDescriptor FlexInt
	RecommendedStrategies []ExtractionStrategy
}

// ExtractionStrategy is a closed enumeration of strategy identifiers,
// extensible at build time by adding a new constant and registering it in
// the strategy registry.
type ExtractionStrategy string

const (
	StrategyMinimal       ExtractionStrategy = "minimal"
	StrategyBasic         ExtractionStrategy = "basic"
	StrategyComprehensive ExtractionStrategy = "comprehensive"
	StrategyVisual        ExtractionStrategy = "visual"
	StrategyTableFocused  ExtractionStrategy = "table_focused"
)

// KnownStrategies lists every strategy identifier the build recognizes.
func KnownStrategies() []ExtractionStrategy {
	return []ExtractionStrategy{
		StrategyMinimal,
		StrategyBasic,
		StrategyComprehensive,
		StrategyVisual,
		StrategyTableFocused,
	}
}

// IsKnownStrategy reports whether s is a recognized strategy identifier.
func IsKnownStrategy(s ExtractionStrategy) bool {
	for _, k := range KnownStrategies() {
		if k == s {
			return true
		}
	}
	return false
}

// ExtractionStep is one entry in an ExtractionPlan.
type ExtractionStep struct {
	StepNumber int
	Strategy   ExtractionStrategy
	Rationale  string
	IsFallback bool
}

// ExtractionPlan is an ordered sequence of steps for one page. Refinement
// extends a plan by appending new steps; prior steps are never mutated.
type ExtractionPlan struct {
	PageIndex int
	Steps     []ExtractionStep
}

// NextStepNumber returns the step number the next appended step must use to
// keep the append-only invariant (strictly greater than any seen so far).
func (p ExtractionPlan) NextStepNumber() int {
	max := 0
	for _, s := range p.Steps {
		if s.StepNumber > max {
			max = s.StepNumber
		}
	}
	return max + 1
}

// KeySection is a titled excerpt of page content. SectionID is a stable
// content hash of the (normalized) section body so repeated runs on
// identical content produce identical ids.
type KeySection struct {
	SectionID    string
	SectionTitle string
	Content      string
}

// VisualElement describes a chart, table, or image detected on a page.
// Numeric values are kept as strings to preserve signs, percent signs and
// thousands separators exactly as printed.
type VisualElement struct {
	ElementType string // e.g. "line_chart", "bubble_chart", "table", "image"
	Title       string
	Details     map[string]string
	Rows        [][]string // populated for table-shaped elements
}

// ExtractionContent is the strategy-specific, open-structured record a
// strategy parser produces. Unknown/extra fields are simply not modeled;
// this struct only fixes the subset every strategy may populate.
type ExtractionContent struct {
	MainTitle      string
	PageSummary    string
	KeySections    []KeySection
	VisualElements []VisualElement
}

// ExtractionResult is the outcome of running one plan step.
type ExtractionResult struct {
	StepNumber int
	Strategy   ExtractionStrategy
	Success    bool
	Content    ExtractionContent
	Error      string
	ModelUsed  string
	ElapsedMS  int
}

// PageResult is the terminal, merged artifact the core produces for one
// page.
type PageResult struct {
	PageIndex        int
	PageComplexity   PageComplexity
	ExtractionMethod string // "smart_routing" or "fallback"
	TotalSteps       int
	SuccessfulSteps  int
	MainTitle        string
	PageSummary      string
	KeySections      []KeySection
	VisualElements   []VisualElement
}

// LLMModelSpec describes one configured model and its fallback pointer.
type LLMModelSpec struct {
	ModelID         string
	Provider        string
	TokenLimit      int
	IsVisionCapable bool
	Fallback        string // model id, empty if none
}

// PipelineConfig holds the runtime options governing one pipeline run.
type PipelineConfig struct {
	ConcurrencyLimit           int
	RateLimitPerMinute         int
	RetryMaxAttempts           int
	RetryInitialDelay          time.Duration
	IterativeRefinementEnabled bool
	MaxRefinementCycles        int
	CallTimeout                time.Duration
}

// DefaultPipelineConfig returns conservative defaults: moderate
// concurrency/rate limits and a CallTimeout of 60s. No dispatch path copies
// CallTimeout into llm.Request.Timeout, so LLM calls are bounded only by
// their context.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ConcurrencyLimit:           4,
		RateLimitPerMinute:         60,
		RetryMaxAttempts:           3,
		RetryInitialDelay:          time.Second,
		IterativeRefinementEnabled: true,
		MaxRefinementCycles:        2,
		CallTimeout:                60 * time.Second,
	}
}

// MaxNewSteps bounds how many new steps a refinement cycle may append,
// given the number of steps already present in the plan: at least one, but
// tapering off as the plan grows so a page cannot accumulate unbounded
// steps.
func (PipelineConfig) MaxNewSteps(totalStepsSoFar int) int {
	n := 4 - totalStepsSoFar
	if n < 1 {
		n = 1
	}
	return n
}

// RunError records a per-page, unrecoverable error surfaced by the
// Orchestrator in the run's errors list.
type RunError struct {
	PageIndex int
	Kind      string
	Detail    string
}

// DocumentSummary is the executive-summary artifact produced by the
// downstream summary generator over the full set of PageResults.
type DocumentSummary struct {
	Title           string
	Overview        string
	KeyFindings     []string
	PageCount       int
	SuccessfulPages int
}

// Chunk is one token-bounded slice of a page's extracted text, produced by
// the chunker for downstream indexing.
type Chunk struct {
	ChunkID       string
	PageIndex     int
	Text          string
	TokenEstimate int
}
