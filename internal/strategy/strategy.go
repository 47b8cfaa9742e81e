// Package strategy implements the pluggable (prompt, parser) pairs the
// Router dispatches and the Extractor executes. Each strategy is
// registered under its ExtractionStrategy identifier; adding a new one is
// registry insertion plus enum extension.
package strategy

import (
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// Strategy is the capability interface every extraction strategy exposes.
// Implementations must be safely reusable across concurrent pages (they
// hold no per-call state).
type Strategy interface {
	// PromptFor builds the chat messages for one page. text-only
	// strategies (minimal) must not include an image segment, as a cost
	// saver.
	PromptFor(page model.PageInput) []llm.Message
	// Parse turns a raw completion string into a content record. The
	// built-in strategies try the raw payload, then one Repair attempt,
	// before returning an error, which the Extractor records as
	// success=false.
	Parse(raw string) (model.ExtractionContent, error)
}

// Registry maps each known strategy identifier to its implementation.
type Registry struct {
	strategies map[model.ExtractionStrategy]Strategy
}

// NewRegistry builds the default registry with every built-in strategy
// wired in.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[model.ExtractionStrategy]Strategy, 5)}
	r.Register(model.StrategyMinimal, minimalStrategy{})
	r.Register(model.StrategyBasic, basicStrategy{})
	r.Register(model.StrategyComprehensive, comprehensiveStrategy{})
	r.Register(model.StrategyVisual, visualStrategy{})
	r.Register(model.StrategyTableFocused, tableFocusedStrategy{})
	return r
}

// Register adds or replaces the implementation for an identifier.
func (r *Registry) Register(id model.ExtractionStrategy, s Strategy) {
	r.strategies[id] = s
}

// Get returns the strategy for id, or false if unregistered.
func (r *Registry) Get(id model.ExtractionStrategy) (Strategy, bool) {
	s, ok := r.strategies[id]
	return s, ok
}
