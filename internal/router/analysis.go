package router

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/strategy"
)

// wireFlexInt unmarshals either a JSON number or a JSON string into a
// FlexInt, tolerating the LLM returning a descriptor like "several" instead
// of a count.
type wireFlexInt model.FlexInt

func (f *wireFlexInt) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		f.Value = asInt
		f.IsNumeric = true
		return nil
	}
	var asFloat float64
	if err := json.Unmarshal(data, &asFloat); err == nil {
		f.Value = int(asFloat)
		f.IsNumeric = true
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s := strings.TrimSpace(asString)
		if n, err := strconv.Atoi(s); err == nil {
			f.Value = n
			f.IsNumeric = true
		}
		f.Descriptor = s
		return nil
	}
	// Unknown shape (e.g. null, object): leave zero value, never fail the
	// whole parse over one permissive field.
	return nil
}

type wireAnalysis struct {
	PageComplexity        string       `json:"page_complexity"`
	TableCount            wireFlexInt  `json:"table_count"`
	ChartCount            wireFlexInt  `json:"chart_count"`
	DenseTextDescriptor   wireFlexInt  `json:"dense_text_descriptor"`
	RecommendedStrategies []string     `json:"recommended_strategies"`
}

// parseAnalysis parses raw JSON into a RouterAnalysis, dropping unknown
// strategy names with a warning rather than failing the whole parse.
func parseAnalysis(raw string) (model.RouterAnalysis, error) {
	var wa wireAnalysis
	if err := json.Unmarshal([]byte(raw), &wa); err != nil {
		repaired := strategy.Repair(raw)
		if err := json.Unmarshal([]byte(repaired), &wa); err != nil {
			return model.RouterAnalysis{}, fmt.Errorf("parse router analysis: %w", err)
		}
	}

	complexity := model.PageComplexity(strings.ToLower(strings.TrimSpace(wa.PageComplexity)))
	switch complexity {
	case model.ComplexitySimple, model.ComplexityModerate, model.ComplexityComplex:
		// recognized
	default:
		complexity = model.ComplexityModerate
	}

	strategies := make([]model.ExtractionStrategy, 0, len(wa.RecommendedStrategies))
	for _, s := range wa.RecommendedStrategies {
		id := model.ExtractionStrategy(strings.ToLower(strings.TrimSpace(s)))
		if !model.IsKnownStrategy(id) {
			log.Warn().Str("strategy", string(id)).Msg("router recommended unknown strategy; dropping")
			continue
		}
		strategies = append(strategies, id)
	}

	return model.RouterAnalysis{
		PageComplexity:         complexity,
		TableCount:             model.FlexInt(wa.TableCount),
		ChartCount:             model.FlexInt(wa.ChartCount),
		DenseTextDescriptor:    model.FlexInt(wa.DenseTextDescriptor),
		RecommendedStrategies:  strategies,
	}, nil
}

// hasNontrivialContent reports whether the analysis declared any tables,
// charts, or dense text, used by the router's tie-break rule.
func hasNontrivialContent(a model.RouterAnalysis) bool {
	nonzero := func(f model.FlexInt) bool {
		if f.IsNumeric {
			return f.Value > 0
		}
		return strings.TrimSpace(f.Descriptor) != ""
	}
	return nonzero(a.TableCount) || nonzero(a.ChartCount) || nonzero(a.DenseTextDescriptor)
}
