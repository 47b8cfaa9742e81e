// Package merge combines the per-step ExtractionResults for one page into
// a single PageResult.
package merge

import (
	"github.com/hkshon115/semanticarranger/internal/model"
)

// strategyRank orders strategies for scalar field precedence:
// comprehensive > basic > visual > table_focused > minimal.
var strategyRank = map[model.ExtractionStrategy]int{
	model.StrategyComprehensive: 5,
	model.StrategyBasic:         4,
	model.StrategyVisual:        3,
	model.StrategyTableFocused:  2,
	model.StrategyMinimal:       1,
}

// Merge produces the consolidated PageResult for one page from its ordered
// per-step results. fromRouter reports whether the plan came from the
// router (extraction_method "smart_routing") or is the default fallback
// plan ("fallback").
func Merge(pageIndex int, complexity model.PageComplexity, fromRouter bool, results []model.ExtractionResult) model.PageResult {
	pr := model.PageResult{
		PageIndex:      pageIndex,
		PageComplexity: complexity,
		TotalSteps:     len(results),
	}
	if fromRouter {
		pr.ExtractionMethod = "smart_routing"
	} else {
		pr.ExtractionMethod = "fallback"
	}

	successful := 0
	titleRank, titleStep := -1, -1
	summaryRank, summaryStep := -1, -1
	var title, summary string

	sectionsByID := make(map[string]model.KeySection)
	sectionOrder := make([]string, 0)

	type elementKey struct {
		elementType string
		title       string
	}
	elementsByKey := make(map[elementKey]model.VisualElement)
	elementOrder := make([]elementKey, 0)

	for _, r := range results {
		if !r.Success {
			continue
		}
		successful++

		rank := strategyRank[r.Strategy]
		if r.Content.MainTitle != "" && betterScalarCandidate(rank, r.StepNumber, titleRank, titleStep) {
			title = r.Content.MainTitle
			titleRank, titleStep = rank, r.StepNumber
		}
		if r.Content.PageSummary != "" && betterScalarCandidate(rank, r.StepNumber, summaryRank, summaryStep) {
			summary = r.Content.PageSummary
			summaryRank, summaryStep = rank, r.StepNumber
		}

		for _, s := range r.Content.KeySections {
			if _, seen := sectionsByID[s.SectionID]; !seen {
				sectionsByID[s.SectionID] = s
				sectionOrder = append(sectionOrder, s.SectionID)
			}
		}

		for _, ve := range r.Content.VisualElements {
			key := elementKey{elementType: ve.ElementType, title: ve.Title}
			existing, seen := elementsByKey[key]
			if !seen {
				elementsByKey[key] = ve
				elementOrder = append(elementOrder, key)
				continue
			}
			if populatedFieldCount(ve) > populatedFieldCount(existing) {
				elementsByKey[key] = ve
			}
		}
	}

	pr.SuccessfulSteps = successful
	pr.MainTitle = title
	pr.PageSummary = summary

	sections := make([]model.KeySection, 0, len(sectionOrder))
	for _, id := range sectionOrder {
		sections = append(sections, sectionsByID[id])
	}
	pr.KeySections = sections

	elements := make([]model.VisualElement, 0, len(elementOrder))
	for _, k := range elementOrder {
		elements = append(elements, elementsByKey[k])
	}
	pr.VisualElements = elements

	return pr
}

// betterScalarCandidate reports whether a candidate of the given rank/step
// should replace the current best: the highest-ranked strategy wins,
// ties broken by step order so the earliest step wins.
func betterScalarCandidate(rank, step, bestRank, bestStep int) bool {
	if bestRank == -1 {
		return true
	}
	if rank != bestRank {
		return rank > bestRank
	}
	return step < bestStep
}

func populatedFieldCount(ve model.VisualElement) int {
	n := 0
	if ve.ElementType != "" {
		n++
	}
	if ve.Title != "" {
		n++
	}
	n += len(ve.Details)
	n += len(ve.Rows)
	return n
}
