package strategy

import (
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// comprehensiveStrategy is a vision prompt returning everything basic
// returns plus typed visual_elements.
type comprehensiveStrategy struct{}

func (comprehensiveStrategy) PromptFor(page model.PageInput) []llm.Message {
	system := "You are a document extraction assistant performing a thorough pass over one page. " +
		"Respond with strict JSON only: " +
		`{"main_title": string, "page_summary": string, ` +
		`"key_sections": [{"section_title": string, "content": string}], ` +
		`"visual_elements": [{"element_type": string, "title": string, "details": object<string,string>, "rows": string[][]}]}. ` +
		"element_type is one of: line_chart, bar_chart, bubble_chart, pie_chart, table, image. " +
		"Keep every numeric value (amounts, percentages, counts) as a string exactly as printed, preserving signs, percent signs and thousand separators. " +
		"Only report visual elements that are actually present on the page."
	return visionMessages(system, page)
}

func (comprehensiveStrategy) Parse(raw string) (model.ExtractionContent, error) {
	wc, err := parseWireContent(raw)
	if err != nil {
		return model.ExtractionContent{}, err
	}
	return toContent(wc), nil
}
