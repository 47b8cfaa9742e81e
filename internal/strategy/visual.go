package strategy

import (
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// visualStrategy is tuned for charts and graphics; it populates only
// visual_elements.
type visualStrategy struct{}

func (visualStrategy) PromptFor(page model.PageInput) []llm.Message {
	system := "You are a chart and graphics extraction specialist. Focus exclusively on charts, diagrams and " +
		"illustrations on this page; ignore prose paragraphs. Respond with strict JSON only: " +
		`{"visual_elements": [{"element_type": string, "title": string, "details": object<string,string>, "rows": string[][]}]}. ` +
		"element_type is one of: line_chart, bar_chart, bubble_chart, pie_chart, image. " +
		"Keep numeric values as strings exactly as printed."
	return visionMessages(system, page)
}

func (visualStrategy) Parse(raw string) (model.ExtractionContent, error) {
	wc, err := parseWireContent(raw)
	if err != nil {
		return model.ExtractionContent{}, err
	}
	content := toContent(wc)
	// visual-only strategy: never surface scalar/key_sections fields even
	// if the model included them, to keep merge ranking predictable.
	content.MainTitle = ""
	content.PageSummary = ""
	content.KeySections = nil
	return content, nil
}
