package strategy

import (
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// tableFocusedStrategy is tuned for tabular content; it populates
// visual_elements entries with element_type "table" and a row/column
// structure.
type tableFocusedStrategy struct{}

func (tableFocusedStrategy) PromptFor(page model.PageInput) []llm.Message {
	system := "You are a table extraction specialist. Find every tabular structure on this page, including " +
		"rows and columns that are implied by alignment rather than drawn borders. Respond with strict JSON only: " +
		`{"visual_elements": [{"element_type": "table", "title": string, "rows": string[][]}]}. ` +
		"The first row of \"rows\" is the header row when one exists. Keep every cell value as a string exactly " +
		"as printed, preserving signs, percent signs and thousand separators."
	return visionMessages(system, page)
}

func (tableFocusedStrategy) Parse(raw string) (model.ExtractionContent, error) {
	wc, err := parseWireContent(raw)
	if err != nil {
		return model.ExtractionContent{}, err
	}
	content := toContent(wc)
	content.MainTitle = ""
	content.PageSummary = ""
	content.KeySections = nil
	for i := range content.VisualElements {
		if content.VisualElements[i].ElementType == "" {
			content.VisualElements[i].ElementType = "table"
		}
	}
	return content, nil
}
