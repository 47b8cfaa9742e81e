package strategy

import (
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// minimalStrategy is text-only and must not request an image, as a cost
// saver. It returns only a title and a one-paragraph summary.
type minimalStrategy struct{}

func (minimalStrategy) PromptFor(page model.PageInput) []llm.Message {
	system := "You are a document extraction assistant. Respond with strict JSON only: " +
		`{"main_title": string, "page_summary": string}. ` +
		"page_summary must be a single paragraph. Do not invent content not present in the text."
	user := "Page text:\n\n" + page.Text
	return []llm.Message{
		{Role: "system", Text: system},
		{Role: "user", Text: user},
	}
}

func (minimalStrategy) Parse(raw string) (model.ExtractionContent, error) {
	wc, err := parseWireContent(raw)
	if err != nil {
		return model.ExtractionContent{}, err
	}
	return model.ExtractionContent{
		MainTitle:   wc.MainTitle,
		PageSummary: wc.PageSummary,
	}, nil
}
