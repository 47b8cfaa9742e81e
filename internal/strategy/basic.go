package strategy

import (
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// basicStrategy is a vision prompt returning title, summary and key
// sections.
type basicStrategy struct{}

func (basicStrategy) PromptFor(page model.PageInput) []llm.Message {
	system := "You are a document extraction assistant. Look at the page image and read the accompanying text. " +
		"Respond with strict JSON only: " +
		`{"main_title": string, "page_summary": string, "key_sections": [{"section_title": string, "content": string}]}. ` +
		"Split the page into its natural sections; do not invent sections that are not present."
	return visionMessages(system, page)
}

func (basicStrategy) Parse(raw string) (model.ExtractionContent, error) {
	wc, err := parseWireContent(raw)
	if err != nil {
		return model.ExtractionContent{}, err
	}
	return toContent(wc), nil
}

// visionMessages builds the common system+user(image+text) pair every
// vision-backed strategy shares.
func visionMessages(system string, page model.PageInput) []llm.Message {
	msgs := []llm.Message{{Role: "system", Text: system}}
	user := llm.Message{Role: "user", Text: "Page text (may be incomplete or noisy):\n\n" + page.Text}
	if len(page.Image) > 0 {
		user.ImageBase64 = llm.EncodeImage(page.Image)
		user.ImageMIME = page.ImageMIME
	}
	msgs = append(msgs, user)
	return msgs
}
