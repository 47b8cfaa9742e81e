package strategy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hkshon115/semanticarranger/internal/model"
)

// wireVisualElement mirrors the JSON shape a strategy prompt asks for.
// Numeric-looking fields are kept as strings so printed signs,
// percent-signs, and thousand separators survive unchanged.
type wireVisualElement struct {
	ElementType string              `json:"element_type"`
	Title       string              `json:"title"`
	Details     map[string]string   `json:"details"`
	Rows        [][]string          `json:"rows"`
}

type wireKeySection struct {
	SectionTitle string `json:"section_title"`
	Content      string `json:"content"`
}

type wireContent struct {
	MainTitle      string              `json:"main_title"`
	PageSummary    string              `json:"page_summary"`
	KeySections    []wireKeySection    `json:"key_sections"`
	VisualElements []wireVisualElement `json:"visual_elements"`
}

// Repair attempts a single, best-effort cleanup of a malformed JSON
// payload: strip Markdown code fences, then trim to the outermost brace
// pair. Only one repair attempt is ever made.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// parseWireContent unmarshals raw into the common content shape, trying
// the raw payload first and then a single repaired attempt.
func parseWireContent(raw string) (wireContent, error) {
	var wc wireContent
	if err := json.Unmarshal([]byte(raw), &wc); err == nil {
		return wc, nil
	}
	repaired := Repair(raw)
	if err := json.Unmarshal([]byte(repaired), &wc); err != nil {
		return wireContent{}, fmt.Errorf("parse content json: %w", err)
	}
	return wc, nil
}

func toContent(wc wireContent) model.ExtractionContent {
	sections := make([]model.KeySection, 0, len(wc.KeySections))
	for _, s := range wc.KeySections {
		sections = append(sections, model.KeySection{
			SectionID:    SectionID(s.Content),
			SectionTitle: strings.TrimSpace(s.SectionTitle),
			Content:      s.Content,
		})
	}
	elements := make([]model.VisualElement, 0, len(wc.VisualElements))
	for _, e := range wc.VisualElements {
		elements = append(elements, model.VisualElement{
			ElementType: strings.TrimSpace(e.ElementType),
			Title:       strings.TrimSpace(e.Title),
			Details:     e.Details,
			Rows:        e.Rows,
		})
	}
	return model.ExtractionContent{
		MainTitle:      strings.TrimSpace(wc.MainTitle),
		PageSummary:    strings.TrimSpace(wc.PageSummary),
		KeySections:    sections,
		VisualElements: elements,
	}
}

// SectionID returns a stable content hash of a section body (SHA-256 of
// whitespace-normalized text) so repeated runs over identical content
// produce identical ids.
func SectionID(content string) string {
	normalized := normalizeWhitespace(content)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
