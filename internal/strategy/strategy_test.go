package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkshon115/semanticarranger/internal/model"
)

func TestNewRegistryHasAllBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, id := range model.KnownStrategies() {
		_, ok := r.Get(id)
		assert.Truef(t, ok, "strategy %q should be registered", id)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get(model.ExtractionStrategy("nonexistent"))
	assert.False(t, ok)
}

func TestRegistryRegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register(model.StrategyMinimal, basicStrategy{})
	s, ok := r.Get(model.StrategyMinimal)
	require.True(t, ok)
	assert.IsType(t, basicStrategy{}, s)
}

func TestMinimalPromptIsTextOnly(t *testing.T) {
	page := model.PageInput{Text: "hello", Image: []byte("raw-bytes")}
	msgs := minimalStrategy{}.PromptFor(page)
	for _, m := range msgs {
		assert.Empty(t, m.ImageBase64, "minimal strategy must never attach an image")
	}
}

func TestVisionMessagesAttachesImageWhenPresent(t *testing.T) {
	page := model.PageInput{Text: "hello", Image: []byte("raw"), ImageMIME: "image/png"}
	msgs := visionMessages("sys", page)
	require.Len(t, msgs, 2)
	assert.NotEmpty(t, msgs[1].ImageBase64)
	assert.Equal(t, "image/png", msgs[1].ImageMIME)
}

func TestVisionMessagesOmitsImageWhenAbsent(t *testing.T) {
	page := model.PageInput{Text: "hello"}
	msgs := visionMessages("sys", page)
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].ImageBase64)
}

func TestMinimalParse(t *testing.T) {
	content, err := minimalStrategy{}.Parse(`{"main_title":"Title","page_summary":"Summary"}`)
	require.NoError(t, err)
	assert.Equal(t, "Title", content.MainTitle)
	assert.Equal(t, "Summary", content.PageSummary)
	assert.Empty(t, content.KeySections)
}

func TestBasicParsePopulatesKeySections(t *testing.T) {
	raw := `{"main_title":"T","page_summary":"S","key_sections":[{"section_title":"Intro","content":"body text"}]}`
	content, err := basicStrategy{}.Parse(raw)
	require.NoError(t, err)
	require.Len(t, content.KeySections, 1)
	assert.Equal(t, "Intro", content.KeySections[0].SectionTitle)
	assert.Equal(t, SectionID("body text"), content.KeySections[0].SectionID)
}

func TestComprehensiveParsePopulatesVisualElements(t *testing.T) {
	raw := `{"main_title":"T","visual_elements":[{"element_type":"bar_chart","title":"Revenue","rows":[["Q1","100"]]}]}`
	content, err := comprehensiveStrategy{}.Parse(raw)
	require.NoError(t, err)
	require.Len(t, content.VisualElements, 1)
	assert.Equal(t, "bar_chart", content.VisualElements[0].ElementType)
}

func TestVisualParseStripsScalarFields(t *testing.T) {
	raw := `{"main_title":"should be dropped","page_summary":"dropped","key_sections":[{"section_title":"x","content":"y"}],"visual_elements":[{"element_type":"pie_chart","title":"Share"}]}`
	content, err := visualStrategy{}.Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, content.MainTitle)
	assert.Empty(t, content.PageSummary)
	assert.Empty(t, content.KeySections)
	require.Len(t, content.VisualElements, 1)
	assert.Equal(t, "pie_chart", content.VisualElements[0].ElementType)
}

func TestTableFocusedParseDefaultsElementType(t *testing.T) {
	raw := `{"visual_elements":[{"title":"Balance Sheet","rows":[["Assets","100"]]}]}`
	content, err := tableFocusedStrategy{}.Parse(raw)
	require.NoError(t, err)
	require.Len(t, content.VisualElements, 1)
	assert.Equal(t, "table", content.VisualElements[0].ElementType)
}

func TestTableFocusedParseStripsScalarFields(t *testing.T) {
	raw := `{"main_title":"x","page_summary":"y","visual_elements":[{"element_type":"table","rows":[["a"]]}]}`
	content, err := tableFocusedStrategy{}.Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, content.MainTitle)
	assert.Empty(t, content.PageSummary)
}

func TestParseRepairsCodeFencedJSON(t *testing.T) {
	raw := "```json\n{\"main_title\": \"T\", \"page_summary\": \"S\"}\n```"
	content, err := minimalStrategy{}.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "T", content.MainTitle)
}

func TestParseRepairsLeadingTrailingNoise(t *testing.T) {
	raw := "Sure, here is the JSON: {\"main_title\": \"T\", \"page_summary\": \"S\"} Hope that helps!"
	content, err := minimalStrategy{}.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "T", content.MainTitle)
}

func TestParseFailsOnUnrepairableGarbage(t *testing.T) {
	_, err := minimalStrategy{}.Parse("not json at all")
	assert.Error(t, err)
}

func TestSectionIDStableAcrossWhitespace(t *testing.T) {
	a := SectionID("hello   world\n\tfoo")
	b := SectionID("hello world foo")
	assert.Equal(t, a, b)
}

func TestSectionIDDiffersForDifferentContent(t *testing.T) {
	assert.NotEqual(t, SectionID("a"), SectionID("b"))
}
