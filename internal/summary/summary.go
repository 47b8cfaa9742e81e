// Package summary generates a document-level executive summary over a
// processed document's PageResults, following a cache-then-call-then-degrade
// shape: a cached or freshly generated summary is preferred, but a
// deterministic summary built from the page data is always available as a
// fallback.
package summary

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/dispatch"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/strategy"
)

// Generator produces one DocumentSummary per run.
type Generator struct {
	Dispatcher   *dispatch.Dispatcher
	DefaultModel string
}

type verdict struct {
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	KeyFindings []string `json:"key_findings"`
}

// Generate never returns an error: on any upstream failure it degrades to a
// deterministic summary built directly from the page results, mirroring the
// Router's "never die" guarantee.
func (g *Generator) Generate(ctx context.Context, pages []model.PageResult) model.DocumentSummary {
	if g.Dispatcher == nil || g.DefaultModel == "" {
		return deterministicSummary(pages)
	}

	raw, _, err := g.Dispatcher.Call(ctx, g.DefaultModel, func(modelID string) llm.Request {
		return llm.Request{
			Messages:       buildMessages(pages),
			Temperature:    0.2,
			ResponseFormat: llm.ResponseFormatJSONObject,
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("executive summary call failed; using deterministic summary")
		return deterministicSummary(pages)
	}

	v, err := parseVerdict(raw)
	if err != nil {
		log.Warn().Err(err).Msg("executive summary unparseable; using deterministic summary")
		return deterministicSummary(pages)
	}

	ds := deterministicSummary(pages)
	if strings.TrimSpace(v.Title) != "" {
		ds.Title = v.Title
	}
	if strings.TrimSpace(v.Overview) != "" {
		ds.Overview = v.Overview
	}
	if len(v.KeyFindings) > 0 {
		ds.KeyFindings = v.KeyFindings
	}
	return ds
}

// deterministicSummary builds a summary directly from the page results with
// no LLM involvement: the first populated main_title, and a concatenation of
// non-empty page summaries as both the overview and the key findings list.
func deterministicSummary(pages []model.PageResult) model.DocumentSummary {
	ds := model.DocumentSummary{PageCount: len(pages)}
	var overview []string
	for _, p := range pages {
		if p.SuccessfulSteps > 0 {
			ds.SuccessfulPages++
		}
		if ds.Title == "" && strings.TrimSpace(p.MainTitle) != "" {
			ds.Title = p.MainTitle
		}
		if s := strings.TrimSpace(p.PageSummary); s != "" {
			overview = append(overview, s)
			ds.KeyFindings = append(ds.KeyFindings, s)
		}
	}
	ds.Overview = strings.Join(overview, " ")
	return ds
}

func buildMessages(pages []model.PageResult) []llm.Message {
	system := "You write concise executive summaries of multi-page document extraction results. " +
		"Respond with strict JSON only: " +
		`{"title": string, "overview": string, "key_findings": string[]}.`
	var sb strings.Builder
	for _, p := range pages {
		if p.MainTitle != "" {
			sb.WriteString("Page ")
			sb.WriteString(strconv.Itoa(p.PageIndex))
			sb.WriteString(" title: ")
			sb.WriteString(p.MainTitle)
			sb.WriteString("\n")
		}
		if p.PageSummary != "" {
			sb.WriteString("Page ")
			sb.WriteString(strconv.Itoa(p.PageIndex))
			sb.WriteString(" summary: ")
			sb.WriteString(p.PageSummary)
			sb.WriteString("\n")
		}
	}
	return []llm.Message{
		{Role: "system", Text: system},
		{Role: "user", Text: sb.String()},
	}
}

func parseVerdict(raw string) (verdict, error) {
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}
	repaired := strategy.Repair(raw)
	var v2 verdict
	if err := json.Unmarshal([]byte(repaired), &v2); err != nil {
		return verdict{}, err
	}
	return v2, nil
}
