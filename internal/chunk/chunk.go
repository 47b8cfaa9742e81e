// Package chunk splits a processed document's PageResults into
// token-bounded slices for downstream indexing. Purely CPU-bound; it
// never issues an LLM call.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/hkshon115/semanticarranger/internal/budget"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// Options configures chunk sizing. In Split, a non-positive TargetTokens is
// replaced by the package default, as is an OverlapTokens that is negative
// or not smaller than TargetTokens; a zero OverlapTokens means no overlap.
type Options struct {
	TargetTokens int
	OverlapTokens int
}

// DefaultOptions returns an 800-token target with an 80-token overlap for
// retrieval continuity across chunk boundaries.
func DefaultOptions() Options {
	return Options{TargetTokens: 800, OverlapTokens: 80}
}

// Split produces chunks for every page in pages, in page order. Each page's
// text is the concatenation of its page summary and its key sections'
// content, in that order, joined by blank lines.
func Split(pages []model.PageResult, opts Options) []model.Chunk {
	if opts.TargetTokens <= 0 {
		opts.TargetTokens = DefaultOptions().TargetTokens
	}
	if opts.OverlapTokens < 0 || opts.OverlapTokens >= opts.TargetTokens {
		opts.OverlapTokens = DefaultOptions().OverlapTokens
	}

	var out []model.Chunk
	for _, p := range pages {
		text := pageText(p)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, splitPage(p.PageIndex, text, opts)...)
	}
	return out
}

func pageText(p model.PageResult) string {
	var sb strings.Builder
	if p.PageSummary != "" {
		sb.WriteString(p.PageSummary)
		sb.WriteString("\n\n")
	}
	for _, s := range p.KeySections {
		if s.Content == "" {
			continue
		}
		sb.WriteString(s.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// splitPage walks text in target-sized, overlapping windows measured in
// characters proportional to the token target, using the same ~4
// chars/token ratio budget.EstimateTokens assumes, so windows and their
// token estimates stay consistent with each other.
func splitPage(pageIndex int, text string, opts Options) []model.Chunk {
	targetChars := opts.TargetTokens * 4
	overlapChars := opts.OverlapTokens * 4
	if overlapChars >= targetChars {
		overlapChars = targetChars / 2
	}
	stride := targetChars - overlapChars
	if stride < 1 {
		stride = targetChars
	}

	var chunks []model.Chunk
	runes := []rune(text)
	n := len(runes)
	idx := 0
	for start := 0; start < n; start += stride {
		end := start + targetChars
		if end > n {
			end = n
		}
		body := strings.TrimSpace(string(runes[start:end]))
		if body != "" {
			chunks = append(chunks, model.Chunk{
				ChunkID:       chunkID(pageIndex, idx, body),
				PageIndex:     pageIndex,
				Text:          body,
				TokenEstimate: budget.EstimateTokens(body),
			})
			idx++
		}
		if end == n {
			break
		}
	}
	return chunks
}

func chunkID(pageIndex, ordinal int, body string) string {
	h := sha256.Sum256([]byte(body))
	return strconv.Itoa(pageIndex) + "-" + strconv.Itoa(ordinal) + "-" + hex.EncodeToString(h[:8])
}
