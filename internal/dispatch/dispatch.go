// Package dispatch composes the orthogonal resilience wrappers — rate
// limiting, retry/backoff, and fallback chaining — around the single "call
// one model once" primitive, in that order: fallback chaining wraps retry,
// which wraps the rate-limited raw call. Every LLM call in the pipeline
// (router, extraction strategies, refinement analyzer) goes through
// Dispatcher.Call.
package dispatch

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkshon115/semanticarranger/internal/cache"
	"github.com/hkshon115/semanticarranger/internal/errs"
	"github.com/hkshon115/semanticarranger/internal/fallback"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/ratelimit"
	"github.com/hkshon115/semanticarranger/internal/retry"
)

// Dispatcher holds the process-scoped collaborators threaded explicitly
// through the pipeline as a plain context object, never as module-level
// mutable state.
type Dispatcher struct {
	Client   llm.Client
	Limiter  *ratelimit.Limiter
	Registry fallback.Registry
	Retry    retry.Options
	// Cache, when set, short-circuits a call whose (starting model, prompt)
	// digest was already served in a prior run, so a repeated pipeline run
	// over the same page content issues no new LLM calls at all.
	Cache *cache.LLMCache
}

// Call gates one logical call (which may walk a fallback chain across
// several models) on the rate limiter per attempted model call, retries
// each model per Retry, and falls over to the next model in the chain on a
// fall-over-eligible terminal failure. Returns the raw completion string
// and the model id that ultimately produced it.
func (d *Dispatcher) Call(ctx context.Context, startModelID string, buildRequest func(modelID string) llm.Request) (string, string, error) {
	var cacheKey string
	if d.Cache != nil {
		cacheKey = cache.KeyFrom(startModelID, promptDigest(buildRequest(startModelID)))
		if raw, ok, err := d.Cache.Get(ctx, cacheKey); err == nil && ok {
			return string(raw), startModelID, nil
		}
	}

	call := func(ctx context.Context, modelID string) (string, error) {
		return retryResult(ctx, d.Retry, func(ctx context.Context) (string, error) {
			if d.Limiter != nil {
				if err := d.Limiter.Acquire(ctx); err != nil {
					if ctx.Err() != nil {
						return "", errs.New(errs.KindCancelled, "cancelled waiting for rate limit token", err)
					}
					return "", errs.New(errs.KindTerminalOther, "rate limiter error", err)
				}
			}
			req := buildRequest(modelID)
			req.Model = modelID
			out, err := d.Client.Complete(ctx, req)
			if err != nil {
				return "", err
			}
			return out, nil
		})
	}
	out, usedModel, err := fallback.Run(ctx, d.Registry, startModelID, call)
	if err == nil && d.Cache != nil {
		_ = d.Cache.Save(ctx, cacheKey, []byte(out))
	}
	return out, usedModel, err
}

// promptDigest reduces a request's messages to a stable string for cache
// keying. Image payloads are included by length only, since embedding the
// full base64 body in every cache key would make the key itself as large as
// the request.
func promptDigest(req llm.Request) string {
	var sb strings.Builder
	for _, m := range req.Messages {
		sb.WriteString(m.Role)
		sb.WriteString(":")
		sb.WriteString(m.Text)
		if m.ImageBase64 != "" {
			sb.WriteString(":img")
			sb.WriteString(strconv.Itoa(len(m.ImageBase64)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// retryResult adapts retry.Do (which wraps a func(ctx) error) to a
// func(ctx) (string, error) shape by closing over a result variable.
func retryResult(ctx context.Context, opts retry.Options, f func(ctx context.Context) (string, error)) (string, error) {
	var out string
	err := retry.Do(ctx, opts, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = f(ctx)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// mapRegistry adapts a plain map of model specs into a fallback.Registry.
type mapRegistry map[string]model.LLMModelSpec

func (m mapRegistry) Spec(id string) (model.LLMModelSpec, bool) {
	s, ok := m[id]
	return s, ok
}

// NewMapRegistry builds a fallback.Registry from a models map, useful for
// tests and for adapting modelconfig.Registry.Models directly.
func NewMapRegistry(models map[string]model.LLMModelSpec) fallback.Registry {
	return mapRegistry(models)
}
