// Package fallback walks a declared model fallback chain, invoking the
// retry-wrapped call for each model in order and stopping on first
// success. Exhaustion yields a fallback_exhausted error listing every
// attempted model and its terminal cause.
package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/hkshon115/semanticarranger/internal/errs"
	"github.com/hkshon115/semanticarranger/internal/model"
)

// Registry resolves a model id to its spec, used to walk Fallback pointers.
type Registry interface {
	Spec(id string) (model.LLMModelSpec, bool)
}

// Attempt records one model tried in a chain walk, for the exhaustion
// error message.
type Attempt struct {
	ModelID string
	Cause   error
}

// Run walks the fallback chain starting at startModelID, invoking call for
// each model in turn. call is expected to already be wrapped by the rate
// limiter and retry handler, so this is the outermost layer of the
// composed dispatch stack. Returns the first successful result and the
// model id that produced it, or a
// fallback_exhausted error once every model in the chain has failed. A
// cancelled error is returned as-is, without trying any further model.
//
// A retryable error kind reaching this layer (meaning retry already gave
// up) is treated the same as any other terminal failure: the chain still
// advances to the next model rather than re-raising immediately, since the
// whole point of a fallback chain is to keep the call alive across
// terminal outcomes of any kind.
func Run(ctx context.Context, reg Registry, startModelID string, call func(ctx context.Context, modelID string) (string, error)) (string, string, error) {
	if startModelID == "" {
		return "", "", errs.New(errs.KindTerminalOther, "fallback: empty starting model", nil)
	}

	visited := make(map[string]bool)
	attempts := make([]Attempt, 0, 4)

	cur := startModelID
	for cur != "" {
		if visited[cur] {
			// Acyclicity is a config-load invariant; this guard only
			// protects against a Registry that was constructed without
			// going through modelconfig validation.
			break
		}
		visited[cur] = true

		out, err := call(ctx, cur)
		if err == nil {
			return out, cur, nil
		}
		attempts = append(attempts, Attempt{ModelID: cur, Cause: err})

		if errs.KindOf(err) == errs.KindCancelled {
			return "", "", err
		}

		spec, ok := reg.Spec(cur)
		if !ok {
			break
		}
		cur = spec.Fallback
	}

	return "", "", exhaustedError(attempts)
}

func exhaustedError(attempts []Attempt) *errs.Error {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.ModelID, a.Cause))
	}
	msg := "fallback chain exhausted: " + strings.Join(parts, "; ")
	return errs.New(errs.KindFallbackExhausted, msg, nil)
}
