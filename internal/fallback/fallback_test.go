package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkshon115/semanticarranger/internal/errs"
	"github.com/hkshon115/semanticarranger/internal/model"
)

type mapRegistry map[string]model.LLMModelSpec

func (m mapRegistry) Spec(id string) (model.LLMModelSpec, bool) {
	s, ok := m[id]
	return s, ok
}

func TestRunSucceedsOnFirstModel(t *testing.T) {
	reg := mapRegistry{"a": {Fallback: "b"}, "b": {}}
	calls := []string{}
	out, used, err := Run(context.Background(), reg, "a", func(ctx context.Context, modelID string) (string, error) {
		calls = append(calls, modelID)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "a", used)
	assert.Equal(t, []string{"a"}, calls)
}

func TestRunWalksChainOnFailure(t *testing.T) {
	reg := mapRegistry{"a": {Fallback: "b"}, "b": {Fallback: "c"}, "c": {}}
	calls := []string{}
	out, used, err := Run(context.Background(), reg, "a", func(ctx context.Context, modelID string) (string, error) {
		calls = append(calls, modelID)
		if modelID == "c" {
			return "recovered", nil
		}
		return "", errs.New(errs.KindAuthFailure, "denied", nil)
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, "c", used)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestRunExhaustsChain(t *testing.T) {
	reg := mapRegistry{"a": {Fallback: "b"}, "b": {}}
	_, _, err := Run(context.Background(), reg, "a", func(ctx context.Context, modelID string) (string, error) {
		return "", errs.New(errs.KindAuthFailure, "denied", nil)
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindFallbackExhausted, errs.KindOf(err))
	assert.Contains(t, err.Error(), "a:")
	assert.Contains(t, err.Error(), "b:")
}

func TestRunStopsOnUnknownFallbackTarget(t *testing.T) {
	reg := mapRegistry{"a": {Fallback: "ghost"}}
	calls := []string{}
	_, _, err := Run(context.Background(), reg, "a", func(ctx context.Context, modelID string) (string, error) {
		calls = append(calls, modelID)
		return "", errs.New(errs.KindAuthFailure, "denied", nil)
	})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, calls)
}

func TestRunStopsOnCycle(t *testing.T) {
	reg := mapRegistry{"a": {Fallback: "b"}, "b": {Fallback: "a"}}
	calls := []string{}
	_, _, err := Run(context.Background(), reg, "a", func(ctx context.Context, modelID string) (string, error) {
		calls = append(calls, modelID)
		return "", errs.New(errs.KindAuthFailure, "denied", nil)
	})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestRunReturnsImmediatelyOnCancellation(t *testing.T) {
	reg := mapRegistry{"a": {Fallback: "b"}, "b": {}}
	calls := []string{}
	_, _, err := Run(context.Background(), reg, "a", func(ctx context.Context, modelID string) (string, error) {
		calls = append(calls, modelID)
		return "", errs.New(errs.KindCancelled, "cancelled", nil)
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindCancelled, errs.KindOf(err))
	assert.Equal(t, []string{"a"}, calls, "cancellation must not continue the chain")
}

func TestRunRejectsEmptyStartModel(t *testing.T) {
	reg := mapRegistry{}
	_, _, err := Run(context.Background(), reg, "", func(ctx context.Context, modelID string) (string, error) {
		t.Fatal("call must not happen")
		return "", nil
	})
	require.Error(t, err)
}
