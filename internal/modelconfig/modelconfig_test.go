package modelconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validYAML() string {
	return `
default_models:
  router: vision-a
  extraction: vision-a
  summarizer: text-a
models:
  vision-a:
    provider: openai
    token_limit: 128000
    is_vision_capable: true
    fallback: vision-b
  vision-b:
    provider: openai
    token_limit: 64000
    is_vision_capable: true
  text-a:
    provider: openai
    token_limit: 32000
    is_vision_capable: false
`
}

func TestParseValidRegistry(t *testing.T) {
	reg, err := Parse([]byte(validYAML()))
	require.NoError(t, err)
	assert.Equal(t, "vision-a", reg.Defaults.Router)
	assert.Len(t, reg.Models, 3)

	spec, ok := reg.Spec("vision-a")
	require.True(t, ok)
	assert.True(t, spec.IsVisionCapable)
	assert.Equal(t, "vision-b", spec.Fallback)
}

func TestParseRejectsEmptyModelSet(t *testing.T) {
	_, err := Parse([]byte("default_models:\n  router: a\n"))
	assert.Error(t, err)
}

func TestParseRejectsUnknownDefaultReference(t *testing.T) {
	doc := `
default_models:
  router: ghost
models:
  a:
    provider: openai
    is_vision_capable: true
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_models.router")
}

func TestParseRejectsUnknownFallbackReference(t *testing.T) {
	doc := `
models:
  a:
    provider: openai
    is_vision_capable: true
    fallback: ghost
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback")
}

func TestParseRejectsFallbackCycle(t *testing.T) {
	doc := `
models:
  a:
    provider: openai
    is_vision_capable: true
    fallback: b
  b:
    provider: openai
    is_vision_capable: true
    fallback: a
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParseRejectsNoVisionCapableRouterChain(t *testing.T) {
	doc := `
default_models:
  router: text-only
models:
  text-only:
    provider: openai
    is_vision_capable: false
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision-capable")
}

func TestParseAcceptsVisionReachableThroughFallback(t *testing.T) {
	doc := `
default_models:
  router: text-only
models:
  text-only:
    provider: openai
    is_vision_capable: false
    fallback: vision-capable
  vision-capable:
    provider: openai
    is_vision_capable: true
`
	reg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.True(t, reg.chainHasVision("text-only"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/models.yaml")
	assert.Error(t, err)
}
