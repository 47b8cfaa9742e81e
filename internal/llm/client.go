// Package llm is the single-call façade over LLM providers. It normalizes
// vision- and text-mode chat requests and classifies failures into the
// taxonomy internal/errs defines so the retry handler and fallback chain
// can react appropriately.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hkshon115/semanticarranger/internal/errs"
)

// ResponseFormat selects whether the client should ask the provider for
// native JSON mode.
type ResponseFormat int

const (
	ResponseFormatFreeText ResponseFormat = iota
	ResponseFormatJSONObject
)

// Message is one role-tagged segment of a chat request. A message with
// only Text is sent as plain text; a message with ImageBase64 set is sent
// as a multi-part message: its Text (when non-empty) as a text part,
// followed by the image.
type Message struct {
	Role        string // "system", "user", "assistant"
	Text        string
	ImageBase64 string // raw base64 payload, no data-url prefix
	ImageMIME   string // e.g. "image/png"
}

// Request bundles one completion call's parameters.
type Request struct {
	Messages       []Message
	Model          string
	Temperature    float32
	MaxTokens      int
	ResponseFormat ResponseFormat
	Timeout        time.Duration
}

// Client is the minimal interface the retry handler, fallback chain,
// router, strategy set, and refinement analyzer need to call a chat model.
// It mirrors a CreateChatCompletion-shaped call so any OpenAI-compatible
// backend can be adapted.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIClient adapts *openai.Client to Client, translating Message/Request
// into the provider's wire format and classifying failures.
type OpenAIClient struct {
	Inner *openai.Client
}

// NewOpenAIClient builds an OpenAIClient against baseURL (empty uses the
// default OpenAI endpoint) with the given API key.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{Inner: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.Inner == nil {
		return "", errs.New(errs.KindTerminalOther, "llm client not configured", nil)
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	wireReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		N:           1,
	}
	if req.ResponseFormat == ResponseFormatJSONObject {
		wireReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.Inner.CreateChatCompletion(ctx, wireReq)
	if err != nil {
		classified := classifyCompletionError(err)
		// Some OpenAI-compatible backends do not support json_object mode
		// and reject the request as invalid. Downstream parsing still needs
		// raw text in that case, so retry once without the native JSON-mode
		// hint.
		if req.ResponseFormat == ResponseFormatJSONObject && classified.Kind == errs.KindInvalidRequest && looksLikeUnsupportedResponseFormat(classified.Message) {
			wireReq.ResponseFormat = nil
			resp, err = c.Inner.CreateChatCompletion(ctx, wireReq)
			if err != nil {
				return "", classifyCompletionError(err)
			}
		} else if err != nil {
			return "", classified
		}
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.KindTerminalOther, "no choices returned", nil)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errs.New(errs.KindTerminalOther, "empty completion", nil)
	}
	return out, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.ImageBase64 == "" {
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Text})
			continue
		}
		mime := m.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, m.ImageBase64)
		parts := make([]openai.ChatMessagePart, 0, 2)
		if m.Text != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: m.Text,
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailAuto,
			},
		})
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts})
	}
	return out
}

// EncodeImage returns the base64 payload for raw image bytes, the form
// Message.ImageBase64 expects.
func EncodeImage(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// classifyCompletionError maps a go-openai error (or a transport-level
// network error) into the shared error taxonomy: transient_http (5xx,
// reset, timeout), rate_limited (429), auth_failure (401/403),
// invalid_request (400/422), content_policy (provider refusal), cancelled
// (caller context was canceled), terminal_other.
func classifyCompletionError(err error) *errs.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isContentPolicyRefusal(apiErr) {
			return errs.New(errs.KindContentPolicy, apiErr.Message, err)
		}
		return errs.ClassifyByStatusCode(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errs.ClassifyByStatusCode(reqErr.HTTPStatusCode, err)
	}

	if errors.Is(err, context.Canceled) {
		return errs.New(errs.KindCancelled, "request canceled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.New(errs.KindTransientHTTP, "request timeout", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.KindTransientHTTP, "deadline exceeded", err)
	}

	return errs.New(errs.KindTerminalOther, err.Error(), err)
}

func looksLikeUnsupportedResponseFormat(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "response_format") || strings.Contains(msg, "json mode") || strings.Contains(msg, "json_object")
}

func isContentPolicyRefusal(apiErr *openai.APIError) bool {
	if apiErr == nil {
		return false
	}
	t := strings.ToLower(apiErr.Type)
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(t, "content_policy") ||
		strings.Contains(msg, "content policy") ||
		strings.Contains(msg, "content_filter") ||
		apiErr.HTTPStatusCode == http.StatusUnavailableForLegalReasons
}
