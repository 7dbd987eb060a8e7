// Package ai implements the completion client against OpenAI-compatible
// chat completion APIs.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/xeipuuv/gojsonschema"

	"github.com/talentforge/matching-engine/internal/adapter/ai/tokencount"
	"github.com/talentforge/matching-engine/internal/adapter/observability"
	"github.com/talentforge/matching-engine/internal/config"
	"github.com/talentforge/matching-engine/internal/domain"
)

// Client implements domain.CompletionClient against any OpenAI-compatible
// chat completions endpoint. A zero API key disables the client; callers
// check Enabled and degrade rather than error out.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	counter *tokencount.Counter
}

// New constructs a completion client. The http.Client carries no timeout;
// each attempt is bounded by a per-attempt context deadline so a retried
// call never inherits a half-spent budget.
func New(cfg config.Config) *Client {
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{},
		counter: tokencount.DefaultCounter,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.CompletionAPIKey != ""
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval, expo.MaxInterval = c.cfg.AIBackoff()
	expo.Multiplier = 2
	expo.MaxElapsedTime = 0
	var bo backoff.BackOff = backoff.WithMaxRetries(expo, uint64(c.cfg.AIMaxRetries))
	return backoff.WithContext(bo, ctx)
}

type chatRequest struct {
	Model          string               `json:"model"`
	Messages       []domain.ChatMessage `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat completion request and returns the trimmed reply text.
func (c *Client) Complete(ctx domain.Context, msgs []domain.ChatMessage) (string, error) {
	content, err := c.complete(ctx, "chat", c.cfg.ChatModel, msgs, nil)
	if err != nil {
		return "", err
	}
	return content, nil
}

// CompleteJSON sends a chat completion request in JSON mode and validates
// the reply against the given JSON schema. Schema violations are returned
// as *domain.SchemaError and are never retried: a model that produced a
// well-formed but wrong reply will not improve on replay of the same prompt.
func (c *Client) CompleteJSON(ctx domain.Context, msgs []domain.ChatMessage, schema []byte) ([]byte, error) {
	model := c.cfg.JSONModel
	if model == "" {
		model = c.cfg.ChatModel
	}
	content, err := c.complete(ctx, "chat_json", model, msgs, &responseFormat{Type: "json_object"})
	if err != nil {
		return nil, err
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewStringLoader(content),
	)
	if err != nil {
		return nil, &domain.SchemaError{Payload: content, Reason: err.Error()}
	}
	if !result.Valid() {
		se := &domain.SchemaError{Payload: content, Reason: "schema validation failed"}
		for _, desc := range result.Errors() {
			se.Fields = append(se.Fields, domain.FieldViolation{
				Path:    desc.Field(),
				Message: desc.Description(),
			})
		}
		return nil, se
	}
	return []byte(content), nil
}

func (c *Client) complete(ctx domain.Context, operation, model string, msgs []domain.ChatMessage, rf *responseFormat) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("%w: completion API key not configured", domain.ErrAIUnavailable)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("%w: empty message list", domain.ErrInvalidArgument)
	}

	body, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       msgs,
		Temperature:    c.cfg.AITemperature,
		ResponseFormat: rf,
	})
	if err != nil {
		return "", fmt.Errorf("op=ai.complete: marshal request: %w", err)
	}

	contents := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	observability.AIPromptTokens.WithLabelValues(operation).Observe(float64(c.counter.CountChatTokens(model, contents...)))

	endpoint := strings.TrimRight(c.cfg.CompletionBaseURL, "/") + "/chat/completions"
	var out chatResponse
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AITimeout)
		defer cancel()

		start := time.Now()
		// The body is rebuilt per attempt so a consumed reader is never reused.
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CompletionAPIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		observability.AIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.AIRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
			return classifyTransportErr(err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			observability.AIRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
			return classifyTransportErr(err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			observability.AIRequestsTotal.WithLabelValues(operation, "rate_limited").Inc()
			slog.Warn("completion provider rate limited", slog.String("operation", operation), slog.String("model", model))
			return fmt.Errorf("%w: rate limited (429)", domain.ErrAIUnavailable)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			observability.AIRequestsTotal.WithLabelValues(operation, "client_error").Inc()
			slog.Warn("completion provider 4xx",
				slog.String("operation", operation),
				slog.Int("status", resp.StatusCode),
				slog.String("body", snippet(respBody, 512)))
			return backoff.Permanent(fmt.Errorf("%w: completion status %d", domain.ErrAIUnavailable, resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			observability.AIRequestsTotal.WithLabelValues(operation, "server_error").Inc()
			slog.Warn("completion provider non-2xx",
				slog.String("operation", operation),
				slog.Int("status", resp.StatusCode),
				slog.String("body", snippet(respBody, 512)))
			return fmt.Errorf("%w: completion status %d", domain.ErrAIUnavailable, resp.StatusCode)
		}

		out = chatResponse{}
		if err := json.Unmarshal(respBody, &out); err != nil {
			observability.AIRequestsTotal.WithLabelValues(operation, "decode_error").Inc()
			return fmt.Errorf("%w: decode response: %v", domain.ErrAIUnavailable, err)
		}
		observability.AIRequestsTotal.WithLabelValues(operation, "ok").Inc()
		return nil
	}

	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		slog.Error("completion request failed after retries",
			slog.String("operation", operation),
			slog.String("model", model),
			slog.Any("error", err))
		if errors.Is(err, domain.ErrAIUnavailable) || errors.Is(err, domain.ErrUpstreamTimeout) {
			return "", fmt.Errorf("op=ai.complete: %w", err)
		}
		return "", fmt.Errorf("op=ai.complete: %w: %v", domain.ErrAIUnavailable, err)
	}

	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in completion response", domain.ErrAIUnavailable)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion content", domain.ErrAIUnavailable)
	}
	return content, nil
}

// classifyTransportErr maps connection-level failures onto domain sentinels.
// Deadline and cancellation errors become ErrUpstreamTimeout so callers can
// distinguish a slow provider from an unreachable one.
func classifyTransportErr(err error) error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	case errors.As(err, &nerr) && nerr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
