package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
)

type Adapter struct {
	key         string
	model       string
	baseURL     string
	temperature float64
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	client      *http.Client
}

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

const (
	defaultTimeout = 90 * time.Second
	maxRetries     = 2
)

func New(o Options) *Adapter {
	if o.Model == "" {
		o.Model = "openai/gpt-4o-mini"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Adapter{
		key:         o.APIKey,
		model:       o.Model,
		baseURL:     normalizeBaseURL(o.BaseURL),
		temperature: o.Temperature,
		timeout:     o.Timeout,
		retries:     maxRetries,
		backoff:     2 * time.Second,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) Name() string { return "openrouter/" + a.model }

// GenerateJSON posts a chat completion with a strict json_schema response
// format. 429 and 5xx answers are retried a bounded number of times.
func (a *Adapter) GenerateJSON(ctx context.Context, jr ports.JSONRequest) ([]byte, error) {
	payload := map[string]any{
		"model":       a.model,
		"stream":      false,
		"temperature": a.temperature,
		"messages": []map[string]any{
			{"role": "system", "content": jr.System},
			{"role": "user", "content": jr.User},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   jr.SchemaName,
				"strict": true,
				"schema": jr.Schema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.backoff * time.Duration(attempt)):
			}
		}
		content, retry, err := a.do(ctx, body)
		if err == nil {
			clean, err := extractJSONDocument(content)
			if err != nil {
				return nil, err
			}
			return []byte(clean), nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

// do performs one request. retry reports whether the failure is transient.
func (a *Adapter) do(ctx context.Context, body []byte) (content string, retry bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", true, fmt.Errorf("openrouter timeout after %s (model=%s)", a.timeout, a.model)
		}
		return "", false, errors.New(redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", transient, fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", transient, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", false, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", false, errors.New("openrouter: no choices in response")
	}
	content, err = messageContentToString(raw.Choices[0].Message.Content)
	return content, false, err
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

// extractJSONDocument strips code fences and prose around the first JSON
// object or array in s.
func extractJSONDocument(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	open := strings.IndexAny(t, "{[")
	if open < 0 {
		return "", fmt.Errorf("openrouter: could not locate JSON in: %q", truncate(t, 200))
	}
	closer := "}"
	if t[open] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(t, closer)
	if end <= open {
		return "", fmt.Errorf("openrouter: could not locate JSON in: %q", truncate(t, 200))
	}
	return t[open : end+1], nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
