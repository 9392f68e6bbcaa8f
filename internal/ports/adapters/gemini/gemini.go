package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/forPelevin/hlshorts/internal/ports"
)

type Options struct {
	// APIKeys are tried in turn when a key is rate limited.
	APIKeys     []string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

type Adapter struct {
	keys        []string
	current     int
	model       string
	baseURL     string
	temperature float32
	timeout     time.Duration
}

func New(o Options) *Adapter {
	if o.Model == "" {
		o.Model = "gemini-2.5-flash"
	}
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	var keys []string
	for _, k := range o.APIKeys {
		for _, part := range strings.Split(k, ",") {
			if p := strings.TrimSpace(part); p != "" {
				keys = append(keys, p)
			}
		}
	}
	return &Adapter{
		keys:        keys,
		model:       o.Model,
		baseURL:     strings.TrimSpace(o.BaseURL),
		temperature: float32(o.Temperature),
		timeout:     o.Timeout,
	}
}

func (a *Adapter) Name() string { return "gemini/" + a.model }

// GenerateJSON asks for application/json output constrained by the request
// schema. Keys are rotated on 429 or quota errors.
func (a *Adapter) GenerateJSON(ctx context.Context, jr ports.JSONRequest) ([]byte, error) {
	if len(a.keys) == 0 {
		return nil, errors.New("gemini: no API key configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		ResponseSchema:    toSchema(jr.Schema),
		SystemInstruction: genai.NewContentFromText(jr.System, genai.RoleUser),
		Temperature:       genai.Ptr(a.temperature),
	}

	var lastErr error
	for range a.keys {
		cc := &genai.ClientConfig{
			APIKey:  a.keys[a.current],
			Backend: genai.BackendGeminiAPI,
		}
		if a.baseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: a.baseURL}
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			a.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, a.model, genai.Text(jr.User), cfg)
		if err != nil {
			if isRateLimited(err) {
				lastErr = err
				a.rotateKey()
				continue
			}
			return nil, fmt.Errorf("gemini generate content: %w", err)
		}
		text := responseText(result)
		if text == "" {
			return nil, errors.New("gemini: empty response")
		}
		return []byte(text), nil
	}
	return nil, fmt.Errorf("gemini: all API keys exhausted: %w", lastErr)
}

func (a *Adapter) rotateKey() {
	a.current = (a.current + 1) % len(a.keys)
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// toSchema converts a JSON Schema document into the OpenAPI subset Gemini
// accepts. Unsupported keywords such as additionalProperties are dropped.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		switch t {
		case "object":
			s.Type = genai.TypeObject
		case "array":
			s.Type = genai.TypeArray
		case "string":
			s.Type = genai.TypeString
		case "number":
			s.Type = genai.TypeNumber
		case "integer":
			s.Type = genai.TypeInteger
		case "boolean":
			s.Type = genai.TypeBoolean
		}
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[k] = toSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append([]string(nil), req...)
	case []any:
		for _, r := range req {
			if v, ok := r.(string); ok {
				s.Required = append(s.Required, v)
			}
		}
	}
	// Gemini orders properties alphabetically otherwise.
	if len(s.Properties) > 0 && len(s.Required) == len(s.Properties) {
		s.PropertyOrdering = s.Required
	}
	return s
}
