package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/forPelevin/hlshorts/internal/ports"
)

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

type Adapter struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

func New(o Options) *Adapter {
	if o.Model == "" {
		o.Model = "gpt-4o-mini"
	}
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		// A failed call surfaces on the first attempt.
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(o.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	return &Adapter{
		client:      openai.NewClient(opts...),
		model:       o.Model,
		temperature: o.Temperature,
		timeout:     o.Timeout,
	}
}

func (a *Adapter) Name() string { return "openai/" + a.model }

func (a *Adapter) GenerateJSON(ctx context.Context, jr ports.JSONRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(jr.System),
			openai.UserMessage(jr.User),
		},
		Model:       a.model,
		Temperature: openai.Float(a.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   jr.SchemaName,
					Schema: jr.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices in response")
	}
	if r := resp.Choices[0].Message.Refusal; r != "" {
		return nil, fmt.Errorf("openai: model refused: %s", r)
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return nil, errors.New("openai: empty content")
	}
	return []byte(raw), nil
}
