// Package generator produces text for assembled prompts.
package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/config"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/prompts"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/tracing"
)

const defaultModel = "gpt-4o-mini"

var (
	// ErrNotConfigured is returned when no API key is set
	ErrNotConfigured = errors.New("text generation is not configured")
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("model returned no content")
)

// Generator turns a prompt into text
type Generator interface {
	Generate(ctx context.Context, prompt *prompts.Prompt) (string, error)
}

// OpenAI generates text with the chat completions API
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a generator from config. Without an API key it returns
// ErrNotConfigured.
func NewOpenAI(cfg config.LLMConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Generate sends the prompt and returns the first choice's text
func (g *OpenAI) Generate(ctx context.Context, prompt *prompts.Prompt) (string, error) {
	span, ctx := tracing.StartSpan(ctx, "generator.generate")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "utility", prompt.UtilityID)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.complete(ctx, prompt)
	status := "success"
	if err != nil {
		status = "failed"
		tracing.LogError(span, err)
	}
	metrics.RecordGeneration(prompt.UtilityID, status, time.Since(start).Seconds())
	return text, err
}

func (g *OpenAI) complete(ctx context.Context, prompt *prompts.Prompt) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, buildParams(g.model, prompt))
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildParams(model string, prompt *prompts.Prompt) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}

	if len(prompt.Image) > 0 {
		messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt.User),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(prompt.ImageMIME, prompt.Image),
			}),
		}))
	} else {
		messages = append(messages, openai.UserMessage(prompt.User))
	}

	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	return err
}
