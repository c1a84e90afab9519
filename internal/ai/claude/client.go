package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spigell/job-scanner/internal/ai"
)

const (
	Provider = "claude"

	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 300
	defaultTimeout   = 60 * time.Second
)

type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Options configure the Anthropic messages client.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Generator sends prompts to the Anthropic messages API.
type Generator struct {
	messages  messagesAPI
	modelName string
	maxTokens int64
}

// NewGenerator creates a Generator. Retries are disabled: a failed call is
// reported to the caller, which records it and moves on.
func NewGenerator(opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	)

	return newGenerator(&client.Messages, opts.Model, opts.MaxTokens), nil
}

func newGenerator(messages messagesAPI, model string, maxTokens int) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Generator{messages: messages, modelName: model, maxTokens: int64(maxTokens)}
}

// GenerateContent sends prompt as a single user message and joins the text
// blocks of the reply.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.messages == nil {
		return "", &ai.APIError{Provider: Provider, Message: "generator is not initialized"}
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.modelName),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return "", wrapError(err)
	}

	var builder strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(text)
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", &ai.APIError{Provider: Provider, Message: "empty response"}
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func wrapError(err error) error {
	apiErr := &ai.APIError{Provider: Provider, Message: "create message", Cause: err}

	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		apiErr.StatusCode = sdkErr.StatusCode
		switch sdkErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			apiErr.Message = "authentication failed"
		case http.StatusTooManyRequests:
			apiErr.Message = "rate limited"
		}
		return apiErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		apiErr.Message = "request timed out"
	}

	return apiErr
}
