package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"

	"github.com/spigell/job-scanner/internal/ai"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	models []string
	texts  []string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.models = append(f.models, model)
	for _, content := range contents {
		for _, part := range content.Parts {
			f.texts = append(f.texts, part.Text)
		}
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, text := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeneratorReturnsText(t *testing.T) {
	fake := &fakeModels{resp: textResponse("first", " ", "second")}
	g := newGenerator(fake, "")

	output, err := g.GenerateContent(context.Background(), " rate this ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "first\nsecond" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(fake.models) != 1 || fake.models[0] != defaultModel {
		t.Fatalf("unexpected model calls: %v", fake.models)
	}

	if len(fake.texts) != 1 || fake.texts[0] != "rate this" {
		t.Fatalf("unexpected prompt parts: %v", fake.texts)
	}
}

func TestGeneratorMapsAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "quota",
			err:     genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: "quota exhausted"},
			status:  http.StatusTooManyRequests,
			message: "rate limited",
		},
		{
			name:    "bad key",
			err:     genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"},
			status:  http.StatusForbidden,
			message: "authentication failed",
		},
		{
			name:    "internal",
			err:     genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"},
			status:  http.StatusInternalServerError,
			message: "generate content",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			message: "request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&fakeModels{err: tt.err}, "gemini-test")

			_, err := g.GenerateContent(context.Background(), "prompt")
			var apiErr *ai.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *ai.APIError, got %T (%v)", err, err)
			}

			if apiErr.Provider != Provider {
				t.Fatalf("unexpected provider: %q", apiErr.Provider)
			}
			if apiErr.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, apiErr.StatusCode)
			}
			if apiErr.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, apiErr.Message)
			}
		})
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	g := newGenerator(&fakeModels{resp: &genai.GenerateContentResponse{}}, "")

	_, err := g.GenerateContent(context.Background(), "prompt")
	var apiErr *ai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ai.APIError, got %v", err)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestGeneratorModel(t *testing.T) {
	if got := newGenerator(&fakeModels{}, " gemini-custom ").Model(); got != "gemini-custom" {
		t.Fatalf("unexpected model: %q", got)
	}

	var g *Generator
	if g.Model() != "" {
		t.Fatal("nil generator should report empty model")
	}
}
