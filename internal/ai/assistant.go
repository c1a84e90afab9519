package ai

import (
	"context"

	"github.com/spigell/job-scanner/internal/listing"
)

// ScoreResult is a successful assessment of one listing against the profile.
type ScoreResult struct {
	Listing   *listing.Detail
	Score     int
	Rationale string
	Raw       string
}

// Scorer rates how well a listing matches a candidate profile.
type Scorer interface {
	Score(ctx context.Context, profile string, detail *listing.Detail) (*ScoreResult, error)
}

// Generator is a completion backend: one prompt in, generated text out.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}
