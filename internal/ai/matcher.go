package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/listing"
	"github.com/spigell/job-scanner/internal/logger"
	"github.com/spigell/job-scanner/internal/utils"
)

const (
	defaultMaxLogLength = 200

	minScore = 0
	maxScore = 100
)

//go:embed prompt.md
var promptTemplate string

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Matcher builds the scoring prompt, sends it through a Generator and turns
// the answer into a ScoreResult.
type Matcher struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

type scorePayload struct {
	Score     any    `mapstructure:"score"`
	Reasoning string `mapstructure:"reasoning"`
	Rationale string `mapstructure:"rationale"`
}

func NewMatcher(generator Generator, log *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Matcher{
		generator: generator,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// Score asks the model for a 0-100 match score. Generator failures come back
// as *APIError, unusable answers as *ScoreParseError.
func (m *Matcher) Score(ctx context.Context, profile string, detail *listing.Detail) (*ScoreResult, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, errors.New("candidate profile is required")
	}
	if detail == nil {
		return nil, errors.New("listing detail is required")
	}

	prompt := BuildPrompt(profile, detail)
	log := m.logger.With(logger.ListingFields(detail.URL(), detail.TitleText())...)

	log.Debug("generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, prompt)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, &APIError{Provider: "unknown", Message: "generate content", Cause: err}
	}

	log.Debug("generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	score, rationale, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	return &ScoreResult{
		Listing:   detail,
		Score:     score,
		Rationale: rationale,
		Raw:       raw,
	}, nil
}

// BuildPrompt embeds the profile and the listing into the scoring template.
// Placeholders are substituted in one pass, so tokens inside the profile or
// the listing text are left as they are.
func BuildPrompt(profile string, detail *listing.Detail) string {
	return strings.NewReplacer(
		"{{PROFILE}}", strings.TrimSpace(profile),
		"{{LISTING}}", listingBlock(detail),
	).Replace(promptTemplate)
}

func listingBlock(detail *listing.Detail) string {
	var b strings.Builder

	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	line("Title", detail.TitleText())
	line("Company", detail.CompanyName())
	line("Location", detail.LocationName())
	line("Job type", detail.JobType)
	if detail.Deadline != nil {
		line("Deadline", detail.Deadline.Format("2006-01-02"))
	}
	line("URL", detail.URL())

	b.WriteString("\nJob Description:\n")
	b.WriteString(strings.TrimSpace(detail.Description))

	return b.String()
}

func parseResponse(raw string) (int, string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return 0, "", &ScoreParseError{Message: "response is not a JSON object", Raw: raw, Cause: err}
	}

	var payload scorePayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		return 0, "", err
	}
	if err := decoder.Decode(data); err != nil {
		return 0, "", &ScoreParseError{Message: "unexpected response fields", Raw: raw, Cause: err}
	}

	score, err := coerceScore(payload.Score)
	if err != nil {
		return 0, "", &ScoreParseError{Message: err.Error(), Raw: raw}
	}

	rationale := strings.TrimSpace(payload.Reasoning)
	if rationale == "" {
		rationale = strings.TrimSpace(payload.Rationale)
	}
	if rationale == "" {
		return 0, "", &ScoreParseError{Message: "empty reasoning", Raw: raw}
	}

	return score, rationale, nil
}

func coerceScore(v any) (int, error) {
	var f float64

	switch val := v.(type) {
	case nil:
		return 0, errors.New("score is missing")
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("score %q is not a number", val)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("score has unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("score %v is not an integer", f)
	}

	if f < minScore || f > maxScore {
		return 0, fmt.Errorf("score %v is out of range [%d,%d]", f, minScore, maxScore)
	}

	return int(f), nil
}

// extractJSON pulls the JSON object out of a model answer that may be wrapped
// in a code fence or surrounded by prose.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	start := strings.Index(raw, "{")
	if start == -1 {
		return raw
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}

	return raw[start:]
}
