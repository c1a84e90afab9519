package ai

import "fmt"

// APIError wraps a failed call to the completion API: authentication, rate
// limiting, network failures, timeouts and empty responses.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s api: %s: %v", e.Provider, msg, e.Cause)
	}
	return fmt.Sprintf("%s api: %s", e.Provider, msg)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// ScoreParseError is returned when the model answered but the answer is not a
// usable score: malformed JSON, a missing or non-integer score, a score
// outside [0,100] or an empty rationale.
type ScoreParseError struct {
	Message string
	Raw     string
	Cause   error
}

func (e *ScoreParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse score: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse score: %s", e.Message)
}

func (e *ScoreParseError) Unwrap() error {
	return e.Cause
}
