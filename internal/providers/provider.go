package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transcriber turns a page image into text with a vision model.
type Transcriber interface {
	// Name returns the provider identifier (e.g., "ollama").
	Name() string

	// Transcribe sends one image with a system prompt.
	Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error)
}

// TranscribeRequest is one transcription attempt.
type TranscribeRequest struct {
	System      string
	Image       []byte
	MimeType    string // "image/png" when empty
	Temperature float64
	Model       string // uses client default if empty
	RequestID   string
}

// TranscribeResult is the model output of one attempt.
type TranscribeResult struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	RequestID string `json:"request_id"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`
}

// RateLimitError is returned when the endpoint answered 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError reports whether err wraps a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
