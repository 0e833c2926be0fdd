package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const MockClientName = "mock"

// MockTranscriber is a Transcriber for testing. Responses are consumed in
// order; once exhausted, Default is returned.
type MockTranscriber struct {
	mu sync.Mutex

	// Responses are returned one per call.
	Responses []string
	// Default is returned after Responses run out.
	Default string
	// Err, when set, fails every call.
	Err error
	// Errs fail calls one at a time before Responses are consumed.
	// A nil entry lets that call through.
	Errs []error
	// ByImage overrides responses for a specific image payload.
	ByImage map[string][]string

	requests []TranscribeRequest
}

// NewMockTranscriber creates a mock returning responses in order.
func NewMockTranscriber(responses ...string) *MockTranscriber {
	return &MockTranscriber{Responses: responses}
}

// Name returns the client identifier.
func (m *MockTranscriber) Name() string {
	return MockClientName
}

// Transcribe records the request and returns the next scripted response.
func (m *MockTranscriber) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("request is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, *req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return nil, err
		}
	}

	text := m.Default
	key := string(req.Image)
	if queue, ok := m.ByImage[key]; ok {
		if len(queue) > 0 {
			text = queue[0]
			m.ByImage[key] = queue[1:]
		}
	} else if len(m.Responses) > 0 {
		text = m.Responses[0]
		m.Responses = m.Responses[1:]
	}

	return &TranscribeResult{
		Text:      text,
		Model:     req.Model,
		RequestID: fmt.Sprintf("mock-%d", len(m.requests)),
	}, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockTranscriber) Requests() []TranscribeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranscribeRequest(nil), m.requests...)
}

var _ Transcriber = (*MockTranscriber)(nil)
