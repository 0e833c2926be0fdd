package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chatCompletionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "llava:13b",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "It was a bright cold day in April."}
	}],
	"usage": {"prompt_tokens": 812, "completion_tokens": 11, "total_tokens": 823}
}`

func TestVisionTranscribeSuccess(t *testing.T) {
	var payload map[string]any
	var requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		requestID = r.Header.Get("X-Request-ID")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	client := NewVisionClient(VisionConfig{BaseURL: server.URL})

	result, err := client.Transcribe(context.Background(), &TranscribeRequest{
		System:      "Read the text.",
		Image:       []byte("png-bytes"),
		Temperature: 0.5,
		RequestID:   "req-1",
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if result.Text != "It was a bright cold day in April." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.PromptTokens != 812 || result.CompletionTokens != 11 {
		t.Fatalf("unexpected usage: %+v", result)
	}
	if result.RequestID != "req-1" || requestID != "req-1" {
		t.Fatalf("request id not propagated: result=%q header=%q", result.RequestID, requestID)
	}

	if got, _ := payload["model"].(string); got != DefaultVisionModel {
		t.Fatalf("expected model %s, got %q", DefaultVisionModel, got)
	}
	if got, _ := payload["temperature"].(float64); got != 0.5 {
		t.Fatalf("expected temperature 0.5, got %v", payload["temperature"])
	}

	messages, _ := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	system, _ := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "Read the text." {
		t.Fatalf("unexpected system message: %v", system)
	}
	user, _ := messages[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected 1 user content part, got %v", user["content"])
	}
	part, _ := parts[0].(map[string]any)
	imageURL, _ := part["image_url"].(map[string]any)
	url, _ := imageURL["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected image url: %q", url)
	}
}

func TestVisionTranscribeZeroTemperatureIsSent(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	client := NewVisionClient(VisionConfig{BaseURL: server.URL, Model: "qwen2.5vl"})
	if _, err := client.Transcribe(context.Background(), &TranscribeRequest{Image: []byte("x")}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	temp, ok := payload["temperature"]
	if !ok || temp.(float64) != 0 {
		t.Fatalf("expected explicit temperature 0, got %v (present=%v)", temp, ok)
	}
	if payload["model"] != "qwen2.5vl" {
		t.Fatalf("expected configured model, got %v", payload["model"])
	}
}

func TestVisionTranscribeRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_error","param":"","code":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewVisionClient(VisionConfig{BaseURL: server.URL})

	_, err := client.Transcribe(context.Background(), &TranscribeRequest{Image: []byte("x")})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rle.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rle.StatusCode)
	}
	if rle.RetryAfter != 3*time.Second {
		t.Fatalf("expected RetryAfter=3s, got %v", rle.RetryAfter)
	}
}

func TestVisionTranscribeValidation(t *testing.T) {
	client := NewVisionClient(VisionConfig{})

	if _, err := client.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
	_, err := client.Transcribe(context.Background(), &TranscribeRequest{System: "x"})
	if err == nil || !strings.Contains(err.Error(), "image is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVisionHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llava:13b","object":"model","created":1,"owned_by":"library"}]}`))
	}))
	defer server.Close()

	client := NewVisionClient(VisionConfig{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}

func TestVisionDefaults(t *testing.T) {
	client := NewVisionClient(VisionConfig{})
	if client.Name() != VisionClientName {
		t.Errorf("Name() = %s", client.Name())
	}
	if client.Model() != DefaultVisionModel {
		t.Errorf("Model() = %s", client.Model())
	}
	if client.limiter != nil {
		t.Error("limiter set without RateLimit")
	}
	if NewVisionClient(VisionConfig{RateLimit: 2}).limiter == nil {
		t.Error("limiter missing with RateLimit")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":     0,
		"3":    3 * time.Second,
		"1.5":  1500 * time.Millisecond,
		"-1":   0,
		"soon": 0,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestVisionLive(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasVision() {
		t.Skip("PAGETURN_TEST_VISION_URL not set")
	}
	if err := cfg.NewVisionClient().HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}
