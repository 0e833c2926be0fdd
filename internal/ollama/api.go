package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// WaitReady polls baseURL/api/tags once a second until it answers 200.
func WaitReady(ctx context.Context, baseURL string, timeout time.Duration) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	url := strings.TrimRight(baseURL, "/") + "/api/tags"

	attempts := uint(timeout.Seconds())
	if attempts == 0 {
		attempts = 1
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Pull asks the server at baseURL to download model and waits for it to finish.
func Pull(ctx context.Context, baseURL, model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model is required")
	}
	body, err := json.Marshal(pullRequest{Model: model, Stream: false})
	if err != nil {
		return fmt.Errorf("failed to marshal pull request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/api/pull"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Large models take a long time to download; only ctx bounds this call.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("pull %s failed: %w", model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read pull response: %w", err)
	}

	var pr pullResponse
	_ = json.Unmarshal(respBody, &pr)
	if resp.StatusCode != http.StatusOK {
		msg := pr.Error
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return fmt.Errorf("pull %s failed (status %d): %s", model, resp.StatusCode, msg)
	}
	if pr.Error != "" {
		return fmt.Errorf("pull %s failed: %s", model, pr.Error)
	}
	if pr.Status != "success" {
		return fmt.Errorf("pull %s ended with status %q", model, pr.Status)
	}
	return nil
}
