package providers

import (
	"os"
)

// TestConfig holds a live vision endpoint loaded from environment variables.
type TestConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// LoadTestConfig reads PAGETURN_TEST_VISION_URL, PAGETURN_TEST_VISION_KEY and
// PAGETURN_TEST_VISION_MODEL.
func LoadTestConfig() TestConfig {
	return TestConfig{
		BaseURL: os.Getenv("PAGETURN_TEST_VISION_URL"),
		APIKey:  os.Getenv("PAGETURN_TEST_VISION_KEY"),
		Model:   os.Getenv("PAGETURN_TEST_VISION_MODEL"),
	}
}

// HasVision returns true if a live endpoint is configured.
func (c TestConfig) HasVision() bool {
	return c.BaseURL != ""
}

// NewVisionClient creates a client from test config.
// Returns nil if not configured.
func (c TestConfig) NewVisionClient() *VisionClient {
	if !c.HasVision() {
		return nil
	}
	return NewVisionClient(VisionConfig{
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		Model:   c.Model,
	})
}
