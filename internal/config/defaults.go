package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is a single configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// DefaultEntries returns every leaf key with its default value. Viper
// defaults are registered from this list so that environment overrides work
// for keys missing from the config file.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// Reader
		{Key: "reader.base_url", Value: d.Reader.BaseURL, Description: "Web reader base URL"},
		{Key: "reader.headless", Value: d.Reader.Headless, Description: "Run Chrome without a window"},
		{Key: "reader.exec_path", Value: d.Reader.ExecPath, Description: "Chrome binary (empty = autodetect)"},
		{Key: "reader.user_data_dir", Value: d.Reader.UserDataDir, Description: "Persistent Chrome profile directory"},
		{Key: "reader.width", Value: d.Reader.Width, Description: "Viewport width in CSS pixels"},
		{Key: "reader.height", Value: d.Reader.Height, Description: "Viewport height in CSS pixels"},
		{Key: "reader.scale", Value: d.Reader.Scale, Description: "Device scale factor for captures"},
		{Key: "reader.email", Value: d.Reader.Email, Description: "Account email (uses environment variable)"},
		{Key: "reader.password", Value: d.Reader.Password, Description: "Account password (uses environment variable)"},
		{Key: "reader.navigation_timeout", Value: d.Reader.NavigationTimeout, Description: "Timeout for opening a document"},
		{Key: "reader.action_timeout", Value: d.Reader.ActionTimeout, Description: "Timeout for a single reader action"},
		{Key: "reader.login_timeout", Value: d.Reader.LoginTimeout, Description: "How long to wait for the reader after signing in"},

		// Navigation
		{Key: "navigation.max_advances", Value: d.Navigation.MaxAdvances, Description: "Advance actions issued per page turn before assuming the end"},
		{Key: "navigation.polls_per_advance", Value: d.Navigation.PollsPerAdvance, Description: "Fingerprint checks after each advance"},
		{Key: "navigation.poll_interval", Value: d.Navigation.PollInterval, Description: "Pause between fingerprint checks"},
		{Key: "navigation.settle_delay", Value: d.Navigation.SettleDelay, Description: "Pause after each capture"},

		// Metadata
		{Key: "metadata.timeout", Value: d.Metadata.Timeout, Description: "How long to wait for side-channel metadata"},
		{Key: "metadata.poll_interval", Value: d.Metadata.PollInterval, Description: "Metadata polling interval"},

		// TOC
		{Key: "toc.min_ratio", Value: d.TOC.MinRatio, Description: "Earliest page/total ratio for back matter"},
		{Key: "toc.extra_back_matter", Value: d.TOC.ExtraBackMatter, Description: "Additional back-matter title patterns"},

		// Transcription
		{Key: "transcription.base_url", Value: d.Transcription.BaseURL, Description: "OpenAI-compatible vision endpoint"},
		{Key: "transcription.api_key", Value: d.Transcription.APIKey, Description: "Vision API key (uses environment variable)"},
		{Key: "transcription.model", Value: d.Transcription.Model, Description: "Vision model"},
		{Key: "transcription.rate_limit", Value: d.Transcription.RateLimit, Description: "Requests per second (0 = unlimited)"},
		{Key: "transcription.timeout", Value: d.Transcription.Timeout, Description: "HTTP timeout per request"},
		{Key: "transcription.max_attempts", Value: d.Transcription.MaxAttempts, Description: "Attempts per page before giving up"},
		{Key: "transcription.concurrency", Value: d.Transcription.Concurrency, Description: "Pages transcribed in parallel"},
		{Key: "transcription.base_temperature", Value: d.Transcription.BaseTemperature, Description: "Temperature for early attempts"},
		{Key: "transcription.escalated_temperature", Value: d.Transcription.EscalatedTemperature, Description: "Temperature after escalation"},
		{Key: "transcription.escalate_after", Value: d.Transcription.EscalateAfter, Description: "Attempts made at the base temperature"},
		{Key: "transcription.urgent_after", Value: d.Transcription.UrgentAfter, Description: "Attempts made before the urgency prompt"},
		{Key: "transcription.retry_delay", Value: d.Transcription.RetryDelay, Description: "Pause between attempts"},

		// Ollama
		{Key: "ollama.image", Value: d.Ollama.Image, Description: "Ollama Docker image"},
		{Key: "ollama.container_name", Value: d.Ollama.ContainerName, Description: "Container name (empty = derived from home)"},
		{Key: "ollama.port", Value: d.Ollama.Port, Description: "Host port for the Ollama API"},
		{Key: "ollama.gpus", Value: d.Ollama.GPUs, Description: "Request all GPUs for the container"},
	}
}

// GetDefault returns the default entry for a key, or nil if none exists.
func GetDefault(key string) *Entry {
	for _, e := range DefaultEntries() {
		if e.Key == key {
			return &e
		}
	}
	return nil
}

// defaultTree nests DefaultEntries by their dotted keys, rendering durations
// as strings so the written file round-trips through viper.
func defaultTree() map[string]any {
	tree := make(map[string]any)
	for _, e := range DefaultEntries() {
		parts := strings.Split(e.Key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		value := e.Value
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		node[parts[len(parts)-1]] = value
	}
	return tree
}
