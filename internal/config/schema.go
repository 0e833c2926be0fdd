package config

import (
	"time"

	"github.com/jackzampolin/pageturn/internal/extract"
	"github.com/jackzampolin/pageturn/internal/ollama"
	"github.com/jackzampolin/pageturn/internal/providers"
	"github.com/jackzampolin/pageturn/internal/reader"
	"github.com/jackzampolin/pageturn/internal/reader/kindle"
	"github.com/jackzampolin/pageturn/internal/sidechannel"
	"github.com/jackzampolin/pageturn/internal/toc"
	"github.com/jackzampolin/pageturn/internal/transcribe"
)

// Config holds pageturn configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Reader        ReaderCfg        `mapstructure:"reader" yaml:"reader"`
	Navigation    NavigationCfg    `mapstructure:"navigation" yaml:"navigation"`
	Metadata      MetadataCfg      `mapstructure:"metadata" yaml:"metadata"`
	TOC           TOCCfg           `mapstructure:"toc" yaml:"toc"`
	Transcription TranscriptionCfg `mapstructure:"transcription" yaml:"transcription"`
	Ollama        OllamaCfg        `mapstructure:"ollama" yaml:"ollama"`
}

// ReaderCfg configures the browser session against the web reader.
type ReaderCfg struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`         // Chrome binary, empty = autodetect
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"` // Persistent profile, empty = temporary
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	Scale             float64       `mapstructure:"scale" yaml:"scale"`
	Email             string        `mapstructure:"email" yaml:"email"`       // Supports ${ENV_VAR} syntax
	Password          string        `mapstructure:"password" yaml:"password"` // Supports ${ENV_VAR} syntax
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
}

// NavigationCfg bounds page turns and capture pacing.
type NavigationCfg struct {
	MaxAdvances     int           `mapstructure:"max_advances" yaml:"max_advances"`
	PollsPerAdvance int           `mapstructure:"polls_per_advance" yaml:"polls_per_advance"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// MetadataCfg bounds the wait for side-channel metadata.
type MetadataCfg struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// TOCCfg tunes back-matter detection.
type TOCCfg struct {
	MinRatio        float64  `mapstructure:"min_ratio" yaml:"min_ratio"`
	ExtraBackMatter []string `mapstructure:"extra_back_matter" yaml:"extra_back_matter"` // Appended after the built-in patterns
}

// TranscriptionCfg configures the vision endpoint and the refusal retry policy.
type TranscriptionCfg struct {
	BaseURL              string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey               string        `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	Model                string        `mapstructure:"model" yaml:"model"`
	RateLimit            float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second, 0 = unlimited
	Timeout              time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts          int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Concurrency          int           `mapstructure:"concurrency" yaml:"concurrency"`
	BaseTemperature      float64       `mapstructure:"base_temperature" yaml:"base_temperature"`
	EscalatedTemperature float64       `mapstructure:"escalated_temperature" yaml:"escalated_temperature"`
	EscalateAfter        int           `mapstructure:"escalate_after" yaml:"escalate_after"`
	UrgentAfter          int           `mapstructure:"urgent_after" yaml:"urgent_after"`
	RetryDelay           time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// OllamaCfg holds the local Ollama container configuration.
type OllamaCfg struct {
	// Image is the Docker image to use (default: ollama/ollama:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// ContainerName is the Docker container name (default: derived from home)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Port is the host port to bind (default: 11434)
	Port string `mapstructure:"port" yaml:"port"`
	// GPUs requests all GPUs from the container runtime
	GPUs bool `mapstructure:"gpus" yaml:"gpus"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Reader: ReaderCfg{
			BaseURL:           kindle.DefaultBaseURL,
			Headless:          false,
			Width:             kindle.DefaultWidth,
			Height:            kindle.DefaultHeight,
			Scale:             kindle.DefaultDeviceScaleFactor,
			Email:             "${AMAZON_EMAIL}",
			Password:          "${AMAZON_PASSWORD}",
			NavigationTimeout: kindle.DefaultNavigationTimeout,
			ActionTimeout:     kindle.DefaultActionTimeout,
			LoginTimeout:      kindle.DefaultLoginTimeout,
		},
		Navigation: NavigationCfg{
			MaxAdvances:     reader.DefaultMaxAdvances,
			PollsPerAdvance: reader.DefaultPollsPerAdvance,
			PollInterval:    reader.DefaultPollInterval,
			SettleDelay:     extract.DefaultSettleDelay,
		},
		Metadata: MetadataCfg{
			Timeout:      sidechannel.DefaultTimeout,
			PollInterval: sidechannel.DefaultInterval,
		},
		TOC: TOCCfg{
			MinRatio:        toc.DefaultMinRatio,
			ExtraBackMatter: []string{},
		},
		Transcription: TranscriptionCfg{
			BaseURL:              providers.DefaultVisionBaseURL,
			APIKey:               "${PAGETURN_VISION_API_KEY}",
			Model:                providers.DefaultVisionModel,
			RateLimit:            0,
			Timeout:              providers.DefaultVisionTimeout,
			MaxAttempts:          transcribe.DefaultMaxAttempts,
			Concurrency:          transcribe.DefaultConcurrency,
			BaseTemperature:      0,
			EscalatedTemperature: transcribe.DefaultEscalatedTemperature,
			EscalateAfter:        transcribe.DefaultEscalateAfter,
			UrgentAfter:          transcribe.DefaultUrgentAfter,
			RetryDelay:           0,
		},
		Ollama: OllamaCfg{
			Image: ollama.DefaultImage,
			Port:  ollama.DefaultPort,
			GPUs:  false,
		},
	}
}
