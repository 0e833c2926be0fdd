package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/pageturn/internal/extract"
	"github.com/jackzampolin/pageturn/internal/ollama"
	"github.com/jackzampolin/pageturn/internal/providers"
	"github.com/jackzampolin/pageturn/internal/reader"
	"github.com/jackzampolin/pageturn/internal/reader/kindle"
	"github.com/jackzampolin/pageturn/internal/toc"
	"github.com/jackzampolin/pageturn/internal/transcribe"
)

// EnvPrefix prefixes environment overrides, e.g. PAGETURN_READER_HEADLESS.
const EnvPrefix = "PAGETURN"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	logger    *slog.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// searchDir is consulted for config.yaml when cfgFile is empty.
func NewManager(cfgFile, searchDir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &Manager{
		v:         viper.New(),
		logger:    logger,
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, searchDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, searchDir string) error {
	for _, e := range DefaultEntries() {
		cm.v.SetDefault(e.Key, e.Value)
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		if searchDir != "" {
			cm.v.AddConfigPath(searchDir)
		}
		cm.v.AddConfigPath("$HOME/.pageturn")
	}

	// The config file is optional.
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// File returns the config file in use, or "" when running on defaults.
func (cm *Manager) File() string {
	return cm.v.ConfigFileUsed()
}

// Value returns the effective value of a single dotted key.
func (cm *Manager) Value(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if !cm.v.IsSet(key) {
		return nil, fmt.Errorf("%w: %s", ErrNoDefault, key)
	}
	return cm.v.Get(key), nil
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Credentials returns the reader account with ${ENV_VAR} references resolved.
func (c *Config) Credentials() (email, password string) {
	return ResolveEnvVars(c.Reader.Email), ResolveEnvVars(c.Reader.Password)
}

// KindleConfig converts the reader section into a browser session config.
func (c *Config) KindleConfig(logger *slog.Logger) kindle.Config {
	return kindle.Config{
		BaseURL:           c.Reader.BaseURL,
		Headless:          c.Reader.Headless,
		ExecPath:          c.Reader.ExecPath,
		UserDataDir:       c.Reader.UserDataDir,
		Width:             c.Reader.Width,
		Height:            c.Reader.Height,
		DeviceScaleFactor: c.Reader.Scale,
		NavigationTimeout: c.Reader.NavigationTimeout,
		ActionTimeout:     c.Reader.ActionTimeout,
		LoginTimeout:      c.Reader.LoginTimeout,
		Logger:            logger,
	}
}

// NavigatorConfig converts the navigation section into page-turn bounds.
func (c *Config) NavigatorConfig(logger *slog.Logger) reader.NavigatorConfig {
	return reader.NavigatorConfig{
		MaxAdvances:     c.Navigation.MaxAdvances,
		PollsPerAdvance: c.Navigation.PollsPerAdvance,
		PollInterval:    c.Navigation.PollInterval,
		Logger:          logger,
	}
}

// Tuning converts the sections that may change between documents.
// Invalid back-matter patterns are an error.
func (c *Config) Tuning(logger *slog.Logger) (extract.Tuning, error) {
	resolver, err := c.resolver()
	if err != nil {
		return extract.Tuning{}, err
	}
	return extract.Tuning{
		Navigator:            c.NavigatorConfig(logger),
		Resolver:             resolver,
		SettleDelay:          c.Navigation.SettleDelay,
		MetadataTimeout:      c.Metadata.Timeout,
		MetadataPollInterval: c.Metadata.PollInterval,
	}, nil
}

// VisionConfig converts the transcription section into a vision client config.
// ${ENV_VAR} references in the API key are resolved.
func (c *Config) VisionConfig() providers.VisionConfig {
	return providers.VisionConfig{
		BaseURL:   c.Transcription.BaseURL,
		APIKey:    ResolveEnvVars(c.Transcription.APIKey),
		Model:     c.Transcription.Model,
		RateLimit: c.Transcription.RateLimit,
		Timeout:   c.Transcription.Timeout,
	}
}

// TranscribeConfig converts the retry policy. Callers fill in the
// transcriber and home directory.
func (c *Config) TranscribeConfig(logger *slog.Logger) transcribe.Config {
	return transcribe.Config{
		Model:                c.Transcription.Model,
		MaxAttempts:          c.Transcription.MaxAttempts,
		EscalateAfter:        c.Transcription.EscalateAfter,
		BaseTemperature:      c.Transcription.BaseTemperature,
		EscalatedTemperature: c.Transcription.EscalatedTemperature,
		UrgentAfter:          c.Transcription.UrgentAfter,
		Concurrency:          c.Transcription.Concurrency,
		RetryDelay:           c.Transcription.RetryDelay,
		Logger:               logger,
	}
}

// DockerConfig converts the ollama section. The model cache lives under the
// pageturn home so pulls survive container removal.
func (c *Config) DockerConfig(homePath, modelPath string, logger *slog.Logger) ollama.DockerConfig {
	return ollama.DockerConfig{
		ContainerName: c.Ollama.ContainerName,
		HomePath:      homePath,
		Image:         c.Ollama.Image,
		ModelPath:     modelPath,
		HostPort:      c.Ollama.Port,
		GPUs:          c.Ollama.GPUs,
		Logger:        logger,
	}
}

func (c *Config) resolver() (toc.Resolver, error) {
	r := toc.DefaultResolver()
	if c.TOC.MinRatio > 0 {
		r.MinRatio = c.TOC.MinRatio
	}
	if len(c.TOC.ExtraBackMatter) > 0 {
		return r.WithPatterns(c.TOC.ExtraBackMatter...)
	}
	return r, nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(defaultTree())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pageturn configuration
# Environment overrides use the PAGETURN_ prefix: PAGETURN_READER_HEADLESS=true
# Secrets use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export AMAZON_EMAIL=xxx AMAZON_PASSWORD=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o600)
}
