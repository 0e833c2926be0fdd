// Package ollama runs a local Ollama server in Docker as the default
// transcription backend.
package ollama

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	DefaultImage         = "ollama/ollama:latest"
	DefaultContainerName = "pageturn-ollama"
	ContainerNamePrefix  = "pageturn-ollama-"
	DefaultPort          = "11434"
	ContainerPort        = "11434/tcp"
	ModelDir             = "/root/.ollama"
	Label                = "pageturn-ollama"

	defaultReadyTimeout = 60 * time.Second
)

// ContainerStatus represents the state of the Ollama container.
type ContainerStatus string

const (
	StatusRunning   ContainerStatus = "running"
	StatusStopped   ContainerStatus = "stopped"
	StatusNotFound  ContainerStatus = "not_found"
	StatusUnhealthy ContainerStatus = "unhealthy"
	StatusStarting  ContainerStatus = "starting"
)

// DockerManager manages the Ollama Docker container lifecycle.
type DockerManager struct {
	cli           *client.Client
	containerName string
	imageName     string
	modelPath     string            // Host path for the model cache (~/.pageturn/ollama)
	hostPort      string            // Host port to bind (default: 11434)
	gpus          bool              // Request all GPUs from the runtime
	labels        map[string]string // Container labels
	logger        *slog.Logger
}

// DockerConfig holds configuration for the Docker manager.
type DockerConfig struct {
	ContainerName string
	HomePath      string // Used to derive a per-home container name
	Image         string
	ModelPath     string
	HostPort      string
	GPUs          bool
	Labels        map[string]string // Optional labels for container (used for test cleanup)
	Logger        *slog.Logger
}

// GenerateContainerName derives a stable container name from a home path so
// separate homes do not share a container.
func GenerateContainerName(homePath string) string {
	sum := sha256.Sum256([]byte(homePath))
	return ContainerNamePrefix + hex.EncodeToString(sum[:])[:8]
}

// NewDockerManager creates a new Docker manager for Ollama.
func NewDockerManager(cfg DockerConfig) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Set defaults
	if cfg.ContainerName == "" {
		if cfg.HomePath != "" {
			cfg.ContainerName = GenerateContainerName(cfg.HomePath)
		} else {
			cfg.ContainerName = DefaultContainerName
		}
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.HostPort == "" {
		cfg.HostPort = DefaultPort
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Merge default label with any provided labels
	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &DockerManager{
		cli:           cli,
		containerName: cfg.ContainerName,
		imageName:     cfg.Image,
		modelPath:     cfg.ModelPath,
		hostPort:      cfg.HostPort,
		gpus:          cfg.GPUs,
		labels:        labels,
		logger:        logger,
	}, nil
}

// Close closes the Docker client.
func (m *DockerManager) Close() error {
	return m.cli.Close()
}

// ContainerName returns the managed container's name.
func (m *DockerManager) ContainerName() string {
	return m.containerName
}

// containerRef identifies the managed container, if it exists.
type containerRef struct {
	id     string
	status ContainerStatus
}

// Start starts the Ollama container, creating it when needed, and waits
// for the API to answer.
func (m *DockerManager) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	ref, err := m.lookup(ctx)
	if err != nil {
		return err
	}

	switch ref.status {
	case StatusRunning, StatusStarting:
	case StatusStopped:
		m.logger.Info("starting existing ollama container", "container", m.containerName)
		if err := m.cli.ContainerStart(ctx, ref.id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
	case StatusNotFound:
		if err := m.create(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("container %s in unexpected state: %s", m.containerName, ref.status)
	}
	return m.WaitReady(ctx, defaultReadyTimeout)
}

// Stop stops the Ollama container. A missing container is not an error.
func (m *DockerManager) Stop(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil || ref.status == StatusNotFound {
		return err
	}

	timeout := 10
	if err := m.cli.ContainerStop(ctx, ref.id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	m.logger.Info("stopped ollama container", "container", m.containerName)
	return nil
}

// Remove stops and removes the Ollama container. The model cache on the
// host is kept.
func (m *DockerManager) Remove(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil || ref.status == StatusNotFound {
		return err
	}

	if err := m.cli.ContainerRemove(ctx, ref.id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	m.logger.Info("removed ollama container", "container", m.containerName)
	return nil
}

// Status returns the current status of the Ollama container.
func (m *DockerManager) Status(ctx context.Context) (ContainerStatus, error) {
	ref, err := m.lookup(ctx)
	return ref.status, err
}

// Logs returns the last tail lines of the container output.
func (m *DockerManager) Logs(ctx context.Context, tail string) (string, error) {
	ref, err := m.lookup(ctx)
	if err != nil {
		return "", err
	}
	if ref.status == StatusNotFound {
		return "", fmt.Errorf("container %s not found", m.containerName)
	}

	rc, err := m.cli.ContainerLogs(ctx, ref.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return string(data), nil
}

// URL returns the native Ollama API URL.
func (m *DockerManager) URL() string {
	return "http://localhost:" + m.hostPort
}

// OpenAIURL returns the OpenAI-compatible endpoint served by the container.
func (m *DockerManager) OpenAIURL() string {
	return m.URL() + "/v1"
}

// WaitReady waits for Ollama to answer API requests.
func (m *DockerManager) WaitReady(ctx context.Context, timeout time.Duration) error {
	return WaitReady(ctx, m.URL(), timeout)
}

// Pull downloads a model into the container's cache.
func (m *DockerManager) Pull(ctx context.Context, model string) error {
	m.logger.Info("pulling model", "model", model, "container", m.containerName)
	return Pull(ctx, m.URL(), model)
}

// containerSpec builds the create request: the API port bound to loopback,
// the model cache bind mounted, and optionally every GPU.
func (m *DockerManager) containerSpec() (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:        m.imageName,
		Labels:       m.labels,
		ExposedPorts: nat.PortSet{ContainerPort: struct{}{}},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "ollama", "list"},
			Interval:    5 * time.Second,
			Timeout:     5 * time.Second,
			Retries:     10,
			StartPeriod: 5 * time.Second,
		},
	}

	host := &container.HostConfig{
		PortBindings: nat.PortMap{
			ContainerPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: m.hostPort}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	if m.modelPath != "" {
		host.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: m.modelPath, Target: ModelDir}}
	}
	if m.gpus {
		host.DeviceRequests = []container.DeviceRequest{{Count: -1, Capabilities: [][]string{{"gpu"}}}}
	}
	return cfg, host
}

func (m *DockerManager) create(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	cfg, host := m.containerSpec()
	m.logger.Info("creating ollama container", "container", m.containerName, "image", m.imageName, "port", m.hostPort, "gpus", m.gpus)
	resp, err := m.cli.ContainerCreate(ctx, cfg, host, nil, nil, m.containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// lookup finds the container by exact name. The name filter matches
// substrings, so a pageturn-ollama-1234abcd container would otherwise
// shadow pageturn-ollama.
func (m *DockerManager) lookup(ctx context.Context) (containerRef, error) {
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+m.containerName+"$")),
	})
	if err != nil {
		return containerRef{}, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return containerRef{status: StatusNotFound}, nil
	}
	c := containers[0]
	return containerRef{id: c.ID, status: stateStatus(string(c.State), c.Status)}, nil
}

// stateStatus maps a Docker state, plus the human status line that carries
// the health check result, onto a ContainerStatus.
func stateStatus(state, health string) ContainerStatus {
	switch state {
	case "running":
		if strings.Contains(health, "(unhealthy)") {
			return StatusUnhealthy
		}
		if strings.Contains(health, "(health: starting)") {
			return StatusStarting
		}
		return StatusRunning
	case "exited", "dead":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	default:
		return ContainerStatus(state)
	}
}

// ensureImage pulls the Ollama image if it is not present locally.
func (m *DockerManager) ensureImage(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.imageName); err == nil {
		return nil
	}

	m.logger.Info("pulling image", "image", m.imageName)
	rc, err := m.cli.ImagePull(ctx, m.imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}
