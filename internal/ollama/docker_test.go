package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDockerConfig_Defaults(t *testing.T) {
	if DefaultContainerName != "pageturn-ollama" {
		t.Errorf("unexpected default container name: %s", DefaultContainerName)
	}
	if DefaultImage != "ollama/ollama:latest" {
		t.Errorf("unexpected default image: %s", DefaultImage)
	}
	if DefaultPort != "11434" {
		t.Errorf("unexpected default port: %s", DefaultPort)
	}
}

func TestGenerateContainerName(t *testing.T) {
	first := GenerateContainerName("/home/user/.pageturn")
	if !strings.HasPrefix(first, ContainerNamePrefix) {
		t.Errorf("GenerateContainerName() = %q, want prefix %q", first, ContainerNamePrefix)
	}
	if len(first) != len(ContainerNamePrefix)+8 {
		t.Errorf("GenerateContainerName() length = %d", len(first))
	}
	if first != GenerateContainerName("/home/user/.pageturn") {
		t.Error("GenerateContainerName() not deterministic")
	}
	if first == GenerateContainerName("/home/other/.pageturn") {
		t.Error("GenerateContainerName() should differ per path")
	}
}

func TestNewDockerManager_ContainerNaming(t *testing.T) {
	tests := []struct {
		name string
		cfg  DockerConfig
		want string
	}{
		{"explicit name", DockerConfig{ContainerName: "custom", HomePath: "/h"}, "custom"},
		{"from home path", DockerConfig{HomePath: "/h"}, GenerateContainerName("/h")},
		{"default", DockerConfig{}, DefaultContainerName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewDockerManager(tt.cfg)
			if err != nil {
				t.Fatalf("NewDockerManager() error = %v", err)
			}
			defer m.Close()
			if m.ContainerName() != tt.want {
				t.Errorf("ContainerName() = %q, want %q", m.ContainerName(), tt.want)
			}
			if m.OpenAIURL() != "http://localhost:11434/v1" {
				t.Errorf("OpenAIURL() = %q", m.OpenAIURL())
			}
		})
	}
}

func TestStateStatus(t *testing.T) {
	tests := []struct {
		state, status string
		want          ContainerStatus
	}{
		{"running", "Up 5 minutes", StatusRunning},
		{"running", "Up 5 minutes (healthy)", StatusRunning},
		{"running", "Up 3 seconds (health: starting)", StatusStarting},
		{"running", "Up 2 minutes (unhealthy)", StatusUnhealthy},
		{"exited", "Exited (0) 1 hour ago", StatusStopped},
		{"dead", "", StatusStopped},
		{"created", "Created", StatusStarting},
		{"restarting", "Restarting (1) 2 seconds ago", StatusStarting},
		{"paused", "Up 1 hour (Paused)", ContainerStatus("paused")},
	}
	for _, tt := range tests {
		if got := stateStatus(tt.state, tt.status); got != tt.want {
			t.Errorf("stateStatus(%q, %q) = %q, want %q", tt.state, tt.status, got, tt.want)
		}
	}
}

func TestContainerSpec(t *testing.T) {
	m, err := NewDockerManager(DockerConfig{ModelPath: "/data/ollama", HostPort: "12345", GPUs: true})
	if err != nil {
		t.Fatalf("NewDockerManager() error = %v", err)
	}
	defer m.Close()

	cfg, host := m.containerSpec()
	if cfg.Image != DefaultImage {
		t.Errorf("Image = %q, want %q", cfg.Image, DefaultImage)
	}
	if cfg.Labels[Label] != "true" {
		t.Errorf("missing %s label: %v", Label, cfg.Labels)
	}
	bindings := host.PortBindings[ContainerPort]
	if len(bindings) != 1 || bindings[0].HostPort != "12345" || bindings[0].HostIP != "127.0.0.1" {
		t.Errorf("unexpected port bindings: %+v", bindings)
	}
	if len(host.Mounts) != 1 || host.Mounts[0].Source != "/data/ollama" || host.Mounts[0].Target != ModelDir {
		t.Errorf("unexpected mounts: %+v", host.Mounts)
	}
	if len(host.DeviceRequests) != 1 || host.DeviceRequests[0].Count != -1 {
		t.Errorf("expected all-GPU device request, got %+v", host.DeviceRequests)
	}

	t.Run("no cache or gpus", func(t *testing.T) {
		m, err := NewDockerManager(DockerConfig{})
		if err != nil {
			t.Fatalf("NewDockerManager() error = %v", err)
		}
		defer m.Close()
		_, host := m.containerSpec()
		if len(host.Mounts) != 0 || len(host.DeviceRequests) != 0 {
			t.Errorf("expected no mounts or device requests, got %+v %+v", host.Mounts, host.DeviceRequests)
		}
	})
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	if err := WaitReady(context.Background(), server.URL, 5*time.Second); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestWaitReady_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := WaitReady(ctx, server.URL, 30*time.Second); err == nil {
		t.Fatal("WaitReady() succeeded against an unhealthy server")
	}
}

func TestPull(t *testing.T) {
	var got pullRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got.Model == "missing" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"pull model manifest: file does not exist"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	if err := Pull(context.Background(), server.URL, "llava:13b"); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if got.Model != "llava:13b" || got.Stream {
		t.Errorf("pull request = %+v", got)
	}

	err := Pull(context.Background(), server.URL, "missing")
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("Pull(missing) error = %v", err)
	}
	if err := Pull(context.Background(), server.URL, " "); err == nil {
		t.Fatal("Pull(blank) succeeded")
	}
}
