package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-pageturn")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-pageturn" {
			t.Errorf("expected path /tmp/test-pageturn, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/pt")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"OutPath", dir.OutPath(), "/tmp/pt/out"},
		{"InputPath", dir.InputPath(), "/tmp/pt/input/ASIN.csv"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/pt/config.yaml"},
		{"CompletedPath", dir.CompletedPath(), "/tmp/pt/out/completed_asins_extract.txt"},
		{"OllamaPath", dir.OllamaPath(), "/tmp/pt/ollama"},
		{"BookDir", dir.BookDir("B01"), "/tmp/pt/out/B01"},
		{"PagesDir", dir.PagesDir("B01"), "/tmp/pt/out/B01/pages"},
		{"MetadataPath", dir.MetadataPath("B01"), "/tmp/pt/out/B01/metadata.json"},
		{"ContentPath", dir.ContentPath("B01"), "/tmp/pt/out/B01/content.json"},
		{"ExportPath", dir.ExportPath("B01"), "/tmp/pt/out/B01/B01.pdf"},
		{"PageImagePath", dir.PageImagePath("B01", 3, 17, 3), "/tmp/pt/out/B01/pages/003-017.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestPadWidth(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{4, 1},
		{5, 2},
		{49, 2},
		{50, 3},
		{320, 3},
		{500, 4},
	}
	for _, tt := range tests {
		if got := PadWidth(tt.total); got != tt.want {
			t.Errorf("PadWidth(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestPageImageName(t *testing.T) {
	if got := PageImageName(0, 1, 3); got != "000-001.png" {
		t.Errorf("PageImageName(0, 1, 3) = %s", got)
	}
	if got := PageImageName(1234, 7, 2); got != "1234-07.png" {
		t.Errorf("PageImageName(1234, 7, 2) = %s", got)
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	ptDir := filepath.Join(tmpDir, "pageturn-test")

	dir, err := New(ptDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directory shouldn't exist yet
	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	if _, err := os.Stat(dir.OutPath()); os.IsNotExist(err) {
		t.Error("out directory should exist after EnsureExists")
	}
}

func TestDir_EnsureBookDirs(t *testing.T) {
	dir, _ := New(t.TempDir())
	if err := dir.EnsureBookDirs("B01"); err != nil {
		t.Fatalf("EnsureBookDirs failed: %v", err)
	}
	if fi, err := os.Stat(dir.PagesDir("B01")); err != nil || !fi.IsDir() {
		t.Errorf("pages directory missing: %v", err)
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}
