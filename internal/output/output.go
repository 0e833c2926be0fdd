// Package output renders command results as YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Format is a structured output encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// Default is used when no --output flag was given.
const Default = YAML

var (
	mu      sync.RWMutex
	current = Default
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", YAML, "yml":
		return YAML, nil
	case JSON:
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
	}
}

// SetFormat sets the format used by Print.
func SetFormat(f Format) {
	mu.Lock()
	current = f
	mu.Unlock()
}

// CurrentFormat returns the format used by Print.
func CurrentFormat() Format {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Print writes data to stdout in the current format.
func Print(data any) error {
	return PrintTo(os.Stdout, CurrentFormat(), data)
}

// PrintTo writes data to w in format.
func PrintTo(w io.Writer, format Format, data any) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
