// Package harness runs conformance scenarios: YAML files pairing a
// script with its input documents and expectations. Scenarios execute
// through the real engine and compare the OUT document against golden
// files.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios validate the pipeline end to end: parse a script, execute it
// against DATA and KEYS, and assert on the OUT document or the failure.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Script is the ZenDSL source text.
	Script string `yaml:"script"`

	// Data is the DATA JSON document, empty for none.
	Data string `yaml:"data,omitempty"`

	// Keys is the KEYS JSON document, empty for none.
	Keys string `yaml:"keys,omitempty"`

	// WantErr is a substring expected in the failure. Empty means the
	// run must succeed.
	WantErr string `yaml:"want_err,omitempty"`

	// Golden enables golden-file comparison of the OUT document.
	// Only deterministic scripts (no key generation) can use it.
	Golden bool `yaml:"golden,omitempty"`
}

// LoadScenario reads and validates a single scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if s.Script == "" {
		return nil, fmt.Errorf("scenario %s: script is required", path)
	}
	if s.Golden && s.WantErr != "" {
		return nil, fmt.Errorf("scenario %s: golden and want_err are mutually exclusive", path)
	}

	return &s, nil
}

// LoadDir loads every .yaml scenario under dir, sorted by filename for
// deterministic test ordering.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
