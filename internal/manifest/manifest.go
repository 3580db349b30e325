// Package manifest records what a run fetched and where it was written.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsfinder/obsfinder/internal/catalog"
	"github.com/obsfinder/obsfinder/internal/finder"
	"github.com/obsfinder/obsfinder/internal/region"
)

// Suffix is appended to the output path to name the manifest.
const Suffix = ".manifest.yaml"

// Manifest is the YAML document written next to an output file.
type Manifest struct {
	RunID      string             `yaml:"run_id"`
	Version    string             `yaml:"version"`
	Profile    string             `yaml:"profile"`
	Service    string             `yaml:"service"`
	Region     region.Region      `yaml:"region"`
	SubRegions []region.SubRegion `yaml:"sub_regions"`
	Jobs       []catalog.Job      `yaml:"jobs"`
	Output     Output             `yaml:"output"`
	Rows       Rows               `yaml:"rows"`
	ZeroPoint  bool               `yaml:"zero_point"`
	Started    string             `yaml:"started"`
	Elapsed    string             `yaml:"elapsed"`
}

type Output struct {
	Path    string   `yaml:"path"`
	Columns []string `yaml:"columns"`
}

type Rows struct {
	Fetched int `yaml:"fetched"`
	Kept    int `yaml:"kept"`
}

// New builds the manifest of a finished run.
func New(obs *finder.Observation, version, service string, columns []string) Manifest {
	return Manifest{
		RunID:      obs.RunID,
		Version:    version,
		Profile:    obs.Profile,
		Service:    service,
		Region:     obs.Region,
		SubRegions: obs.SubRegions,
		Jobs:       obs.Jobs,
		Output:     Output{Path: obs.Path, Columns: columns},
		Rows:       Rows{Fetched: obs.Fetched, Kept: obs.Kept},
		ZeroPoint:  obs.ZeroPoint,
		Started:    obs.Started.UTC().Format(time.RFC3339),
		Elapsed:    obs.Elapsed.Round(time.Millisecond).String(),
	}
}

// Path returns the manifest path for an output file.
func Path(output string) string {
	return output + Suffix
}

// Write saves m as YAML.
func Write(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Read loads a manifest written by Write.
func Read(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}
