package scanner

import (
	"fmt"
	"strings"

	"extgov/core/store"
	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk extension.yaml format.
type Manifest struct {
	Name         string            `yaml:"name"`
	Author       string            `yaml:"author"`
	Version      string            `yaml:"version"`
	Kind         string            `yaml:"kind"`
	Status       string            `yaml:"status"`
	Files        []string          `yaml:"files"`
	Routes       []string          `yaml:"routes"`
	Components   []string          `yaml:"components"`
	Stylesheets  []string          `yaml:"stylesheets"`
	Dependencies map[string]string `yaml:"dependencies"`
	APIEndpoints []string          `yaml:"api_endpoints"`
	Migrations   []string          `yaml:"migrations"`
	GlobalState  []string          `yaml:"global_state"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.TrimSpace(m.Name) == "" {
		return nil, fmt.Errorf("parse manifest: name is required")
	}
	return &m, nil
}

// Extension converts the manifest into a registry record. Files must already
// be expanded by the caller.
func (m *Manifest) Extension(files []string) store.Extension {
	return store.Extension{
		Name:    m.Name,
		Author:  m.Author,
		Version: m.Version,
		Kind:    store.ExtensionKind(m.Kind),
		Status:  store.ExtensionStatus(m.Status),
		Surface: store.Surface{
			Files:        files,
			Routes:       m.Routes,
			Components:   m.Components,
			Stylesheets:  m.Stylesheets,
			Dependencies: m.Dependencies,
			APIEndpoints: m.APIEndpoints,
			Migrations:   m.Migrations,
			GlobalState:  m.GlobalState,
		},
	}
}
