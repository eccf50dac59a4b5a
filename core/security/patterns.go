package security

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

type Capability struct {
	Name     string
	Weight   int
	Patterns []*regexp.Regexp
}

// PatternSet is the ordered list of capabilities an analyzer looks for.
type PatternSet struct {
	Capabilities []Capability
}

type rawPatternSet struct {
	Capabilities map[string]struct {
		Weight   int      `yaml:"weight"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"capabilities"`
}

func DefaultPatterns() (*PatternSet, error) {
	return ParsePatterns(defaultPatterns)
}

func ParsePatterns(data []byte) (*PatternSet, error) {
	var raw rawPatternSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse capability patterns: %w", err)
	}
	ps := &PatternSet{}
	for name, c := range raw.Capabilities {
		if c.Weight < 0 {
			return nil, fmt.Errorf("capability %s: negative weight", name)
		}
		capability := Capability{Name: name, Weight: c.Weight}
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("capability %s: pattern %q: %w", name, p, err)
			}
			capability.Patterns = append(capability.Patterns, re)
		}
		ps.Capabilities = append(ps.Capabilities, capability)
	}
	sort.Slice(ps.Capabilities, func(i, j int) bool { return ps.Capabilities[i].Name < ps.Capabilities[j].Name })
	return ps, nil
}
