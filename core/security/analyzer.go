// Package security scores an extension from the capabilities its source
// uses and the external endpoints it calls.
package security

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"sort"

	"extgov/core/store"
	"extgov/core/utils"
)

// DeniedEndpointPenalty is subtracted per external endpoint the egress policy rejects.
const DeniedEndpointPenalty = 15

type Finding struct {
	Capability string `json:"capability"`
	File       string `json:"file"`
	Line       int    `json:"line"`
}

type Report struct {
	Score            int       `json:"score"`
	Capabilities     []string  `json:"capabilities"`
	CapabilityWeight int       `json:"capability_weight"`
	DeniedEndpoints  []string  `json:"denied_endpoints"`
	Findings         []Finding `json:"findings"`
	SkippedFiles     []string  `json:"skipped_files,omitempty"`
}

type Analyzer struct {
	fsys         fs.FS
	patterns     *PatternSet
	egress       *EgressPolicy
	maxFileBytes int64
	logger       *utils.Logger
}

// NewAnalyzer reads extension files from fsys; a nil fsys limits the
// analysis to declared endpoints.
func NewAnalyzer(fsys fs.FS, patterns *PatternSet, egress *EgressPolicy, maxFileBytes int64, logger *utils.Logger) *Analyzer {
	return &Analyzer{fsys: fsys, patterns: patterns, egress: egress, maxFileBytes: maxFileBytes, logger: logger}
}

func (a *Analyzer) Analyze(ctx context.Context, ext store.Extension) (Report, error) {
	rep := Report{Capabilities: []string{}, DeniedEndpoints: []string{}, Findings: []Finding{}}
	hit := map[string]bool{}
	if a.fsys != nil && a.patterns != nil {
		for _, f := range ext.Files {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
			findings, err := a.scanFile(f)
			if err != nil {
				if a.logger != nil {
					a.logger.Debugf("security: skip %s: %v", f, err)
				}
				rep.SkippedFiles = append(rep.SkippedFiles, f)
				continue
			}
			for _, fd := range findings {
				hit[fd.Capability] = true
			}
			rep.Findings = append(rep.Findings, findings...)
		}
	}
	if a.patterns != nil {
		for _, c := range a.patterns.Capabilities {
			if hit[c.Name] {
				rep.Capabilities = append(rep.Capabilities, c.Name)
				rep.CapabilityWeight += c.Weight
			}
		}
	}
	if a.egress != nil {
		for _, ep := range ext.APIEndpoints {
			ok, err := a.egress.Allowed(ext.Name, ep)
			if err != nil {
				return Report{}, err
			}
			if !ok {
				rep.DeniedEndpoints = append(rep.DeniedEndpoints, ep)
			}
		}
	}
	sort.Strings(rep.DeniedEndpoints)
	score := 100 - rep.CapabilityWeight - DeniedEndpointPenalty*len(rep.DeniedEndpoints)
	if score < 0 {
		score = 0
	}
	rep.Score = score
	return rep, nil
}

var errTooLarge = errors.New("file exceeds size limit")

// scanFile reports at most one finding per capability per file.
func (a *Analyzer) scanFile(name string) ([]Finding, error) {
	info, err := fs.Stat(a.fsys, name)
	if err != nil {
		return nil, err
	}
	if a.maxFileBytes > 0 && info.Size() > a.maxFileBytes {
		return nil, errTooLarge
	}
	data, err := fs.ReadFile(a.fsys, name)
	if err != nil {
		return nil, err
	}
	var out []Finding
	seen := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		for _, c := range a.patterns.Capabilities {
			if seen[c.Name] {
				continue
			}
			for _, re := range c.Patterns {
				if re.Match(text) {
					seen[c.Name] = true
					out = append(out, Finding{Capability: c.Name, File: name, Line: line})
					break
				}
			}
		}
	}
	return out, sc.Err()
}
