// Package scanner discovers extension manifests on disk and feeds them into
// the registry.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path"
	"sort"

	"extgov/core/registry"
	"extgov/core/store"
	"extgov/core/utils"
	"github.com/bmatcuk/doublestar/v4"
)

type Registrar interface {
	Register(ctx context.Context, ext store.Extension) (store.Extension, bool, error)
	GetByName(ctx context.Context, name string) (*store.Extension, error)
}

type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type Result struct {
	Scanned    int         `json:"scanned"`
	Registered int         `json:"registered"`
	Updated    int         `json:"updated"`
	Unchanged  int         `json:"unchanged"`
	IDs        []string    `json:"ids"`
	Errors     []ScanError `json:"errors,omitempty"`
}

type Scanner struct {
	fsys     fs.FS
	patterns []string
	reg      Registrar
	logger   *utils.Logger
}

func New(root string, patterns []string, reg Registrar, logger *utils.Logger) *Scanner {
	return NewFS(os.DirFS(root), patterns, reg, logger)
}

func NewFS(fsys fs.FS, patterns []string, reg Registrar, logger *utils.Logger) *Scanner {
	return &Scanner{fsys: fsys, patterns: patterns, reg: reg, logger: logger}
}

func (s *Scanner) FS() fs.FS {
	return s.fsys
}

// Scan registers every manifest found. A broken manifest is reported in
// Result.Errors and does not stop the scan.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	res := Result{IDs: []string{}}
	manifests, err := s.discover()
	if err != nil {
		return res, err
	}
	for _, p := range manifests {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		id, outcome, err := s.scanOne(ctx, p)
		if err != nil {
			if s.logger != nil {
				s.logger.Warnf("scanner: %s: %v", p, err)
			}
			res.Errors = append(res.Errors, ScanError{Path: p, Error: err.Error()})
			continue
		}
		res.IDs = append(res.IDs, id)
		switch outcome {
		case outcomeCreated:
			res.Registered++
		case outcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}
	return res, nil
}

type scanOutcome int

const (
	outcomeUnchanged scanOutcome = iota
	outcomeCreated
	outcomeUpdated
)

func (s *Scanner) scanOne(ctx context.Context, manifestPath string) (string, scanOutcome, error) {
	data, err := fs.ReadFile(s.fsys, manifestPath)
	if err != nil {
		return "", 0, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return "", 0, err
	}
	files, err := s.expandFiles(path.Dir(manifestPath), m.Files)
	if err != nil {
		return "", 0, err
	}
	candidate := m.Extension(files)
	if err := registry.Normalize(&candidate); err != nil {
		return "", 0, err
	}
	existing, err := s.reg.GetByName(ctx, candidate.Name)
	if err != nil {
		return "", 0, err
	}
	if existing != nil && sameRecord(*existing, candidate) {
		return existing.ID, outcomeUnchanged, nil
	}
	ext, created, err := s.reg.Register(ctx, candidate)
	if err != nil {
		return "", 0, err
	}
	if created {
		return ext.ID, outcomeCreated, nil
	}
	return ext.ID, outcomeUpdated, nil
}

func sameRecord(existing, candidate store.Extension) bool {
	if candidate.Status != "" && candidate.Status != existing.Status {
		return false
	}
	return existing.Version == candidate.Version &&
		existing.Author == candidate.Author &&
		existing.Kind == candidate.Kind &&
		existing.Fingerprint == registry.Fingerprint(candidate.Surface)
}

func (s *Scanner) discover() ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, pattern := range s.patterns {
		matches, err := doublestar.Glob(s.fsys, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// expandFiles resolves manifest file globs relative to the manifest directory
// and returns root-relative slash paths.
func (s *Scanner) expandFiles(dir string, globs []string) ([]string, error) {
	var out []string
	for _, g := range globs {
		if g == "" {
			continue
		}
		matches, err := doublestar.Glob(s.fsys, path.Join(dir, g), doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}
