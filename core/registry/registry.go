// Package registry is the source of truth for known extensions: their
// identity, lifecycle status and claimed surface.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"extgov/core/store"
	"extgov/core/utils"
	"github.com/Masterminds/semver/v3"
)

var (
	ErrNotFound     = store.ErrNotFound
	ErrInvalidInput = errors.New("invalid extension")
)

type Registry struct {
	store  store.ExtensionsStore
	logger *utils.Logger
}

func New(st store.ExtensionsStore, logger *utils.Logger) *Registry {
	return &Registry{store: st, logger: logger}
}

// Register upserts ext by name and reports whether a new record was created.
// Register never activates: new records start in pending_review and an
// existing record keeps its status. Activation goes through the installation
// guard.
func (r *Registry) Register(ctx context.Context, ext store.Extension) (store.Extension, bool, error) {
	if err := Normalize(&ext); err != nil {
		return store.Extension{}, false, err
	}
	ext.Fingerprint = Fingerprint(ext.Surface)
	created, err := r.store.Upsert(ctx, &ext)
	if err != nil {
		return store.Extension{}, false, err
	}
	if r.logger != nil {
		r.logger.Debugf("registry: %s registered (id=%s created=%v)", ext.Name, ext.ID, created)
	}
	return ext, created, nil
}

func (r *Registry) Get(ctx context.Context, id string) (store.Extension, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.Extension{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	ext, err := r.store.Get(ctx, id)
	if err != nil {
		return store.Extension{}, err
	}
	if ext == nil {
		return store.Extension{}, fmt.Errorf("extension %s: %w", id, ErrNotFound)
	}
	return *ext, nil
}

func (r *Registry) GetByName(ctx context.Context, name string) (*store.Extension, error) {
	return r.store.GetByName(ctx, strings.TrimSpace(name))
}

// List returns extensions in registration order; status "" means all.
func (r *Registry) List(ctx context.Context, status store.ExtensionStatus) ([]store.Extension, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return r.store.List(ctx, status)
}

func (r *Registry) ListActive(ctx context.Context) ([]store.Extension, error) {
	return r.store.List(ctx, store.StatusActive)
}

// SetStatus writes status unconditionally. Callers that activate must have
// passed the installation guard first.
func (r *Registry) SetStatus(ctx context.Context, id string, status store.ExtensionStatus) (store.Extension, error) {
	if !ValidStatus(status) {
		return store.Extension{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	ok, err := r.store.SetStatus(ctx, id, status)
	if err != nil {
		return store.Extension{}, err
	}
	if !ok {
		return store.Extension{}, fmt.Errorf("extension %s: %w", id, ErrNotFound)
	}
	return r.Get(ctx, id)
}

// Disable removes the extension from active analysis. Records are never deleted.
func (r *Registry) Disable(ctx context.Context, id string) (store.Extension, error) {
	return r.SetStatus(ctx, id, store.StatusDisabled)
}

func ValidStatus(s store.ExtensionStatus) bool {
	switch s {
	case store.StatusActive, store.StatusDisabled, store.StatusPendingReview:
		return true
	}
	return false
}

func ValidKind(k store.ExtensionKind) bool {
	return k == store.KindModule || k == store.KindComponent
}

// Normalize validates ext in place and puts its surface into canonical form.
func Normalize(ext *store.Extension) error {
	ext.Name = strings.TrimSpace(ext.Name)
	ext.Author = strings.TrimSpace(ext.Author)
	ext.Version = strings.TrimSpace(ext.Version)
	ext.Kind = store.ExtensionKind(strings.ToLower(strings.TrimSpace(string(ext.Kind))))
	ext.Status = store.ExtensionStatus(strings.ToLower(strings.TrimSpace(string(ext.Status))))
	if ext.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !ValidKind(ext.Kind) {
		return fmt.Errorf("%w: kind must be module or component, got %q", ErrInvalidInput, ext.Kind)
	}
	if ext.Status != "" && !ValidStatus(ext.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, ext.Status)
	}
	if ext.Status == store.StatusActive {
		ext.Status = ""
	}
	if _, err := semver.NewVersion(ext.Version); err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidInput, ext.Version, err)
	}
	deps := make(map[string]string, len(ext.Dependencies))
	for name, rng := range ext.Dependencies {
		name = strings.TrimSpace(name)
		rng = strings.TrimSpace(rng)
		if name == "" {
			return fmt.Errorf("%w: dependency with empty name", ErrInvalidInput)
		}
		if _, err := semver.NewConstraint(rng); err != nil {
			return fmt.Errorf("%w: dependency %s range %q: %v", ErrInvalidInput, name, rng, err)
		}
		deps[name] = rng
	}
	ext.Dependencies = deps
	ext.Files = canonicalList(ext.Files)
	ext.Routes = canonicalList(ext.Routes)
	ext.Components = canonicalList(ext.Components)
	ext.Stylesheets = canonicalList(ext.Stylesheets)
	ext.APIEndpoints = canonicalList(ext.APIEndpoints)
	ext.Migrations = canonicalList(ext.Migrations)
	ext.GlobalState = canonicalList(ext.GlobalState)
	return nil
}

// Fingerprint hashes the canonical surface; equal surfaces give equal digests.
func Fingerprint(s store.Surface) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return utils.Blake2bHex(raw)
}

func canonicalList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
