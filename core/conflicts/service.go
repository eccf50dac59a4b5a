package conflicts

import (
	"context"
	"strings"

	"extgov/core/store"
	"extgov/core/utils"
)

type ActiveLister interface {
	ListActive(ctx context.Context) ([]store.Extension, error)
}

type Report struct {
	RunID          int64                      `json:"run_id"`
	ExtensionCount int                        `json:"extension_count"`
	Total          int                        `json:"total"`
	ByKind         map[store.ConflictKind]int `json:"by_kind"`
	Conflicts      []store.Conflict           `json:"conflicts"`
}

type Service struct {
	exts   ActiveLister
	store  store.ConflictsStore
	logger *utils.Logger
}

func NewService(exts ActiveLister, st store.ConflictsStore, logger *utils.Logger) *Service {
	return &Service{exts: exts, store: st, logger: logger}
}

// Check recomputes conflicts over one snapshot of the active extensions and
// stores them as a new run that supersedes earlier ones.
func (s *Service) Check(ctx context.Context) (Report, error) {
	active, err := s.exts.ListActive(ctx)
	if err != nil {
		return Report{}, err
	}
	found := Detect(active)
	byKind := CountByKind(found)
	run := &store.ConflictRun{
		SnapshotHash:   snapshotHash(active),
		ExtensionCount: len(active),
		Total:          len(found),
		ByKind:         byKind,
	}
	if err := s.store.SaveRun(ctx, run, found); err != nil {
		return Report{}, err
	}
	if s.logger != nil {
		s.logger.Printf("conflicts: run %d over %d extensions found %d conflicts", run.ID, run.ExtensionCount, run.Total)
	}
	return Report{
		RunID:          run.ID,
		ExtensionCount: run.ExtensionCount,
		Total:          run.Total,
		ByKind:         byKind,
		Conflicts:      found,
	}, nil
}

// ForExtension returns the conflicts ext is involved in. An active extension
// is looked up in the latest run. Any other extension is a candidate: its
// surface is checked against the current active snapshot, where active
// extensions keep ownership of what they already claim. Candidate conflicts
// are not stored and carry no run id.
func (s *Service) ForExtension(ctx context.Context, ext store.Extension) ([]store.Conflict, error) {
	if ext.Status == store.StatusActive {
		run, err := s.store.LatestRun(ctx)
		if err != nil {
			return nil, err
		}
		if run != nil {
			return s.store.ListForExtension(ctx, run.ID, ext.ID)
		}
	}
	active, err := s.exts.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := active
	if ext.Status != store.StatusActive {
		snapshot = make([]store.Extension, 0, len(active)+1)
		for _, a := range active {
			if a.ID != ext.ID {
				snapshot = append(snapshot, a)
			}
		}
		snapshot = append(snapshot, ext)
	}
	return involving(Detect(snapshot), ext.ID), nil
}

func involving(all []store.Conflict, id string) []store.Conflict {
	out := []store.Conflict{}
	for _, c := range all {
		if c.ExtensionA == id || c.ExtensionB == id {
			out = append(out, c)
		}
	}
	return out
}

func snapshotHash(exts []store.Extension) string {
	var b strings.Builder
	for _, e := range exts {
		b.WriteString(e.ID)
		b.WriteByte(':')
		b.WriteString(e.Fingerprint)
		b.WriteByte('\n')
	}
	return utils.Blake2bHex([]byte(b.String()))
}
