// Package conflicts finds resource collisions between active extensions.
package conflicts

import (
	"fmt"

	"extgov/core/store"
)

var Kinds = []store.ConflictKind{
	store.ConflictRoute,
	store.ConflictComponent,
	store.ConflictStylesheet,
	store.ConflictGlobalState,
}

type dimension struct {
	kind   store.ConflictKind
	values func(store.Extension) []string
}

var dimensions = []dimension{
	{store.ConflictRoute, func(e store.Extension) []string { return e.Routes }},
	{store.ConflictComponent, func(e store.Extension) []string { return e.Components }},
	{store.ConflictStylesheet, func(e store.Extension) []string { return e.Stylesheets }},
	{store.ConflictGlobalState, func(e store.Extension) []string { return e.GlobalState }},
}

func SeverityOf(kind store.ConflictKind) store.Severity {
	switch kind {
	case store.ConflictRoute, store.ConflictGlobalState:
		return store.SeverityHigh
	case store.ConflictComponent:
		return store.SeverityMedium
	case store.ConflictStylesheet:
		return store.SeverityLow
	default:
		panic(fmt.Sprintf("conflicts: unknown kind %q", kind))
	}
}

func Suggestion(kind store.ConflictKind, resource, owner, other string) string {
	switch kind {
	case store.ConflictRoute:
		return fmt.Sprintf("route %q is already served by %s; mount %s under its own prefix", resource, owner, other)
	case store.ConflictComponent:
		return fmt.Sprintf("component %s is overridden by both %s and %s; keep one override or compose them explicitly", resource, owner, other)
	case store.ConflictStylesheet:
		return fmt.Sprintf("stylesheet %s is shipped by %s and %s; rename or scope one bundle", resource, owner, other)
	case store.ConflictGlobalState:
		return fmt.Sprintf("global state key %s is defined by %s and %s; namespace the key per extension", resource, owner, other)
	default:
		panic(fmt.Sprintf("conflicts: unknown kind %q", kind))
	}
}

// Detect walks exts once in the given order. The first extension to claim a
// resource owns it; every later claimant produces one conflict against that
// owner. Matching is exact and case-sensitive.
func Detect(exts []store.Extension) []store.Conflict {
	type owner struct {
		id   string
		name string
	}
	owners := make(map[store.ConflictKind]map[string]owner, len(dimensions))
	for _, d := range dimensions {
		owners[d.kind] = map[string]owner{}
	}
	out := []store.Conflict{}
	for _, ext := range exts {
		for _, d := range dimensions {
			claimed := owners[d.kind]
			for _, v := range d.values(ext) {
				prev, ok := claimed[v]
				if !ok {
					claimed[v] = owner{id: ext.ID, name: ext.Name}
					continue
				}
				if prev.id == ext.ID {
					continue
				}
				out = append(out, store.Conflict{
					ExtensionA: prev.id,
					ExtensionB: ext.ID,
					Kind:       d.kind,
					Severity:   SeverityOf(d.kind),
					Resources:  []string{v},
					Suggestion: Suggestion(d.kind, v, prev.name, ext.Name),
				})
			}
		}
	}
	return out
}

// CountByKind always reports every kind, zero included.
func CountByKind(conflicts []store.Conflict) map[store.ConflictKind]int {
	out := make(map[store.ConflictKind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = 0
	}
	for _, c := range conflicts {
		out[c.Kind]++
	}
	return out
}
