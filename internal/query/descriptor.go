// Package query compiles QueryDescriptors against the world store: archetype
// matching (reads/writes/With imply membership, Without excludes, optionals
// are never a match failure) and row matching (Changed(t) restricts to rows
// whose change bit is set). Results are cached per (descriptor, archetype
// epoch), invalidated whenever the world creates a new archetype — the same
// "match against a bitmask, cache until the schema shifts" idiom a
// columnar ECS query layer typically uses, generalized from component-
// pointer identity to a network-portable component type id.
package query

import (
	"github.com/brightloom/ecsmesh/internal/component"
)

// FilterKind mirrors wire.FilterKind without importing the wire package —
// query matching is pure world-store logic and should not depend on the
// codec/envelope layer.
type FilterKind uint8

const (
	FilterWith FilterKind = iota
	FilterWithout
	FilterChanged
)

// Filter is one archetype or row predicate.
type Filter struct {
	Kind          FilterKind
	ComponentType component.TypeID
}

// Descriptor is a query's full shape: typed reads, typed writes, optional
// reads, and archetype/row filters.
type Descriptor struct {
	Reads     []component.TypeID
	Writes    []component.TypeID
	Optionals []component.TypeID
	Filters   []Filter
}

// AccessSet returns reads ∪ writes, the component types this query touches
// regardless of mutability — the required part of archetype matching. The
// scheduler's conflict relation builds its own access set, which also
// includes Optionals.
func (d Descriptor) AccessSet() []component.TypeID {
	out := make([]component.TypeID, 0, len(d.Reads)+len(d.Writes))
	out = append(out, d.Reads...)
	out = append(out, d.Writes...)
	return out
}

func (d Descriptor) withTypes() []component.TypeID {
	var out []component.TypeID
	for _, f := range d.Filters {
		if f.Kind == FilterWith {
			out = append(out, f.ComponentType)
		}
	}
	return out
}

func (d Descriptor) withoutTypes() []component.TypeID {
	var out []component.TypeID
	for _, f := range d.Filters {
		if f.Kind == FilterWithout {
			out = append(out, f.ComponentType)
		}
	}
	return out
}

func (d Descriptor) changedTypes() []component.TypeID {
	var out []component.TypeID
	for _, f := range d.Filters {
		if f.Kind == FilterChanged {
			out = append(out, f.ComponentType)
		}
	}
	return out
}
