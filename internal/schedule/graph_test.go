package schedule

import (
	"testing"

	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/query"
)

func sys(name string, q query.Descriptor) *System {
	return &System{Name: name, Query: q}
}

func TestConflictsWriteWriteOverlap(t *testing.T) {
	reg := component.NewRegistry()
	a := sys("a", query.Descriptor{Writes: []component.TypeID{posID}})
	b := sys("b", query.Descriptor{Writes: []component.TypeID{posID}})
	if !conflicts(reg, a, b) {
		t.Fatal("expected two writers of the same component to conflict")
	}
}

func TestConflictsWriteReadOverlap(t *testing.T) {
	reg := component.NewRegistry()
	a := sys("a", query.Descriptor{Writes: []component.TypeID{posID}})
	b := sys("b", query.Descriptor{Reads: []component.TypeID{posID}})
	if !conflicts(reg, a, b) {
		t.Fatal("expected a writer and a reader of the same component to conflict")
	}
}

func TestConflictsOptionalCountsAsRead(t *testing.T) {
	reg := component.NewRegistry()
	a := sys("a", query.Descriptor{Writes: []component.TypeID{aiID}})
	b := sys("b", query.Descriptor{Optionals: []component.TypeID{aiID}})
	if !conflicts(reg, a, b) {
		t.Fatal("expected an optional reader to conflict with a writer of the same component")
	}
}

func TestConflictsDisjointAccessSets(t *testing.T) {
	reg := component.NewRegistry()
	a := sys("a", query.Descriptor{Writes: []component.TypeID{posID}})
	b := sys("b", query.Descriptor{Writes: []component.TypeID{velID}})
	if conflicts(reg, a, b) {
		t.Fatal("expected disjoint access sets not to conflict")
	}
}

func TestConflictsReadReadNeverConflicts(t *testing.T) {
	reg := component.NewRegistry()
	a := sys("a", query.Descriptor{Reads: []component.TypeID{posID}})
	b := sys("b", query.Descriptor{Reads: []component.TypeID{posID}})
	if conflicts(reg, a, b) {
		t.Fatal("expected two readers of the same component never to conflict")
	}
}
