package world

import (
	"testing"

	"github.com/brightloom/ecsmesh/internal/component"
)

var (
	transformID = component.HashName("Transform")
	velocityID  = component.HashName("Velocity")
	nameID      = component.HashName("Name")
)

func newTestWorld() (*World, *component.Registry) {
	reg := component.NewRegistry()
	return New(reg), reg
}

func TestAllocateEntityAppendsRow(t *testing.T) {
	w, reg := newTestWorld()
	sig := NewSignature(reg, []component.TypeID{transformID, velocityID})

	e1 := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t1"), velocityID: []byte("v1")})
	e2 := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t2"), velocityID: []byte("v2")})

	if e1 == e2 {
		t.Fatalf("expected distinct entity ids, got %d and %d", e1, e2)
	}

	tbl := w.tables[sig]
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	assertColumnLengthsEqual(t, tbl)
}

func TestDestroyEntitySwapRemove(t *testing.T) {
	w, reg := newTestWorld()
	sig := NewSignature(reg, []component.TypeID{transformID})

	e1 := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t1")})
	e2 := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t2")})
	e3 := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t3")})

	w.DestroyEntity(e1)

	if _, ok := w.Locate(e1); ok {
		t.Fatalf("destroyed entity %d should be unreachable", e1)
	}
	tbl := w.tables[sig]
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", tbl.Len())
	}
	// e3 (the last row) should have moved into e1's old slot (row 0).
	loc, ok := w.Locate(e3)
	if !ok || loc.Row != 0 {
		t.Fatalf("expected entity %d moved to row 0, got %+v ok=%v", e3, loc, ok)
	}
	loc2, ok := w.Locate(e2)
	if !ok || loc2.Row != 1 {
		t.Fatalf("expected entity %d to remain at row 1, got %+v", e2, loc2)
	}
	assertColumnLengthsEqual(t, tbl)

	// Destroying an unknown entity is a no-op, not an error.
	w.DestroyEntity(999999)
}

func TestDestroyEntityUnknownIsNoOp(t *testing.T) {
	w, _ := newTestWorld()
	w.DestroyEntity(42)
	if events := w.DrainEvents(); len(events) != 0 {
		t.Fatalf("expected no events from destroying an unknown entity, got %v", events)
	}
}

func TestMutateUnknownEntity(t *testing.T) {
	w, _ := newTestWorld()
	err := w.Mutate(123, transformID, []byte("x"))
	if err == nil {
		t.Fatal("expected UnknownEntityError")
	}
}

func TestMutateComponentNotInArchetype(t *testing.T) {
	w, reg := newTestWorld()
	sig := NewSignature(reg, []component.TypeID{transformID})
	e := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t")})

	err := w.Mutate(e, velocityID, []byte("v"))
	if err == nil {
		t.Fatal("expected ComponentNotInArchetypeError")
	}
}

func TestMutateMarksChanged(t *testing.T) {
	w, reg := newTestWorld()
	sig := NewSignature(reg, []component.TypeID{transformID})
	e := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t")})

	if err := w.Mutate(e, transformID, []byte("t2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl := w.tables[sig]
	loc, _ := w.Locate(e)
	if !tbl.ChangedSince(transformID, loc.Row) {
		t.Fatal("expected change bit set after Mutate")
	}

	w.ClearChangeBits()
	if tbl.ChangedSince(transformID, loc.Row) {
		t.Fatal("expected change bits cleared at tick boundary")
	}
}

func TestMigrateCarriesForwardPreservedColumns(t *testing.T) {
	w, reg := newTestWorld()
	srcSig := NewSignature(reg, []component.TypeID{transformID})
	e := w.AllocateEntity(srcSig, map[component.TypeID][]byte{transformID: []byte("keep-me")})

	dstSig := NewSignature(reg, []component.TypeID{transformID, velocityID})
	err := w.Migrate(e, dstSig, map[component.TypeID][]byte{velocityID: []byte("new-velocity")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loc, ok := w.Locate(e)
	if !ok || loc.Signature != dstSig {
		t.Fatalf("expected entity migrated to %v, got %+v ok=%v", dstSig, loc, ok)
	}
	dstTable := w.tables[dstSig]
	if string(dstTable.Column(transformID)[loc.Row]) != "keep-me" {
		t.Fatal("expected preserved column value to survive migration")
	}
	if string(dstTable.Column(velocityID)[loc.Row]) != "new-velocity" {
		t.Fatal("expected added column value to be present after migration")
	}
	// The source archetype must no longer hold the entity.
	srcTable := w.tables[srcSig]
	if srcTable.Len() != 0 {
		t.Fatalf("expected source archetype emptied, still has %d rows", srcTable.Len())
	}
}

func TestEveryEntityInExactlyOneArchetype(t *testing.T) {
	w, reg := newTestWorld()
	sigA := NewSignature(reg, []component.TypeID{transformID})
	sigB := NewSignature(reg, []component.TypeID{transformID, velocityID})

	entities := make([]uint64, 0, 10)
	for i := 0; i < 5; i++ {
		entities = append(entities, w.AllocateEntity(sigA, map[component.TypeID][]byte{transformID: []byte("a")}))
	}
	for i := 0; i < 5; i++ {
		entities = append(entities, w.AllocateEntity(sigB, map[component.TypeID][]byte{transformID: []byte("a"), velocityID: []byte("v")}))
	}

	seen := map[uint64]int{}
	for _, tbl := range w.Tables() {
		for _, e := range tbl.Entities() {
			seen[e]++
		}
	}
	for _, e := range entities {
		if seen[e] != 1 {
			t.Fatalf("entity %d present in %d archetypes, want exactly 1", e, seen[e])
		}
	}
}

func TestSnapshotIsolatedFromLiveMutation(t *testing.T) {
	w, reg := newTestWorld()
	sig := NewSignature(reg, []component.TypeID{transformID})
	e := w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("v1")})
	w.PublishSnapshot()
	snap := w.LatestSnapshot()

	if err := w.Mutate(e, transformID, []byte("v2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.DestroyEntity(e)

	snapTbl := snap.tables[sig]
	if snapTbl.Len() != 1 {
		t.Fatalf("expected snapshot to retain the row, got len %d", snapTbl.Len())
	}
	if string(snapTbl.Column(transformID)[0]) != "v1" {
		t.Fatalf("expected snapshot column value untouched by later Mutate, got %q", snapTbl.Column(transformID)[0])
	}
}

func assertColumnLengthsEqual(t *testing.T, tbl *ArchetypeTable) {
	t.Helper()
	for _, ct := range tbl.Components() {
		if got := len(tbl.Column(ct)); got != tbl.Len() {
			t.Fatalf("column %v length %d != entity count %d", ct, got, tbl.Len())
		}
	}
}
