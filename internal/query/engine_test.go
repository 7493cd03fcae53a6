package query

import (
	"testing"

	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/world"
)

var (
	transformID = component.HashName("Transform")
	velocityID  = component.HashName("Velocity")
	aiStateID   = component.HashName("AiState")
)

func seedWorld(t *testing.T) (*world.World, *component.Registry) {
	t.Helper()
	reg := component.NewRegistry()
	w := world.New(reg)
	justTransform := world.NewSignature(reg, []component.TypeID{transformID})
	transformVelocity := world.NewSignature(reg, []component.TypeID{transformID, velocityID})
	all3 := world.NewSignature(reg, []component.TypeID{transformID, velocityID, aiStateID})

	for i := 0; i < 3; i++ {
		w.AllocateEntity(justTransform, map[component.TypeID][]byte{transformID: []byte("t")})
	}
	for i := 0; i < 4; i++ {
		w.AllocateEntity(transformVelocity, map[component.TypeID][]byte{transformID: []byte("t"), velocityID: []byte("v")})
	}
	for i := 0; i < 2; i++ {
		w.AllocateEntity(all3, map[component.TypeID][]byte{transformID: []byte("t"), velocityID: []byte("v"), aiStateID: []byte("a")})
	}
	return w, reg
}

func TestMatchArchetypesReadsWrites(t *testing.T) {
	w, reg := seedWorld(t)
	e := NewEngine(reg)

	d := Descriptor{Reads: []component.TypeID{transformID}, Writes: []component.TypeID{velocityID}}
	matches := e.MatchArchetypes(w, d)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matching archetypes (transform+velocity, all3), got %d", len(matches))
	}
	total := 0
	for _, m := range matches {
		total += m.Len()
	}
	if total != 6 {
		t.Fatalf("expected 6 total matched rows, got %d", total)
	}
}

func TestMatchArchetypesWithoutFilter(t *testing.T) {
	w, reg := seedWorld(t)
	e := NewEngine(reg)

	d := Descriptor{
		Reads:   []component.TypeID{transformID},
		Filters: []Filter{{Kind: FilterWithout, ComponentType: velocityID}},
	}
	matches := e.MatchArchetypes(w, d)
	if len(matches) != 1 {
		t.Fatalf("expected 1 archetype (bare transform), got %d", len(matches))
	}
	if matches[0].Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", matches[0].Len())
	}
}

func TestMatchArchetypesOptionalsDoNotAffectMatch(t *testing.T) {
	w, reg := seedWorld(t)
	e := NewEngine(reg)

	withOptional := Descriptor{Reads: []component.TypeID{transformID}, Optionals: []component.TypeID{aiStateID}}
	without := Descriptor{Reads: []component.TypeID{transformID}}

	if len(e.MatchArchetypes(w, withOptional)) != len(e.MatchArchetypes(w, without)) {
		t.Fatal("expected Optionals to have no effect on archetype matching")
	}
}

func TestSelectChangedFilterRestrictsRows(t *testing.T) {
	w, reg := seedWorld(t)
	e := NewEngine(reg)

	sig := world.NewSignature(reg, []component.TypeID{transformID})
	var firstEntity uint64
	for _, tbl := range w.Tables() {
		if tbl.Signature() == sig {
			firstEntity = tbl.Entities()[0]
		}
	}
	if err := w.Mutate(firstEntity, transformID, []byte("t2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := Descriptor{Reads: []component.TypeID{transformID}, Filters: []Filter{{Kind: FilterChanged, ComponentType: transformID}}}
	matches := e.Select(w, d)
	total := 0
	for _, m := range matches {
		total += len(m.Rows)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 row to have changed, got %d", total)
	}
}

func TestQueryCacheInvalidatesOnNewArchetype(t *testing.T) {
	reg := component.NewRegistry()
	w := world.New(reg)
	e := NewEngine(reg)
	d := Descriptor{Reads: []component.TypeID{transformID}}

	if got := len(e.MatchArchetypes(w, d)); got != 0 {
		t.Fatalf("expected no matches in an empty world, got %d", got)
	}

	sig := world.NewSignature(reg, []component.TypeID{transformID})
	w.AllocateEntity(sig, map[component.TypeID][]byte{transformID: []byte("t")})

	if got := len(e.MatchArchetypes(w, d)); got != 1 {
		t.Fatalf("expected cache to invalidate after new archetype, got %d matches", got)
	}
}

func TestShardRangesContiguousAndDisjoint(t *testing.T) {
	ranges := ShardRanges(100, 2)
	if len(ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(ranges))
	}
	if ranges[0].Start != 0 || ranges[0].Count+ranges[1].Count != 100 {
		t.Fatalf("expected ranges to partition [0,100), got %+v", ranges)
	}
	if ranges[1].Start != ranges[0].Count {
		t.Fatalf("expected second range to start where first ends, got %+v", ranges)
	}
}

func TestShardRangesUnevenSplit(t *testing.T) {
	ranges := ShardRanges(10, 3)
	total := 0
	for _, r := range ranges {
		total += r.Count
	}
	if total != 10 {
		t.Fatalf("expected ranges to cover all 10 rows, got %d", total)
	}
}
