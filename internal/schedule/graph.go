package schedule

import "github.com/brightloom/ecsmesh/internal/component"

// conflicts reports whether a and b's access sets overlap on a write: A and
// B conflict iff A.writes ∩ (B.reads ∪ B.writes) ≠ ∅, or symmetrically.
// Optionals count as reads for this test, since a system that may observe a
// component must still be ordered against anyone writing it; With/Without/
// Changed filter kinds never imply access on their own. Overlap is tested
// with reg's mask.Mask bitsets, the same set-membership mechanism the query
// engine uses for archetype matching, rather than map-based intersection.
func conflicts(reg *component.Registry, a, b *System) bool {
	aWrites := reg.Mask(a.Query.Writes)
	bWrites := reg.Mask(b.Query.Writes)
	aAccess := reg.Mask(accessSet(a))
	bAccess := reg.Mask(accessSet(b))

	if !aWrites.ContainsNone(bAccess) {
		return true
	}
	if !bWrites.ContainsNone(aAccess) {
		return true
	}
	return false
}

// accessSet collects every component type s may observe: reads, writes, and
// optionals all count toward conflict detection.
func accessSet(s *System) []component.TypeID {
	ids := make([]component.TypeID, 0, len(s.Query.Reads)+len(s.Query.Writes)+len(s.Query.Optionals))
	ids = append(ids, s.Query.Reads...)
	ids = append(ids, s.Query.Writes...)
	ids = append(ids, s.Query.Optionals...)
	return ids
}
