package world

import "github.com/brightloom/ecsmesh/internal/component"

// ArchetypeTable is the struct-of-arrays container for one archetype: a
// sorted, unique component-type list, dense insertion-ordered entity rows,
// and one type-erased byte column per component type. Every column's length
// equals len(entities) at every moment callers can observe it between tick
// phases.
type ArchetypeTable struct {
	signature  Signature
	components []component.TypeID
	entities   []uint64
	columns    map[component.TypeID][][]byte
	changed    map[component.TypeID]*bitset
}

func newArchetypeTable(sig Signature, reg *component.Registry) *ArchetypeTable {
	types := sig.Types(reg)
	t := &ArchetypeTable{
		signature:  sig,
		components: types,
		columns:    make(map[component.TypeID][][]byte, len(types)),
		changed:    make(map[component.TypeID]*bitset, len(types)),
	}
	for _, ct := range types {
		t.columns[ct] = nil
		t.changed[ct] = &bitset{}
	}
	return t
}

// Signature returns the archetype's identity.
func (t *ArchetypeTable) Signature() Signature { return t.signature }

// Components returns the sorted, unique component types of this archetype.
func (t *ArchetypeTable) Components() []component.TypeID { return t.components }

// Len returns the number of entity rows.
func (t *ArchetypeTable) Len() int { return len(t.entities) }

// Entities returns the dense, insertion-ordered entity ids.
func (t *ArchetypeTable) Entities() []uint64 { return t.entities }

// Column returns the raw encoded cells for a component type, or nil if the
// archetype does not carry it.
func (t *ArchetypeTable) Column(ct component.TypeID) [][]byte { return t.columns[ct] }

// Contains reports whether the archetype carries component type ct.
func (t *ArchetypeTable) Contains(ct component.TypeID) bool {
	_, ok := t.columns[ct]
	return ok
}

// ChangedSince reports whether row i's cell for ct has its change bit set.
func (t *ArchetypeTable) ChangedSince(ct component.TypeID, row int) bool {
	b, ok := t.changed[ct]
	if !ok {
		return false
	}
	return b.get(row)
}

// appendRow appends one entity and its values (values must cover exactly
// t.components) and returns the new row index.
func (t *ArchetypeTable) appendRow(entity uint64, values map[component.TypeID][]byte) int {
	row := len(t.entities)
	t.entities = append(t.entities, entity)
	for _, ct := range t.components {
		t.columns[ct] = append(t.columns[ct], values[ct])
	}
	return row
}

// swapRemove removes row i using swap-remove: the last row moves into slot
// i, and the table shrinks by one. Returns the entity that used to be last
// (now at slot i), or 0 if i was already last.
func (t *ArchetypeTable) swapRemove(i int) (movedEntity uint64, moved bool) {
	last := len(t.entities) - 1
	if i < 0 || i > last {
		return 0, false
	}
	if i != last {
		t.entities[i] = t.entities[last]
		for _, ct := range t.components {
			t.columns[ct][i] = t.columns[ct][last]
		}
		movedEntity = t.entities[i]
		moved = true
	}
	t.entities = t.entities[:last]
	for _, ct := range t.components {
		t.columns[ct] = t.columns[ct][:last]
	}
	for _, b := range t.changed {
		b.swapRemove(i, last)
	}
	return movedEntity, moved
}

func (t *ArchetypeTable) markChanged(ct component.TypeID, row int) {
	b, ok := t.changed[ct]
	if !ok {
		return
	}
	b.set(row)
}

func (t *ArchetypeTable) clearChangeBits() {
	for _, b := range t.changed {
		b.clearAll()
	}
}

// snapshotCopy returns an independent copy of the table's entity and column
// slices (individual cell byte slices are shared, since mutations only ever
// replace a cell wholesale rather than writing through it) so later
// in-place swap-removes/appends on the live table never reach back into a
// previously published Snapshot.
func (t *ArchetypeTable) snapshotCopy() *ArchetypeTable {
	cp := &ArchetypeTable{
		signature:  t.signature,
		components: t.components,
		entities:   append([]uint64(nil), t.entities...),
		columns:    make(map[component.TypeID][][]byte, len(t.columns)),
		changed:    make(map[component.TypeID]*bitset, len(t.changed)),
	}
	for ct, col := range t.columns {
		cp.columns[ct] = append([][]byte(nil), col...)
	}
	for ct, b := range t.changed {
		cp.changed[ct] = &bitset{words: append([]uint64(nil), b.words...)}
	}
	return cp
}
