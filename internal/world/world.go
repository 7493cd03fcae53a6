// Package world implements the coordinator's canonical archetype-based
// store: entity allocation, columnar archetype tables keyed by a
// deterministic signature, inter-archetype migration, swap-remove
// destruction, per-column change tracking, and tick-boundary snapshots for
// ad-hoc queries. It is mutated only by the coordinator's single logical
// driver — nothing here takes a lock against concurrent writers, because
// there are none; Snapshot exists precisely so concurrent readers never
// need one.
package world

import (
	"fmt"

	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/ecserr"
)

// EntityLocation names the archetype and row currently holding an entity.
type EntityLocation struct {
	Signature Signature
	Row       int
}

// Event is something the store wants broadcast once the caller chooses to
// flush it (the tick orchestrator's step 5). World never talks to the bus
// itself — that coupling belongs to the tick package, which translates
// these into wire.EntityCreated/EntityDestroyed.
type Event interface{ isEvent() }

// EntityCreatedEvent reports a new entity and the archetype it was created
// into.
type EntityCreatedEvent struct {
	Entity    uint64
	Signature Signature
}

func (EntityCreatedEvent) isEvent() {}

// EntityDestroyedEvent reports an entity's removal.
type EntityDestroyedEvent struct{ Entity uint64 }

func (EntityDestroyedEvent) isEvent() {}

// World is the mapping archetype_signature → ArchetypeTable plus the
// entity → (signature, row) index that locates any live entity in O(1).
type World struct {
	components *component.Registry

	nextEntity uint64
	tables     map[Signature]*ArchetypeTable
	index      map[uint64]EntityLocation
	epoch      uint64 // bumped on archetype creation; the query engine keys its cache on this
	events     []Event

	snapshot *Snapshot
}

// New returns an empty world store resolving signatures against reg.
func New(reg *component.Registry) *World {
	w := &World{
		components: reg,
		tables:     make(map[Signature]*ArchetypeTable),
		index:      make(map[uint64]EntityLocation),
	}
	w.snapshot = w.buildSnapshot()
	return w
}

// Epoch returns the current archetype-creation epoch, used by the query
// cache to detect when matching results may have changed.
func (w *World) Epoch() uint64 { return w.epoch }

func (w *World) tableFor(sig Signature) *ArchetypeTable {
	t, ok := w.tables[sig]
	if ok {
		return t
	}
	t = newArchetypeTable(sig, w.components)
	w.tables[sig] = t
	w.epoch++
	return t
}

// Tables returns every archetype table currently in the store. Callers must
// not mutate the returned tables directly.
func (w *World) Tables() []*ArchetypeTable {
	out := make([]*ArchetypeTable, 0, len(w.tables))
	for _, t := range w.tables {
		out = append(out, t)
	}
	return out
}

// Locate returns the archetype/row holding entity, if any.
func (w *World) Locate(entity uint64) (EntityLocation, bool) {
	loc, ok := w.index[entity]
	return loc, ok
}

// AllocateEntity appends a new row to the archetype named by sig, writing
// values for each of its component types, and returns the new entity id.
// Monotonic 64-bit ids are allocated from a coordinator-local counter; entity
// id recycling is not supported.
func (w *World) AllocateEntity(sig Signature, values map[component.TypeID][]byte) uint64 {
	w.nextEntity++
	entity := w.nextEntity
	t := w.tableFor(sig)
	row := t.appendRow(entity, values)
	w.index[entity] = EntityLocation{Signature: sig, Row: row}
	w.events = append(w.events, EntityCreatedEvent{Entity: entity, Signature: sig})
	return entity
}

// DestroyEntity removes entity via swap-remove. No-op if entity is unknown
// — a legitimate race when another stage's spawn/destroy queue already
// removed it.
func (w *World) DestroyEntity(entity uint64) {
	loc, ok := w.index[entity]
	if !ok {
		return
	}
	t, ok := w.tables[loc.Signature]
	if !ok {
		ecserr.Invariant(fmt.Errorf("world: entity %d indexed into missing archetype %v", entity, loc.Signature))
	}
	movedEntity, moved := t.swapRemove(loc.Row)
	delete(w.index, entity)
	if moved {
		w.index[movedEntity] = EntityLocation{Signature: loc.Signature, Row: loc.Row}
	}
	w.events = append(w.events, EntityDestroyedEvent{Entity: entity})
}

// Mutate overwrites the cell for entity/componentType with bytes.
func (w *World) Mutate(entity uint64, ct component.TypeID, bytes []byte) error {
	loc, ok := w.index[entity]
	if !ok {
		return &ecserr.UnknownEntityError{Entity: entity}
	}
	t, ok := w.tables[loc.Signature]
	if !ok {
		ecserr.Invariant(fmt.Errorf("world: entity %d indexed into missing archetype %v", entity, loc.Signature))
	}
	if !t.Contains(ct) {
		return &ecserr.ComponentNotInArchetypeError{Entity: entity, ComponentType: uint64(ct)}
	}
	t.columns[ct][loc.Row] = bytes
	t.markChanged(ct, loc.Row)
	return nil
}

// Migrate moves entity from its current archetype to newSig, carrying
// forward every preserved column, writing addedValues for newly-added
// component types, and dropping the rest. droppedTypes is accepted for
// caller symmetry but is implied by the difference between the old and new
// signatures; an explicit mismatch is not an error — only types actually
// present in the old archetype are ever carried or dropped.
func (w *World) Migrate(entity uint64, newSig Signature, addedValues map[component.TypeID][]byte, droppedTypes []component.TypeID) error {
	loc, ok := w.index[entity]
	if !ok {
		return &ecserr.UnknownEntityError{Entity: entity}
	}
	oldTable := w.tables[loc.Signature]
	newTypes := newSig.Types(w.components)
	values := make(map[component.TypeID][]byte, len(newTypes))
	for _, ct := range newTypes {
		if oldTable.Contains(ct) {
			values[ct] = oldTable.columns[ct][loc.Row]
		} else if v, ok := addedValues[ct]; ok {
			values[ct] = v
		}
	}

	newTable := w.tableFor(newSig)
	newRow := newTable.appendRow(entity, values)

	movedEntity, moved := oldTable.swapRemove(loc.Row)
	if moved {
		w.index[movedEntity] = EntityLocation{Signature: loc.Signature, Row: loc.Row}
	}
	w.index[entity] = EntityLocation{Signature: newSig, Row: newRow}
	return nil
}

// MarkChanged records that component type ct was written for each listed
// entity, consumed later by Changed(t) query filters.
func (w *World) MarkChanged(ct component.TypeID, entities []uint64) {
	for _, entity := range entities {
		loc, ok := w.index[entity]
		if !ok {
			continue
		}
		w.tables[loc.Signature].markChanged(ct, loc.Row)
	}
}

// ClearChangeBits resets every archetype's per-column change bitset, called
// at the boundary between tick t and t+1 after merging.
func (w *World) ClearChangeBits() {
	for _, t := range w.tables {
		t.clearChangeBits()
	}
}

// DrainEvents returns and clears the queued lifecycle events (entity
// create/destroy broadcasts), flushed by the tick orchestrator's step 5.
func (w *World) DrainEvents() []Event {
	events := w.events
	w.events = nil
	return events
}

// Snapshot is an immutable, tick-boundary view of the world used to answer
// ad-hoc QueryRequest traffic without touching the live, mid-stage store.
type Snapshot struct {
	tables map[Signature]*ArchetypeTable
	epoch  uint64
}

// Tables returns the archetype tables captured in this snapshot.
func (s *Snapshot) Tables() []*ArchetypeTable {
	out := make([]*ArchetypeTable, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	return out
}

// Epoch returns the archetype-creation epoch this snapshot was taken at.
func (s *Snapshot) Epoch() uint64 { return s.epoch }

func (w *World) buildSnapshot() *Snapshot {
	tables := make(map[Signature]*ArchetypeTable, len(w.tables))
	for sig, t := range w.tables {
		tables[sig] = t.snapshotCopy()
	}
	return &Snapshot{tables: tables, epoch: w.epoch}
}

// PublishSnapshot captures the current store state as the new snapshot ad-
// hoc queries will be served from. Called once per tick during step 6, after
// the merge is applied and the change bits are cleared, and before the next
// TickStart is published.
func (w *World) PublishSnapshot() {
	w.snapshot = w.buildSnapshot()
}

// LatestSnapshot returns the most recently published snapshot.
func (w *World) LatestSnapshot() *Snapshot { return w.snapshot }
