// Package harness implements the system-process side of the tick exchange:
// connect, register, wait for each tick's shards, reconstruct a local view,
// run the system function, and publish mutations back.
package harness

import (
	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/wire"
)

// LocalArchetype is a reconstructed slice of one archetype's rows, built
// from the ComponentShard messages received for one tick. Unlike the
// coordinator's ArchetypeTable it only ever holds the columns this system's
// query actually requested.
type LocalArchetype struct {
	Entities []uint64
	columns  map[component.TypeID][][]byte
}

// Column returns the encoded cells of the column for ct, or nil if this archetype's
// shard never carried it (true for an absent Optional).
func (a *LocalArchetype) Column(ct component.TypeID) [][]byte {
	return a.columns[ct]
}

// Contains reports whether ct was shipped for this archetype.
func (a *LocalArchetype) Contains(ct component.TypeID) bool {
	_, ok := a.columns[ct]
	return ok
}

// Len returns the row count.
func (a *LocalArchetype) Len() int { return len(a.Entities) }

// LocalStore is the per-tick reconstruction a system function reads from
// and writes mutations into. It is built fresh every tick from the shards
// the coordinator published and discarded once Publishing completes.
type LocalStore struct {
	byEntity map[uint64]*entityRow
	order    []uint64
	mutated  map[uint64]map[component.TypeID][]byte
}

type entityRow struct {
	columns map[component.TypeID][]byte
}

// newLocalStore returns an empty store ready to absorb shards.
func newLocalStore() *LocalStore {
	return &LocalStore{
		byEntity: make(map[uint64]*entityRow),
		mutated:  make(map[uint64]map[component.TypeID][]byte),
	}
}

// absorb merges one ComponentShard's cells into the store, creating rows
// for entities not yet seen this tick.
func (s *LocalStore) absorb(ct component.TypeID, entities []uint64, data [][]byte) {
	for i, e := range entities {
		if i >= len(data) {
			break
		}
		row, ok := s.byEntity[e]
		if !ok {
			row = &entityRow{columns: make(map[component.TypeID][]byte)}
			s.byEntity[e] = row
			s.order = append(s.order, e)
		}
		row.columns[ct] = data[i]
	}
}

// Get returns the received value for (entity, ct), and whether it was
// present (it may be absent for an Optional the archetype didn't carry).
func (s *LocalStore) Get(entity uint64, ct component.TypeID) ([]byte, bool) {
	row, ok := s.byEntity[entity]
	if !ok {
		return nil, false
	}
	v, ok := row.columns[ct]
	return v, ok
}

// Entities returns every entity id present in this tick's local store, in
// first-seen order.
func (s *LocalStore) Entities() []uint64 {
	out := make([]uint64, len(s.order))
	copy(out, s.order)
	return out
}

// restrictToRange narrows the store to the entities falling in [r.Start,
// r.Start+r.Count), in the first-seen row order absorb built up. This relies
// on the coordinator publishing every system's ComponentShard messages for a
// tick in the same per-archetype row order it used to compute the range
// split, and on the transport preserving publish order per (subject,
// publisher) pair.
func (s *LocalStore) restrictToRange(r wire.ShardRange) {
	start := int(r.Start)
	if start > len(s.order) {
		start = len(s.order)
	}
	end := start + int(r.Count)
	if end > len(s.order) {
		end = len(s.order)
	}
	s.order = s.order[start:end]
}

// Set records a mutated value for (entity, ct), to be published back to the
// coordinator as part of this tick's changed shards.
func (s *LocalStore) Set(entity uint64, ct component.TypeID, value []byte) {
	m, ok := s.mutated[entity]
	if !ok {
		m = make(map[component.TypeID][]byte)
		s.mutated[entity] = m
	}
	m[ct] = value
}

// mutations flattens every Set call this tick into (componentType, entities,
// data) groups suitable for publishing as ComponentShard messages.
func (s *LocalStore) mutations() map[component.TypeID]struct {
	entities []uint64
	data     [][]byte
} {
	out := make(map[component.TypeID]struct {
		entities []uint64
		data     [][]byte
	})
	for entity, cols := range s.mutated {
		for ct, v := range cols {
			g := out[ct]
			g.entities = append(g.entities, entity)
			g.data = append(g.data, v)
			out[ct] = g
		}
	}
	return out
}
