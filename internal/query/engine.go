package query

import (
	"sync"

	"github.com/TheBitDrifter/mask"

	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/world"
)

// Match is one matching archetype and the rows within it that satisfy every
// Changed(t) filter (all rows, if the descriptor carries none).
type Match struct {
	Table *world.ArchetypeTable
	Rows  []int
}

// Engine matches Descriptors against a World, caching archetype-level
// results per (required mask, excluded mask) for one source at one epoch.
// Switching to a different source or epoch discards the cache.
type Engine struct {
	registry *component.Registry

	mu    sync.Mutex
	src   source
	epoch uint64
	cache map[cacheKey][]*world.ArchetypeTable
}

type cacheKey struct {
	required mask.Mask
	excluded mask.Mask
}

// NewEngine returns a query engine resolving component type ids against
// reg's dense slot assignment.
func NewEngine(reg *component.Registry) *Engine {
	return &Engine{registry: reg, cache: make(map[cacheKey][]*world.ArchetypeTable)}
}

// source is anything the engine can match archetypes against: the live
// World during a tick's stage exchange, or a frozen Snapshot serving ad-hoc
// QueryRequest traffic between ticks. Both expose the same two accessors.
type source interface {
	Tables() []*world.ArchetypeTable
	Epoch() uint64
}

func (e *Engine) maskOf(ids []component.TypeID) mask.Mask {
	return e.registry.Mask(ids)
}

// MatchArchetypes returns every archetype table in src satisfying d's
// archetype-level predicate: signature ⊇ reads∪writes∪With, and
// signature∩Without = ∅. Optionals never affect matching.
func (e *Engine) MatchArchetypes(src source, d Descriptor) []*world.ArchetypeTable {
	required := e.maskOf(append(append([]component.TypeID{}, d.AccessSet()...), d.withTypes()...))
	excluded := e.maskOf(d.withoutTypes())
	key := cacheKey{required: required, excluded: excluded}

	e.mu.Lock()
	if e.src != src || e.epoch != src.Epoch() {
		e.cache = make(map[cacheKey][]*world.ArchetypeTable)
		e.src = src
		e.epoch = src.Epoch()
	}
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	var matched []*world.ArchetypeTable
	for _, t := range src.Tables() {
		archeMask := e.maskOf(t.Components())
		if !archeMask.ContainsAll(required) {
			continue
		}
		if !archeMask.ContainsNone(excluded) {
			continue
		}
		matched = append(matched, t)
	}

	e.mu.Lock()
	if e.src == src && e.epoch == src.Epoch() {
		e.cache[key] = matched
	}
	e.mu.Unlock()
	return matched
}

// Select runs the full query — archetype matching plus the Changed(t) row
// filter — and returns one Match per matching archetype that has at least
// one qualifying row.
func (e *Engine) Select(src source, d Descriptor) []Match {
	changed := d.changedTypes()
	var out []Match
	for _, t := range e.MatchArchetypes(src, d) {
		rows := rowsPassingChangedFilters(t, changed)
		if len(rows) == 0 {
			continue
		}
		out = append(out, Match{Table: t, Rows: rows})
	}
	return out
}

func rowsPassingChangedFilters(t *world.ArchetypeTable, changed []component.TypeID) []int {
	n := t.Len()
	if len(changed) == 0 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, 0, n)
	for row := 0; row < n; row++ {
		ok := true
		for _, ct := range changed {
			if !t.ChangedSince(ct, row) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows
}
