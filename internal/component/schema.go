package component

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/TheBitDrifter/mask"

	"github.com/brightloom/ecsmesh/internal/ecserr"
)

// Schema is the (name, type_id, schema) triple registered for a component
// type: a self-describing JSON-Schema document covering the component's
// fields, used for polyglot validation and schema discovery by foreign
// implementations.
type Schema struct {
	Name   string          `json:"name"`
	TypeID TypeID          `json:"type_id"`
	Schema json.RawMessage `json:"schema"`
}

// Registry tracks every component schema the coordinator knows about, keyed
// by TypeID, and rejects a second registration under the same name that
// carries a different schema body.
type Registry struct {
	mu       sync.RWMutex
	byID     map[TypeID]Schema
	byName   map[string]TypeID
	slotOf   map[TypeID]uint32
	idBySlot map[uint32]TypeID
	nextSlot uint32
}

// NewRegistry returns an empty component registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[TypeID]Schema),
		byName:   make(map[string]TypeID),
		slotOf:   make(map[TypeID]uint32),
		idBySlot: make(map[uint32]TypeID),
	}
}

// Register adds a component schema, deriving its TypeID from name via
// HashName. A second registration under the same name with an equivalent
// schema (the same JSON value, ignoring whitespace and object key order) is
// idempotent; one with a differing schema is rejected with
// DuplicateSchemaError, and the prior registration is left untouched.
func (r *Registry) Register(name string, schema json.RawMessage) (Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := HashName(name)
	if existing, ok := r.byID[id]; ok {
		if existing.Name != name || !jsonEqual(existing.Schema, schema) {
			return Schema{}, &ecserr.DuplicateSchemaError{Name: name}
		}
		return existing, nil
	}

	s := Schema{Name: name, TypeID: id, Schema: schema}
	r.byID[id] = s
	r.byName[name] = id
	r.assignSlot(id)
	return s, nil
}

// Lookup returns the schema registered for a TypeID, if any.
func (r *Registry) Lookup(id TypeID) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// LookupByName returns the schema registered under a component name, if any.
func (r *Registry) LookupByName(name string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return Schema{}, false
	}
	return r.byID[id], true
}

// Slot returns the dense, registration-ordered bit slot assigned to a
// TypeID, assigning the next free slot if it has never been seen (no schema
// is recorded for it, so Lookup still reports it absent). Slots back the mask.Mask bitsets the world store and scheduler use
// for fast set membership and conflict tests.
func (r *Registry) Slot(id TypeID) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.slotOf[id]; ok {
		return slot
	}
	return r.assignSlot(id)
}

// assignSlot allocates the next dense slot for id. Callers must hold r.mu.
func (r *Registry) assignSlot(id TypeID) uint32 {
	if slot, ok := r.slotOf[id]; ok {
		return slot
	}
	slot := r.nextSlot
	r.slotOf[id] = slot
	r.idBySlot[slot] = id
	r.nextSlot++
	return slot
}

// Mask returns the mask.Mask with one bit marked per id, allocating a slot
// for any id seen for the first time.
func (r *Registry) Mask(ids []TypeID) mask.Mask {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m mask.Mask
	for _, id := range ids {
		m.Mark(r.assignSlot(id))
	}
	return m
}

// TypeIDs decodes m back into the TypeIDs whose slots it has set, in
// ascending slot (registration) order.
func (r *Registry) TypeIDs(m mask.Mask) []TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []TypeID
	for slot := uint32(0); slot < r.nextSlot; slot++ {
		var bit mask.Mask
		bit.Mark(slot)
		if m.ContainsAll(bit) {
			out = append(out, r.idBySlot[slot])
		}
	}
	return out
}

func jsonEqual(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return string(a) == string(b)
	}
	return fmt.Sprint(va) == fmt.Sprint(vb)
}
