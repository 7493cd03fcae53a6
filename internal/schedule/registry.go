// Package schedule builds the per-tick conflict graph from a SystemRegistry
// and partitions it into ordered stages, the synchronization mechanism used
// in place of cell-level locking on the world store.
package schedule

import (
	"sort"

	"github.com/brightloom/ecsmesh/internal/query"
)

// Instance is one registered system process (one queue-group member).
type Instance struct {
	InstanceID string
	Deadline   *int64 // per-instance stage deadline override, milliseconds
}

// System is one logical system name's registration: its query and every
// live instance sharing that name (a queue group).
type System struct {
	Name        string
	Query       query.Descriptor
	OrderAfter  []string
	OrderBefore []string
	Instances   []Instance
}

// Registry is the frozen-for-the-tick system set the scheduler partitions
// into stages. It is rebuilt once per tick from pending register/unregister
// requests and never mutated mid-tick.
type Registry struct {
	systems map[string]*System
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{systems: make(map[string]*System)}
}

// Register adds instance to name's queue group, creating the system entry
// with desc's query/ordering on first registration. A later registration
// under the same name reuses the existing query/ordering — the query shape
// is a property of the logical system, not of any one instance.
func (r *Registry) Register(name string, desc query.Descriptor, orderAfter, orderBefore []string, instance Instance) {
	sys, ok := r.systems[name]
	if !ok {
		sys = &System{Name: name, Query: desc, OrderAfter: orderAfter, OrderBefore: orderBefore}
		r.systems[name] = sys
	}
	for _, in := range sys.Instances {
		if in.InstanceID == instance.InstanceID {
			return
		}
	}
	sys.Instances = append(sys.Instances, instance)
}

// Unregister removes one instance from name's queue group. The system entry
// itself is removed once its last instance leaves.
func (r *Registry) Unregister(name, instanceID string) {
	sys, ok := r.systems[name]
	if !ok {
		return
	}
	kept := sys.Instances[:0]
	for _, in := range sys.Instances {
		if in.InstanceID != instanceID {
			kept = append(kept, in)
		}
	}
	sys.Instances = kept
	if len(sys.Instances) == 0 {
		delete(r.systems, name)
	}
}

// Systems returns every registered system, sorted lexicographically by
// name — the deterministic iteration order the stage-partitioning
// algorithm requires.
func (r *Registry) Systems() []*System {
	out := make([]*System, 0, len(r.systems))
	for _, sys := range r.systems {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the named system, if registered.
func (r *Registry) Get(name string) (*System, bool) {
	sys, ok := r.systems[name]
	return sys, ok
}

// InstanceCount returns the queue-group size for name.
func (r *Registry) InstanceCount(name string) int {
	sys, ok := r.systems[name]
	if !ok {
		return 0
	}
	return len(sys.Instances)
}
