package wire

// TickStart broadcasts the beginning of tick TickID on engine.coord.tick.
type TickStart struct {
	TickID uint64
}

// TickAck is published by a system instance on engine.coord.tick.done once
// it has finished processing tick TickID (merge included, from its side).
type TickAck struct {
	TickID     uint64
	InstanceID string
}

// EntityCreated broadcasts the allocation of a new entity, naming the
// archetype signature (sorted component type ids) it was created into.
type EntityCreated struct {
	Entity    uint64
	Archetype []uint64
}

// EntityDestroyed broadcasts the removal of an entity.
type EntityDestroyed struct {
	Entity uint64
}

// EntitySpawnRequest queues the creation of one entity at the next tick
// boundary, carrying the encoded values for the listed component types.
// ComponentTypes and Values are parallel slices (Values[i] is the encoded
// cell for ComponentTypes[i]).
type EntitySpawnRequest struct {
	ComponentTypes []uint64
	Values         [][]byte
}

// ComponentShard frames a contiguous row range from one archetype column
// for transport: Entities[i] owns Data[i], the independently-encoded value
// of ComponentType for that entity.
type ComponentShard struct {
	ComponentType uint64
	Entities      []uint64
	Data          [][]byte
}

// DataDone is the end-of-stream sentinel published on a component.set.<sys>
// subject after every ComponentShard for the tick. Carried with header
// msg-type=data_done, tick-id=<t>; the payload itself carries no fields a
// receiver needs, but is still a distinct wire type for codec symmetry.
type DataDone struct{}

// ChangesDone is the end-of-stream sentinel a system instance publishes on
// its component.changed.<sys> subject once all its mutated shards for the
// tick have been sent. Carried with header msg-type=changes_done,
// tick-id=<t>, instance-id=<uuid>.
type ChangesDone struct{}

// SystemDescriptor registers one system process instance with the
// coordinator. Multiple descriptors sharing Name but not InstanceID form a
// queue group.
type SystemDescriptor struct {
	Name          string
	InstanceID    string
	Reads         []uint64
	Writes        []uint64
	Optionals     []uint64
	Filters       []Filter
	OrderAfter    []string
	OrderBefore   []string
	StageDeadline *int64 // milliseconds; nil uses the coordinator default
}

// SystemUnregister removes one system instance from the registry.
type SystemUnregister struct {
	Name       string
	InstanceID string
}

// ShardRange identifies a contiguous slice within the concatenated data an
// instance received for the tick. A nil ShardRange on SystemSchedule means
// the instance should process all of it.
type ShardRange struct {
	Start uint64
	Count uint64
}

// SystemSchedule triggers execution of one system instance for a tick,
// delivered via the system's queue group so exactly one instance receives
// each message.
type SystemSchedule struct {
	TickID     uint64
	ShardRange *ShardRange
}

// Heartbeat reports a system instance's health and recent load.
type Heartbeat struct {
	InstanceID string
	System     string
	Load       float64
}

// QueryDescriptor mirrors query.Descriptor's four-set shape on the wire:
// reads, writes (implying read), optionals (present-if-available, never a
// match failure), and archetype filters.
type QueryDescriptor struct {
	Reads     []uint64
	Writes    []uint64
	Optionals []uint64
	Filters   []Filter
}

// QueryRequest asks the coordinator for entities/rows matching Query,
// evaluated against the most recent post-merge snapshot.
type QueryRequest struct {
	Query QueryDescriptor
}

// QueryResponse answers a QueryRequest with the matching rows, grouped by
// archetype signature.
type QueryResponse struct {
	Matches []ArchetypeMatch
	Error   string
}

// ArchetypeMatch is one archetype's contribution to a QueryResponse: the
// signature it matched under, its entities, and the requested columns
// (reads ∪ writes ∪ present optionals) keyed by component type.
type ArchetypeMatch struct {
	Signature []uint64
	Entities  []uint64
	Columns   map[uint64][][]byte
}

// SchemaRequest asks the coordinator for the registered JSON-Schema of one
// component type.
type SchemaRequest struct {
	ComponentType uint64
}

// SchemaResponse answers a SchemaRequest.
type SchemaResponse struct {
	Found  bool
	Name   string
	Schema []byte // raw JSON-Schema document
}
