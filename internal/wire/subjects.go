// Package wire defines the engine's subject namespace, message headers, and
// payload types — the vocabulary every coordinator/system exchange uses.
// Nothing in this package talks to a bus; internal/transport does that,
// against the Transport interface, so this package stays testable without a
// running NATS server.
package wire

import "fmt"

// Prefix is prepended to every subject the engine publishes or subscribes
// to.
const Prefix = "engine."

// Fixed (system-name-independent) subjects.
const (
	SubjectTick            = Prefix + "coord.tick"
	SubjectTickDone         = Prefix + "coord.tick.done"
	SubjectEntityCreate     = Prefix + "entity.create"
	SubjectEntityDestroy    = Prefix + "entity.destroy"
	SubjectEntitySpawnReq   = Prefix + "entity.spawn.request"
	SubjectSystemRegister   = Prefix + "system.register"
	SubjectSystemUnregister = Prefix + "system.unregister"
	SubjectSystemHeartbeat  = Prefix + "system.heartbeat"
	SubjectQueryRequest     = Prefix + "query.request"
	SubjectQueryResponse    = Prefix + "query.response"
	SubjectSchemaRequest    = Prefix + "schema.request"
	SubjectSchemaResponse   = Prefix + "schema.response"
)

// ComponentSetSubject is the coordinator's outbound data subject for system
// sys: ComponentShard messages followed by a DataDone sentinel.
func ComponentSetSubject(sys string) string {
	return fmt.Sprintf("%scomponent.set.%s", Prefix, sys)
}

// ComponentChangedSubject is the system's outbound mutation subject for
// system sys: ComponentShard messages followed by a ChangesDone sentinel.
func ComponentChangedSubject(sys string) string {
	return fmt.Sprintf("%scomponent.changed.%s", Prefix, sys)
}

// SystemScheduleSubject is the per-system schedule subject, delivered via
// the queue group QueueGroup(sys) so each instance gets exactly one
// SystemSchedule per tick.
func SystemScheduleSubject(sys string) string {
	return fmt.Sprintf("%ssystem.schedule.%s", Prefix, sys)
}

// QueueGroup returns the queue-group name instances of system sys share,
// used only on the schedule subject — the data subject is deliberately not
// a queue group, since every instance must see every shard.
func QueueGroup(sys string) string {
	return "q." + sys
}

// Header keys carried on every envelope.
const (
	HeaderMsgType    = "msg-type"
	HeaderTickID     = "tick-id"
	HeaderInstanceID = "instance-id"
)

// msg-type header values for subjects that multiplex more than one payload
// shape (sentinels need this; everything else is identifiable by subject
// alone).
const (
	MsgTypeComponentShard = "component_shard"
	MsgTypeDataDone       = "data_done"
	MsgTypeChangesDone    = "changes_done"
)
