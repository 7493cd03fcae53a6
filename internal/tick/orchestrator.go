package tick

import (
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/brightloom/ecsmesh/internal/codec"
	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/ecserr"
	"github.com/brightloom/ecsmesh/internal/query"
	"github.com/brightloom/ecsmesh/internal/schedule"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/wire"
	"github.com/brightloom/ecsmesh/internal/world"
)

type registerRequest struct {
	name        string
	desc        query.Descriptor
	orderAfter  []string
	orderBefore []string
	instance    schedule.Instance
}

type unregisterRequest struct {
	name       string
	instanceID string
}

// Orchestrator drives the tick loop: applying registry/spawn churn at tick
// boundaries, partitioning systems into stages, running each stage's
// exchange, merging results, and advancing the clock.
type Orchestrator struct {
	transport   transport.Transport
	world       *world.World
	components  *component.Registry
	systems     *schedule.Registry
	queryEngine *query.Engine
	cfg         Config
	log         *logrus.Entry

	acks   *ackTracker
	health *healthView

	mu                sync.Mutex
	pendingRegisters   []registerRequest
	pendingUnregisters []unregisterRequest
	pendingSpawns      []wire.EntitySpawnRequest

	mergeMu sync.Mutex

	tickID uint64
}

// New builds an Orchestrator ready to Start and RunTick.
func New(tr transport.Transport, w *world.World, components *component.Registry, systems *schedule.Registry, qe *query.Engine, cfg Config, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		transport:   tr,
		world:       w,
		components:  components,
		systems:     systems,
		queryEngine: qe,
		cfg:         cfg,
		log:         log,
		acks:        newAckTracker(),
		health:      newHealthView(),
	}
}

// Start subscribes to the always-on coordinator subjects: system
// registration churn, entity spawn requests, tick acks, and heartbeats.
// These are long-lived subscriptions independent of any single tick.
func (o *Orchestrator) Start() error {
	if _, err := o.transport.Subscribe(wire.SubjectSystemRegister, o.handleRegister); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectSystemRegister, Err: err}
	}
	if _, err := o.transport.Subscribe(wire.SubjectSystemUnregister, o.handleUnregister); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectSystemUnregister, Err: err}
	}
	if _, err := o.transport.Subscribe(wire.SubjectEntitySpawnReq, o.handleSpawnRequest); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectEntitySpawnReq, Err: err}
	}
	if _, err := o.transport.Subscribe(wire.SubjectTickDone, o.handleTickAck); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectTickDone, Err: err}
	}
	if _, err := o.transport.Subscribe(wire.SubjectSystemHeartbeat, o.handleHeartbeat); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectSystemHeartbeat, Err: err}
	}
	return nil
}

func (o *Orchestrator) handleRegister(msg transport.Message) {
	var desc wire.SystemDescriptor
	if err := codec.Decode(msg.Data, &desc); err != nil {
		o.log.WithError(err).Warn("malformed SystemDescriptor, dropping registration")
		return
	}
	reads := toTypeIDs(desc.Reads)
	writes := toTypeIDs(desc.Writes)
	optionals := toTypeIDs(desc.Optionals)
	filters := make([]query.Filter, 0, len(desc.Filters))
	for _, f := range desc.Filters {
		filters = append(filters, query.Filter{Kind: query.FilterKind(f.Kind), ComponentType: component.TypeID(f.ComponentType)})
	}
	req := registerRequest{
		name:        desc.Name,
		desc:        query.Descriptor{Reads: reads, Writes: writes, Optionals: optionals, Filters: filters},
		orderAfter:  desc.OrderAfter,
		orderBefore: desc.OrderBefore,
		instance:    schedule.Instance{InstanceID: desc.InstanceID, Deadline: desc.StageDeadline},
	}
	o.mu.Lock()
	o.pendingRegisters = append(o.pendingRegisters, req)
	o.mu.Unlock()
}

func (o *Orchestrator) handleUnregister(msg transport.Message) {
	var req wire.SystemUnregister
	if err := codec.Decode(msg.Data, &req); err != nil {
		o.log.WithError(err).Warn("malformed SystemUnregister, dropping")
		return
	}
	o.mu.Lock()
	o.pendingUnregisters = append(o.pendingUnregisters, unregisterRequest{name: req.Name, instanceID: req.InstanceID})
	o.mu.Unlock()
}

func (o *Orchestrator) handleSpawnRequest(msg transport.Message) {
	var req wire.EntitySpawnRequest
	if err := codec.Decode(msg.Data, &req); err != nil {
		o.log.WithError(err).Warn("malformed EntitySpawnRequest, dropping")
		return
	}
	o.mu.Lock()
	o.pendingSpawns = append(o.pendingSpawns, req)
	o.mu.Unlock()
}

func (o *Orchestrator) handleTickAck(msg transport.Message) {
	var ack wire.TickAck
	if err := codec.Decode(msg.Data, &ack); err != nil {
		o.log.WithError(err).Warn("malformed TickAck, dropping")
		return
	}
	o.acks.record(ack.InstanceID, ack.TickID)
}

func (o *Orchestrator) handleHeartbeat(msg transport.Message) {
	var hb wire.Heartbeat
	if err := codec.Decode(msg.Data, &hb); err != nil {
		o.log.WithError(err).Warn("malformed Heartbeat, dropping")
		return
	}
	o.health.record(hb.InstanceID, hb.System, hb.Load)
}

func toTypeIDs(ids []uint64) []component.TypeID {
	out := make([]component.TypeID, len(ids))
	for i, id := range ids {
		out[i] = component.TypeID(id)
	}
	return out
}

// RunTick executes one complete six-step tick: apply registry churn, apply
// spawn requests, compute stages, run each stage's exchange, flush
// broadcasts, then advance the clock.
func (o *Orchestrator) RunTick() {
	tickID := o.tickID
	log := o.log.WithField("tick", tickID)

	o.applyPendingRegistry(log)
	o.applyPendingSpawns(log)

	plan, err := schedule.BuildPlan(o.systems, o.components)
	if err != nil {
		log.WithError(err).Warn("schedule infeasible, skipping stage execution this tick")
	} else {
		for _, stage := range plan.Stages {
			o.runStage(tickID, stage)
		}
	}

	o.flushBroadcasts(tickID, log)
	o.advanceTick(log)
}

func (o *Orchestrator) applyPendingRegistry(log *logrus.Entry) {
	o.mu.Lock()
	registers := o.pendingRegisters
	unregisters := o.pendingUnregisters
	o.pendingRegisters = nil
	o.pendingUnregisters = nil
	o.mu.Unlock()

	for _, r := range registers {
		o.systems.Register(r.name, r.desc, r.orderAfter, r.orderBefore, r.instance)
		log.WithFields(logrus.Fields{"system": r.name, "instance": r.instance.InstanceID}).Info("system registered")
	}
	for _, u := range unregisters {
		o.systems.Unregister(u.name, u.instanceID)
		log.WithFields(logrus.Fields{"system": u.name, "instance": u.instanceID}).Info("system unregistered")
	}
}

func (o *Orchestrator) applyPendingSpawns(log *logrus.Entry) {
	o.mu.Lock()
	spawns := o.pendingSpawns
	o.pendingSpawns = nil
	o.mu.Unlock()

	for _, s := range spawns {
		sig := world.NewSignature(o.components, toTypeIDs(s.ComponentTypes))
		values := make(map[component.TypeID][]byte, len(s.ComponentTypes))
		for i, ct := range s.ComponentTypes {
			if i < len(s.Values) {
				values[component.TypeID(ct)] = s.Values[i]
			}
		}
		entity := o.world.AllocateEntity(sig, values)
		log.WithField("entity", entity).Debug("spawned entity from queued request")
	}
}

func (o *Orchestrator) runStage(tickID uint64, stage schedule.Stage) {
	var wg sync.WaitGroup
	for _, name := range stage.Systems {
		sys, ok := o.systems.Get(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(sys *schedule.System) {
			defer wg.Done()
			o.runStageExchange(tickID, sys)
		}(sys)
	}
	wg.Wait()
}

func (o *Orchestrator) flushBroadcasts(tickID uint64, log *logrus.Entry) {
	for _, ev := range o.world.DrainEvents() {
		switch e := ev.(type) {
		case world.EntityCreatedEvent:
			payload, err := codec.Encode(wire.EntityCreated{Entity: e.Entity, Archetype: typesToUint64(e.Signature.Types(o.components))})
			if err != nil {
				log.WithError(err).Error("failed to encode EntityCreated")
				continue
			}
			if err := o.transport.Publish(wire.SubjectEntityCreate, nil, payload); err != nil {
				log.WithError(err).Warn("failed to publish EntityCreated")
			}
		case world.EntityDestroyedEvent:
			payload, err := codec.Encode(wire.EntityDestroyed{Entity: e.Entity})
			if err != nil {
				log.WithError(err).Error("failed to encode EntityDestroyed")
				continue
			}
			if err := o.transport.Publish(wire.SubjectEntityDestroy, nil, payload); err != nil {
				log.WithError(err).Warn("failed to publish EntityDestroyed")
			}
		}
	}
}

func (o *Orchestrator) advanceTick(log *logrus.Entry) {
	o.world.ClearChangeBits()
	o.world.PublishSnapshot()
	o.tickID++

	payload, err := codec.Encode(wire.TickStart{TickID: o.tickID})
	if err != nil {
		log.WithError(err).Error("failed to encode TickStart")
		return
	}
	if err := o.transport.Publish(wire.SubjectTick, map[string]string{wire.HeaderTickID: strconv.FormatUint(o.tickID, 10)}, payload); err != nil {
		log.WithError(err).Warn("failed to publish TickStart")
	}
}

// Health returns a snapshot of the most recent heartbeat seen per instance.
func (o *Orchestrator) Health() map[string]heartbeatRecord { return o.health.Snapshot() }

// TickID returns the tick the orchestrator most recently started.
func (o *Orchestrator) TickID() uint64 { return o.tickID }

func typesToUint64(ids []component.TypeID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
