package harness

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightloom/ecsmesh/internal/codec"
	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/query"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/wire"
)

// SystemFunc is the user-supplied simulation step. It reads component values
// out of store, calls store.Set for anything it mutates, and may return
// spawn requests queued for the next tick.
type SystemFunc func(ctx context.Context, store *LocalStore) ([]wire.EntitySpawnRequest, error)

// Descriptor names one system instance's registration: its logical name,
// instance id, and query shape.
type Descriptor struct {
	Name          string
	InstanceID    string
	Reads         []component.TypeID
	Writes        []component.TypeID
	Optionals     []component.TypeID
	Filters       []query.Filter
	OrderAfter    []string
	OrderBefore   []string
	StageDeadline *time.Duration
}

// Config bounds the harness's own timing independent of any one tick.
type Config struct {
	DrainDeadline     time.Duration
	HeartbeatInterval time.Duration
}

// DefaultConfig matches the sentinel-drain default of 5 seconds and a
// once-a-second heartbeat.
func DefaultConfig() Config {
	return Config{DrainDeadline: 5 * time.Second, HeartbeatInterval: time.Second}
}

// Runtime drives one system instance's side of the tick exchange.
type Runtime struct {
	transport transport.Transport
	desc      Descriptor
	fn        SystemFunc
	cfg       Config
	log       *logrus.Entry

	mu    sync.Mutex
	state State

	loadMu sync.Mutex
	load   float64
}

// New returns a Runtime ready to Run.
func New(tr transport.Transport, desc Descriptor, fn SystemFunc, cfg Config, log *logrus.Entry) *Runtime {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runtime{transport: tr, desc: desc, fn: fn, cfg: cfg, log: log}
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// State returns the runtime's current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run registers the instance, processes ticks until ctx is cancelled, then
// unregisters and returns. It blocks for the runtime's lifetime.
func (r *Runtime) Run(ctx context.Context) error {
	r.setState(StateConnecting)
	r.setState(StateRegistering)
	if err := r.register(); err != nil {
		return err
	}
	r.setState(StateIdle)

	dataSubject := wire.ComponentSetSubject(r.desc.Name)
	scheduleSubject := wire.SystemScheduleSubject(r.desc.Name)
	changedSubject := wire.ComponentChangedSubject(r.desc.Name)

	buf := newTickBuffer()
	dataSub, err := r.transport.Subscribe(dataSubject, buf.handleData)
	if err != nil {
		return err
	}
	defer dataSub.Unsubscribe()

	scheduleSub, err := r.transport.QueueSubscribe(scheduleSubject, wire.QueueGroup(r.desc.Name), buf.handleSchedule)
	if err != nil {
		return err
	}
	defer scheduleSub.Unsubscribe()

	stop := make(chan struct{})
	defer close(stop)
	go r.heartbeatLoop(ctx, stop)

	for {
		select {
		case <-ctx.Done():
			r.setState(StateUnregistering)
			r.unregister()
			r.setState(StateDisconnected)
			return nil
		default:
		}

		r.setState(StateDraining)
		deadline := time.Now().Add(r.cfg.DrainDeadline)
		for !buf.ready() && time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				r.setState(StateUnregistering)
				r.unregister()
				r.setState(StateDisconnected)
				return nil
			case <-time.After(5 * time.Millisecond):
			}
		}

		tickID, store, schedule, ok := buf.drain()
		if !ok {
			// Deadline elapsed before DataDone and the schedule both arrived.
			// Whatever was buffered is kept and the wait starts over; a
			// partial tick is never executed.
			continue
		}
		if schedule != nil && schedule.ShardRange != nil {
			store.restrictToRange(*schedule.ShardRange)
		}

		r.setState(StateExecuting)
		start := time.Now()
		spawns, err := r.fn(ctx, store)
		elapsed := time.Since(start)
		if err != nil {
			r.log.WithError(err).WithField("tick", tickID).Error("system function returned an error")
		}
		r.recordLoad(elapsed)

		r.setState(StatePublishing)
		r.publishMutations(changedSubject, tickID, store, spawns)
		r.setState(StateIdle)
	}
}

func (r *Runtime) register() error {
	desc := wire.SystemDescriptor{
		Name:        r.desc.Name,
		InstanceID:  r.desc.InstanceID,
		Reads:       typeIDsToUint64(r.desc.Reads),
		Writes:      typeIDsToUint64(r.desc.Writes),
		Optionals:   typeIDsToUint64(r.desc.Optionals),
		OrderAfter:  r.desc.OrderAfter,
		OrderBefore: r.desc.OrderBefore,
	}
	for _, f := range r.desc.Filters {
		desc.Filters = append(desc.Filters, wire.Filter{Kind: wire.FilterKind(f.Kind), ComponentType: uint64(f.ComponentType)})
	}
	if r.desc.StageDeadline != nil {
		ms := r.desc.StageDeadline.Milliseconds()
		desc.StageDeadline = &ms
	}
	payload, err := codec.Encode(desc)
	if err != nil {
		return err
	}
	return r.transport.Publish(wire.SubjectSystemRegister, nil, payload)
}

func (r *Runtime) unregister() {
	payload, err := codec.Encode(wire.SystemUnregister{Name: r.desc.Name, InstanceID: r.desc.InstanceID})
	if err != nil {
		r.log.WithError(err).Error("failed to encode SystemUnregister")
		return
	}
	if err := r.transport.Publish(wire.SubjectSystemUnregister, nil, payload); err != nil {
		r.log.WithError(err).Warn("failed to publish SystemUnregister")
	}
}

func (r *Runtime) publishMutations(changedSubject string, tickID uint64, store *LocalStore, spawns []wire.EntitySpawnRequest) {
	tickIDStr := strconv.FormatUint(tickID, 10)
	for ct, group := range store.mutations() {
		shard := wire.ComponentShard{ComponentType: uint64(ct), Entities: group.entities, Data: group.data}
		payload, err := codec.Encode(shard)
		if err != nil {
			r.log.WithError(err).Error("failed to encode outbound ComponentShard")
			continue
		}
		headers := map[string]string{wire.HeaderTickID: tickIDStr, wire.HeaderMsgType: wire.MsgTypeComponentShard, wire.HeaderInstanceID: r.desc.InstanceID}
		if err := r.transport.Publish(changedSubject, headers, payload); err != nil {
			r.log.WithError(err).Warn("failed to publish outbound ComponentShard")
		}
	}

	doneHeaders := map[string]string{wire.HeaderTickID: tickIDStr, wire.HeaderMsgType: wire.MsgTypeChangesDone, wire.HeaderInstanceID: r.desc.InstanceID}
	if err := r.transport.Publish(changedSubject, doneHeaders, nil); err != nil {
		r.log.WithError(err).Warn("failed to publish ChangesDone")
	}

	for _, spawn := range spawns {
		payload, err := codec.Encode(spawn)
		if err != nil {
			r.log.WithError(err).Error("failed to encode EntitySpawnRequest")
			continue
		}
		if err := r.transport.Publish(wire.SubjectEntitySpawnReq, nil, payload); err != nil {
			r.log.WithError(err).Warn("failed to publish EntitySpawnRequest")
		}
	}

	ackPayload, err := codec.Encode(wire.TickAck{TickID: tickID, InstanceID: r.desc.InstanceID})
	if err != nil {
		r.log.WithError(err).Error("failed to encode TickAck")
		return
	}
	if err := r.transport.Publish(wire.SubjectTickDone, nil, ackPayload); err != nil {
		r.log.WithError(err).Warn("failed to publish TickAck")
	}
}

func (r *Runtime) recordLoad(elapsed time.Duration) {
	period := r.cfg.HeartbeatInterval
	if period <= 0 {
		period = time.Second
	}
	load := elapsed.Seconds() / period.Seconds()
	if load > 1 {
		load = 1
	}
	r.loadMu.Lock()
	r.load = load
	r.loadMu.Unlock()
}

func (r *Runtime) heartbeatLoop(ctx context.Context, stop <-chan struct{}) {
	interval := r.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.loadMu.Lock()
			load := r.load
			r.loadMu.Unlock()
			payload, err := codec.Encode(wire.Heartbeat{InstanceID: r.desc.InstanceID, System: r.desc.Name, Load: load})
			if err != nil {
				continue
			}
			r.transport.Publish(wire.SubjectSystemHeartbeat, nil, payload)
		}
	}
}

func typeIDsToUint64(ids []component.TypeID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
