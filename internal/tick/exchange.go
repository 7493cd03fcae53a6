package tick

import (
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightloom/ecsmesh/internal/codec"
	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/query"
	"github.com/brightloom/ecsmesh/internal/schedule"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/wire"
)

// changedCollector accumulates ComponentShard/ChangesDone traffic arriving
// on one system's changed-back subject during a single stage exchange.
type changedCollector struct {
	mu     sync.Mutex
	shards []wire.ComponentShard
	done   map[string]bool // instanceID -> ChangesDone seen
	tickID uint64
}

func newChangedCollector(tickID uint64) *changedCollector {
	return &changedCollector{tickID: tickID, done: make(map[string]bool)}
}

func (c *changedCollector) handle(msg transport.Message) {
	tickIDHeader := msg.Header(wire.HeaderTickID)
	if tickIDHeader != "" {
		if got, err := strconv.ParseUint(tickIDHeader, 10, 64); err == nil && got != c.tickID {
			return // stray message from a previous tick's straggler
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Header(wire.HeaderMsgType) {
	case wire.MsgTypeChangesDone:
		c.done[msg.Header(wire.HeaderInstanceID)] = true
	case wire.MsgTypeComponentShard:
		var shard wire.ComponentShard
		if err := codec.Decode(msg.Data, &shard); err == nil {
			c.shards = append(c.shards, shard)
		}
	}
}

func (c *changedCollector) allDone(instances []schedule.Instance) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, in := range instances {
		if !c.done[in.InstanceID] {
			return false
		}
	}
	return true
}

func (c *changedCollector) anyDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.done) > 0
}

func (c *changedCollector) result() []wire.ComponentShard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shards
}

// runStageExchange drives the exchange for one system within a stage: shard
// out matching rows, schedule each instance, drain mutations back, wait for
// tick acks, then merge. Missing instances are logged and skipped rather
// than failing the tick.
func (o *Orchestrator) runStageExchange(tickID uint64, sys *schedule.System) {
	log := o.log.WithFields(logrus.Fields{"system": sys.Name, "tick": tickID})

	if len(sys.Instances) == 0 {
		return
	}

	changedSubject := wire.ComponentChangedSubject(sys.Name)
	dataSubject := wire.ComponentSetSubject(sys.Name)
	scheduleSubject := wire.SystemScheduleSubject(sys.Name)

	collector := newChangedCollector(tickID)
	sub, err := o.transport.Subscribe(changedSubject, collector.handle)
	if err != nil {
		log.WithError(err).Error("subscribe to changed-back subject failed, skipping system this tick")
		return
	}
	defer sub.Unsubscribe()

	matches := o.queryEngine.Select(o.world, sys.Query)
	accessTypes := accessTypesOf(sys.Query)

	tickIDStr := strconv.FormatUint(tickID, 10)
	dataHeaders := map[string]string{wire.HeaderTickID: tickIDStr}

	for _, m := range matches {
		entities := m.Table.Entities()
		for _, ct := range accessTypes {
			if !m.Table.Contains(ct) {
				continue
			}
			col := m.Table.Column(ct)
			o.publishShardsFor(dataSubject, dataHeaders, ct, m.Rows, entities, col, log)
		}
	}

	doneHeaders := map[string]string{
		wire.HeaderTickID:  tickIDStr,
		wire.HeaderMsgType: wire.MsgTypeDataDone,
	}
	if err := o.transport.Publish(dataSubject, doneHeaders, nil); err != nil {
		log.WithError(err).Warn("failed to publish DataDone sentinel")
	}

	totalRows := 0
	for _, m := range matches {
		totalRows += len(m.Rows)
	}
	ranges := query.ShardRanges(totalRows, len(sys.Instances))
	for i, instance := range sys.Instances {
		var shardRange *wire.ShardRange
		if i < len(ranges) {
			shardRange = &wire.ShardRange{Start: uint64(ranges[i].Start), Count: uint64(ranges[i].Count)}
		}
		payload, err := codec.Encode(wire.SystemSchedule{TickID: tickID, ShardRange: shardRange})
		if err != nil {
			log.WithError(err).Error("failed to encode SystemSchedule")
			continue
		}
		if err := o.transport.Publish(scheduleSubject, map[string]string{wire.HeaderTickID: tickIDStr}, payload); err != nil {
			log.WithError(err).Warn("failed to publish SystemSchedule")
		}
	}

	deadline := o.cfg.StageDeadline
	if deadline <= 0 {
		deadline = o.cfg.SentinelDeadline
	}
	var override time.Duration
	for _, in := range sys.Instances {
		if in.Deadline != nil {
			if d := time.Duration(*in.Deadline) * time.Millisecond; d > override {
				override = d
			}
		}
	}
	if override > 0 {
		deadline = override
	}
	waitUntil := time.Now().Add(deadline)
	for !collector.allDone(sys.Instances) && time.Now().Before(waitUntil) {
		time.Sleep(5 * time.Millisecond)
	}
	if !collector.allDone(sys.Instances) && !collector.anyDone() {
		log.Warn("no instance reported ChangesDone before stage deadline, skipping system this tick")
		return
	}

	shards := collector.result()

	acked := make([]schedule.Instance, 0, len(sys.Instances))
	for _, in := range sys.Instances {
		if o.acks.waitFor(in.InstanceID, tickID, o.cfg.TickAckDeadline) {
			acked = append(acked, in)
		} else {
			log.WithField("instance", in.InstanceID).Warn("instance missed TickAck, dropping its writes for this tick")
		}
	}
	if len(acked) == 0 {
		return
	}

	o.mergeMu.Lock()
	defer o.mergeMu.Unlock()
	for _, shard := range shards {
		ct := component.TypeID(shard.ComponentType)
		entities := shard.Entities
		for i, entity := range entities {
			if i >= len(shard.Data) {
				break
			}
			if err := o.world.Mutate(entity, ct, shard.Data[i]); err != nil {
				log.WithError(err).WithField("entity", entity).Warn("dropping merge cell for entity no longer present")
				continue
			}
		}
		o.world.MarkChanged(ct, entities)
	}
}

func (o *Orchestrator) publishShardsFor(subject string, headers map[string]string, ct component.TypeID, rows []int, entities []uint64, column [][]byte, log *logrus.Entry) {
	shardRows := o.cfg.ShardRows
	if shardRows <= 0 {
		shardRows = len(rows)
		if shardRows == 0 {
			shardRows = 1
		}
	}
	for start := 0; start < len(rows); start += shardRows {
		end := start + shardRows
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		shard := wire.ComponentShard{
			ComponentType: uint64(ct),
			Entities:      make([]uint64, len(chunk)),
			Data:          make([][]byte, len(chunk)),
		}
		for i, r := range chunk {
			shard.Entities[i] = entities[r]
			shard.Data[i] = column[r]
		}
		payload, err := codec.Encode(shard)
		if err != nil {
			log.WithError(err).Error("failed to encode ComponentShard")
			continue
		}
		h := map[string]string{wire.HeaderMsgType: wire.MsgTypeComponentShard}
		for k, v := range headers {
			h[k] = v
		}
		if err := o.transport.Publish(subject, h, payload); err != nil {
			log.WithError(err).Warn("failed to publish ComponentShard")
		}
	}
}

func accessTypesOf(d query.Descriptor) []component.TypeID {
	seen := make(map[component.TypeID]bool)
	var out []component.TypeID
	for _, group := range [][]component.TypeID{d.Reads, d.Writes, d.Optionals} {
		for _, ct := range group {
			if !seen[ct] {
				seen[ct] = true
				out = append(out, ct)
			}
		}
	}
	return out
}
