package harness

import (
	"strconv"
	"sync"

	"github.com/brightloom/ecsmesh/internal/codec"
	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/wire"
)

// tickBuffer accumulates one tick's ComponentShard/DataDone traffic on the
// data subject and the single SystemSchedule delivered via the queue group,
// latching onto whichever tick id it sees first and ignoring anything that
// doesn't match until drained.
type tickBuffer struct {
	mu sync.Mutex

	tickIDSet    bool
	tickID       uint64
	store        *LocalStore
	dataDone     bool
	schedule     *wire.SystemSchedule
	scheduleSeen bool
}

func newTickBuffer() *tickBuffer {
	return &tickBuffer{}
}

func (b *tickBuffer) ensureTick(tid uint64) bool {
	if !b.tickIDSet {
		b.tickIDSet = true
		b.tickID = tid
		b.store = newLocalStore()
	}
	return tid == b.tickID
}

func (b *tickBuffer) handleData(msg transport.Message) {
	tid, err := strconv.ParseUint(msg.Header(wire.HeaderTickID), 10, 64)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ensureTick(tid) {
		return
	}

	switch msg.Header(wire.HeaderMsgType) {
	case wire.MsgTypeDataDone:
		b.dataDone = true
	case wire.MsgTypeComponentShard:
		var shard wire.ComponentShard
		if err := codec.Decode(msg.Data, &shard); err == nil {
			b.store.absorb(component.TypeID(shard.ComponentType), shard.Entities, shard.Data)
		}
	}
}

func (b *tickBuffer) handleSchedule(msg transport.Message) {
	var sched wire.SystemSchedule
	if err := codec.Decode(msg.Data, &sched); err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ensureTick(sched.TickID) {
		return
	}
	b.schedule = &sched
	b.scheduleSeen = true
}

// ready reports whether this tick's DataDone sentinel and SystemSchedule
// have both arrived.
func (b *tickBuffer) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tickIDSet && b.dataDone && b.scheduleSeen
}

// drain returns the completed tick's reconstruction and resets the buffer
// for the next one. ok is false if called before ready.
func (b *tickBuffer) drain() (tickID uint64, store *LocalStore, schedule *wire.SystemSchedule, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tickIDSet || !b.dataDone || !b.scheduleSeen {
		return 0, nil, nil, false
	}
	tickID, store, schedule = b.tickID, b.store, b.schedule
	b.tickIDSet = false
	b.store = nil
	b.dataDone = false
	b.scheduleSeen = false
	b.schedule = nil
	return tickID, store, schedule, true
}
