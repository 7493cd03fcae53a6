package main

import (
	"github.com/sirupsen/logrus"

	"github.com/brightloom/ecsmesh/internal/codec"
	comp "github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/ecserr"
	"github.com/brightloom/ecsmesh/internal/query"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/wire"
	"github.com/brightloom/ecsmesh/internal/world"
)

// services answers the coordinator's request/reply subjects: component
// schema discovery and ad-hoc snapshot queries. Both run against
// world.LatestSnapshot() rather than the live store, so they never block on
// or observe a mid-stage mutation.
type services struct {
	transport  transport.Transport
	world      *world.World
	components *comp.Registry
	query      *query.Engine
	log        *logrus.Entry
}

func newServices(tr transport.Transport, w *world.World, components *comp.Registry, qe *query.Engine, log *logrus.Entry) *services {
	return &services{transport: tr, world: w, components: components, query: qe, log: log}
}

func (s *services) start() error {
	if _, err := s.transport.Subscribe(wire.SubjectSchemaRequest, s.handleSchemaRequest); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectSchemaRequest, Err: err}
	}
	if _, err := s.transport.Subscribe(wire.SubjectQueryRequest, s.handleQueryRequest); err != nil {
		return &ecserr.TransportError{Subject: wire.SubjectQueryRequest, Err: err}
	}
	return nil
}

func (s *services) reply(msg transport.Message, payload []byte) {
	if msg.ReplyTo == "" {
		return
	}
	if err := s.transport.Publish(msg.ReplyTo, nil, payload); err != nil {
		s.log.WithError(err).Warn("failed to publish reply")
	}
}

func (s *services) handleSchemaRequest(msg transport.Message) {
	var req wire.SchemaRequest
	if err := codec.Decode(msg.Data, &req); err != nil {
		s.log.WithError(err).Warn("malformed SchemaRequest, dropping")
		return
	}

	resp := wire.SchemaResponse{}
	if schema, ok := s.components.Lookup(comp.TypeID(req.ComponentType)); ok {
		resp.Found = true
		resp.Name = schema.Name
		resp.Schema = schema.Schema
	}

	payload, err := codec.Encode(resp)
	if err != nil {
		s.log.WithError(err).Error("failed to encode SchemaResponse")
		return
	}
	s.reply(msg, payload)
}

func (s *services) handleQueryRequest(msg transport.Message) {
	var req wire.QueryRequest
	if err := codec.Decode(msg.Data, &req); err != nil {
		s.log.WithError(err).Warn("malformed QueryRequest, dropping")
		return
	}

	reads := toTypeIDs(req.Query.Reads)
	writes := toTypeIDs(req.Query.Writes)
	optionals := toTypeIDs(req.Query.Optionals)
	filters := make([]query.Filter, 0, len(req.Query.Filters))
	for _, f := range req.Query.Filters {
		filters = append(filters, query.Filter{Kind: query.FilterKind(f.Kind), ComponentType: comp.TypeID(f.ComponentType)})
	}
	desc := query.Descriptor{Reads: reads, Writes: writes, Optionals: optionals, Filters: filters}
	accessTypes := accessTypesOf(desc)

	snapshot := s.world.LatestSnapshot()
	matches := s.query.Select(snapshot, desc)

	resp := wire.QueryResponse{Matches: make([]wire.ArchetypeMatch, 0, len(matches))}
	for _, m := range matches {
		am := wire.ArchetypeMatch{
			Signature: typesToUint64(m.Table.Signature().Types(s.components)),
			Columns:   make(map[uint64][][]byte),
		}
		am.Entities = make([]uint64, len(m.Rows))
		for i, row := range m.Rows {
			am.Entities[i] = m.Table.Entities()[row]
		}
		for _, ct := range accessTypes {
			if !m.Table.Contains(ct) {
				continue
			}
			col := m.Table.Column(ct)
			values := make([][]byte, len(m.Rows))
			for i, row := range m.Rows {
				values[i] = col[row]
			}
			am.Columns[uint64(ct)] = values
		}
		resp.Matches = append(resp.Matches, am)
	}

	payload, err := codec.Encode(resp)
	if err != nil {
		s.log.WithError(err).Error("failed to encode QueryResponse")
		return
	}
	s.reply(msg, payload)
}

func toTypeIDs(ids []uint64) []comp.TypeID {
	out := make([]comp.TypeID, len(ids))
	for i, id := range ids {
		out[i] = comp.TypeID(id)
	}
	return out
}

func typesToUint64(ids []comp.TypeID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

func accessTypesOf(d query.Descriptor) []comp.TypeID {
	seen := make(map[comp.TypeID]bool)
	var out []comp.TypeID
	for _, group := range [][]comp.TypeID{d.Reads, d.Writes, d.Optionals} {
		for _, ct := range group {
			if !seen[ct] {
				seen[ct] = true
				out = append(out, ct)
			}
		}
	}
	return out
}
