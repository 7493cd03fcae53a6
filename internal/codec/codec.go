// Package codec provides the self-describing, map-keyed binary encoding the
// wire protocol uses for every payload: component values, envelope bodies,
// and the tagged-enum filter variants. It is a thin wrapper over
// vmihailenco/msgpack/v5, which — unlike msgpack's array-encoded struct mode —
// keys every field by its string name, giving every payload a self-describing
// binary form without any struct-tag gymnastics.
package codec

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/brightloom/ecsmesh/internal/ecserr"
)

// Encode serializes v using the wire codec. Components, envelope bodies, and
// shard cell values all flow through this one function, so every byte blob
// in the store was produced the same way regardless of its origin.
func Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &ecserr.EncodeError{Type: typeName(v), Err: err}
	}
	return b, nil
}

// Decode deserializes data into v, which must be a non-nil pointer.
func Decode(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return &ecserr.DecodeError{Type: typeName(v), Err: err}
	}
	return nil
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s", t)
}
