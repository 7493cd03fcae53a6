package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FilterKind discriminates the three archetype predicates a QueryDescriptor
// may carry: With(t), Without(t), Changed(t).
type FilterKind uint8

const (
	FilterWith FilterKind = iota
	FilterWithout
	FilterChanged
)

func (k FilterKind) variantName() string {
	switch k {
	case FilterWith:
		return "With"
	case FilterWithout:
		return "Without"
	case FilterChanged:
		return "Changed"
	default:
		return ""
	}
}

// Filter is a tagged-enum query filter. On the wire it encodes as the
// single-entry map {"VariantName": componentTypeId}, implemented here via
// msgpack's CustomEncoder/CustomDecoder hooks rather than the library's
// default struct layout.
type Filter struct {
	Kind          FilterKind
	ComponentType uint64
}

var (
	_ msgpack.CustomEncoder = Filter{}
	_ msgpack.CustomDecoder = (*Filter)(nil)
)

// EncodeMsgpack writes the single-entry variant map.
func (f Filter) EncodeMsgpack(enc *msgpack.Encoder) error {
	name := f.Kind.variantName()
	if name == "" {
		return fmt.Errorf("wire: invalid filter kind %d", f.Kind)
	}
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString(name); err != nil {
		return err
	}
	return enc.EncodeUint64(f.ComponentType)
}

// DecodeMsgpack reads the single-entry variant map back into f.
func (f *Filter) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("wire: filter map must have exactly one entry, got %d", n)
	}
	name, err := dec.DecodeString()
	if err != nil {
		return err
	}
	switch name {
	case "With":
		f.Kind = FilterWith
	case "Without":
		f.Kind = FilterWithout
	case "Changed":
		f.Kind = FilterChanged
	default:
		return fmt.Errorf("wire: unknown filter variant %q", name)
	}
	ct, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	f.ComponentType = ct
	return nil
}

// With constructs a With(t) filter.
func With(t uint64) Filter { return Filter{Kind: FilterWith, ComponentType: t} }

// Without constructs a Without(t) filter.
func Without(t uint64) Filter { return Filter{Kind: FilterWithout, ComponentType: t} }

// Changed constructs a Changed(t) filter.
func Changed(t uint64) Filter { return Filter{Kind: FilterChanged, ComponentType: t} }
