package world

import (
	"sort"

	"github.com/TheBitDrifter/mask"

	"github.com/brightloom/ecsmesh/internal/component"
)

// Signature is an archetype's identity and the key its table is stored
// under: a mask.Mask bit per component type, the same bitset-membership
// mechanism the query engine and scheduler use for fast set tests, rather
// than a hand-rolled sorted/string encoding. mask.Mask is a fixed-size,
// comparable array type, so Signature works directly as a map key.
type Signature mask.Mask

// NewSignature returns the Signature for ids, resolving each id's dense bit
// slot from reg (registering a bare placeholder slot for any id reg has not
// seen before).
func NewSignature(reg *component.Registry, ids []component.TypeID) Signature {
	return Signature(reg.Mask(ids))
}

// Types decodes the Signature back into its component type ids, resolving
// slots through reg, sorted ascending by id.
func (s Signature) Types(reg *component.Registry) []component.TypeID {
	ids := reg.TypeIDs(mask.Mask(s))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Contains reports whether id is part of the signature.
func (s Signature) Contains(reg *component.Registry, id component.TypeID) bool {
	var bit mask.Mask
	bit.Mark(reg.Slot(id))
	return mask.Mask(s).ContainsAll(bit)
}
