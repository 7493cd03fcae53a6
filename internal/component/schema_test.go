package component

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashNameDeterministic(t *testing.T) {
	require.Equal(t, HashName("Position"), HashName("Position"))
	require.NotEqual(t, HashName("Position"), HashName("Velocity"))
}

func TestHashNameEmptyIsOffsetBasis(t *testing.T) {
	require.Equal(t, fnvOffsetBasis64, HashName(""))
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	schema, err := r.Register("Position", []byte(`{"type":"object"}`))
	require.NoError(t, err)
	require.Equal(t, HashName("Position"), schema.TypeID)

	got, ok := r.Lookup(schema.TypeID)
	require.True(t, ok)
	require.Equal(t, schema, got)

	byName, ok := r.LookupByName("Position")
	require.True(t, ok)
	require.Equal(t, schema, byName)
}

func TestRegisterIdempotentOnIdenticalSchema(t *testing.T) {
	r := NewRegistry()
	first, err := r.Register("Position", []byte(`{"type":"object"}`))
	require.NoError(t, err)

	second, err := r.Register("Position", []byte(`{"type":"object"}`))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRegisterRejectsConflictingSchema(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("Position", []byte(`{"type":"object"}`))
	require.NoError(t, err)

	_, err = r.Register("Position", []byte(`{"type":"array"}`))
	require.Error(t, err)
}

func TestSlotIsDenseAndStable(t *testing.T) {
	r := NewRegistry()
	a := HashName("Position")
	b := HashName("Velocity")

	slotA := r.Slot(a)
	slotB := r.Slot(b)
	require.NotEqual(t, slotA, slotB)
	require.Equal(t, slotA, r.Slot(a))
}
