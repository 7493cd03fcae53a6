package ecserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &EncodeError{Type: "wire.Filter", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "wire.Filter")
}

func TestDecodeErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &DecodeError{Type: "wire.Filter", Err: inner}
	require.ErrorIs(t, err, inner)
}

func TestTransportErrorUnwraps(t *testing.T) {
	inner := errors.New("connection reset")
	err := &TransportError{Subject: "engine.tick.schedule", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "engine.tick.schedule")
}

func TestInvariantPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()
	Invariant(errors.New("row index out of range"))
}
