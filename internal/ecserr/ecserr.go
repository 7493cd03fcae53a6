// Package ecserr defines the error taxonomy shared by every subsystem of the
// engine: world store key errors, registry/schedule errors, and the
// transport-level errors raised while draining the bus. Callers wrap these
// with fmt.Errorf("...: %w", ...) for context; dispatch sites use errors.Is/As
// to decide whether a failure is tick-fatal or isolable to one instance.
package ecserr

import (
	"errors"
	"fmt"

	"github.com/TheBitDrifter/bark"
)

// Sentinel errors for conditions with no associated payload.
var (
	ErrScheduleInfeasible = errors.New("ecserr: schedule infeasible")
	ErrTimeout            = errors.New("ecserr: deadline elapsed")
)

// UnknownEntityError reports a world-store operation against an entity id
// that does not currently occupy any archetype row.
type UnknownEntityError struct {
	Entity uint64
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("ecserr: unknown entity %d", e.Entity)
}

// UnknownArchetypeError reports a lookup against an archetype signature the
// world has never created.
type UnknownArchetypeError struct {
	Signature string
}

func (e *UnknownArchetypeError) Error() string {
	return fmt.Sprintf("ecserr: unknown archetype %s", e.Signature)
}

// ComponentNotInArchetypeError reports a mutate/read against a component type
// the entity's current archetype does not carry.
type ComponentNotInArchetypeError struct {
	Entity        uint64
	ComponentType uint64
}

func (e *ComponentNotInArchetypeError) Error() string {
	return fmt.Sprintf("ecserr: component %d not in archetype of entity %d", e.ComponentType, e.Entity)
}

// DuplicateSchemaError reports a second registration for a component name
// whose type id is already registered with a different schema.
type DuplicateSchemaError struct {
	Name string
}

func (e *DuplicateSchemaError) Error() string {
	return fmt.Sprintf("ecserr: component %q already registered with a different schema", e.Name)
}

// MissingHeaderError reports a sentinel or ack message with a required
// header absent.
type MissingHeaderError struct {
	Header string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("ecserr: missing required header %q", e.Header)
}

// EncodeError and DecodeError wrap codec failures with the value's Go type
// for diagnostics, keeping the underlying error unwrap-able.
type EncodeError struct {
	Type string
	Err  error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("ecserr: encode %s: %v", e.Type, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("ecserr: decode %s: %v", e.Type, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError wraps a publish/subscribe/connect failure from the bus with
// the subject it occurred on.
type TransportError struct {
	Subject string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ecserr: transport on %q: %v", e.Subject, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// Invariant panics with a stack-traced error for conditions that should be
// structurally impossible given the store's own bookkeeping (a signature
// with no backing table, a row index outside a column's length). Callers
// should never need to recover from this; it exists to surface a corrupted
// invariant loudly instead of returning a zero value silently.
func Invariant(err error) {
	panic(bark.AddTrace(err))
}
