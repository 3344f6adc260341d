// Package schema contains the core contracts shared across driftcove packages.
// Concrete implementations live in their respective packages; this package is
// the single canonical source of truth for every shared type and interface.
package schema

import (
	"context"
	"encoding/json"
	"time"
)

// Handler is the function every capability handler implements.
// Expected failures should be returned as errors; the registry converts them
// into structured failure results and never lets them escape to callers.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Capability is a named, schema-described callable the runtime can invoke
// uniformly regardless of origin (native function, plugin, external server).
type Capability struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Handler     Handler         `json:"-"`
	Enabled     bool            `json:"enabled"`
	Version     string          `json:"version"`
	Category    string          `json:"category"`
	Tags        []string        `json:"tags,omitempty"`
	Examples    []string        `json:"examples,omitempty"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CallCount    int64      `json:"callCount"`
	LastCalledAt *time.Time `json:"lastCalledAt,omitempty"`
}

// HasHandler reports whether the capability is actually implemented.
// Imported catalog entries may describe a capability without carrying code.
func (c Capability) HasHandler() bool { return c.Handler != nil }

// ErrorKind classifies an expected failure surfaced as data.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindDisabled      ErrorKind = "disabled"
	KindConflict      ErrorKind = "conflict"
	KindUnimplemented ErrorKind = "unimplemented"
	KindConnection    ErrorKind = "connection_refused"
	KindTimeout       ErrorKind = "timeout"
	KindProtocol      ErrorKind = "protocol_error"
	KindInternalFault ErrorKind = "internal_fault"
)

// CallResult is the typed success-or-failure value every invocation path
// returns. Callers never need to handle a raised fault for expected failure
// modes (missing, disabled, unreachable).
type CallResult struct {
	Success bool      `json:"success"`
	Result  any       `json:"result,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Ok wraps a handler result in a success CallResult.
func Ok(result any) CallResult {
	return CallResult{Success: true, Result: result}
}

// Fail builds a failure CallResult with the given kind and message.
func Fail(kind ErrorKind, msg string) CallResult {
	return CallResult{Success: false, Kind: kind, Error: msg}
}
