package schema

import "errors"

// Sentinel errors for lifecycle operations. Dispatch paths (capability call,
// hook fan-out, broker tool proxy) never return these directly; they surface
// failures as CallResult / HookResult values instead.
var (
	ErrNotFound      = errors.New("not found")
	ErrDisabled      = errors.New("disabled")
	ErrConflict      = errors.New("conflict")
	ErrUnimplemented = errors.New("unimplemented")
	ErrAlreadyExists = errors.New("already exists")
)
