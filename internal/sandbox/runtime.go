// Package sandbox implements the Sandbox Adapter: loading a compiled
// guest module, instantiating it per session, exposing the trigger_io/log
// host functions, and driving the guest's single entry point to
// completion.
//
// The bytecode format and sandbox technology are deliberately opaque to
// this package; GuestRuntime is the seam that lets it stay agnostic of
// which sandbox actually executes the guest. Production wiring lives in
// sandbox/wazerort; tests exercise the registry with a fake GuestRuntime
// and call the trigger_io dispatch directly against an in-memory
// GuestMemory, so dispatch and bounds checking are covered without a real
// compiled module.
package sandbox

import "context"

// GuestMemory is the guest's exported linear memory region. Every access
// must be bounds-checked against the current size.
type GuestMemory interface {
	// Read returns the length bytes at offset, or ok=false if that range
	// falls outside the current memory size.
	Read(offset, length uint32) (data []byte, ok bool)
	// Write stores data at offset, or returns ok=false if it would run
	// past the current memory size.
	Write(offset uint32, data []byte) (ok bool)
	Size() uint32
}

// HostFuncs are the two functions the guest calls into, bound at
// instantiation time.
type HostFuncs struct {
	// TriggerIO backs `trigger_io(params_ptr) -> reply_len`.
	TriggerIO func(ctx context.Context, mem GuestMemory, paramsPtr uint32) (uint32, error)
	// Log backs `log(msg_ptr, msg_len)`. Never returns an error: a
	// disabled log sink silently discards.
	Log func(msg string)
}

// CompiledModule is a guest module loaded into the sandbox, ready to be
// instantiated once per session.
type CompiledModule interface {
	Instantiate(ctx context.Context, host HostFuncs) (Instance, error)
}

// Instance is one running (or about to run) copy of a compiled module,
// scoped to a single session.
type Instance interface {
	// StartSession calls the guest's `rulebook_start_session` export and
	// blocks until the guest returns (or fails).
	StartSession(ctx context.Context, inputCap uint32, printState bool) error
	Close(ctx context.Context) error
}

// GuestRuntime compiles raw guest bytecode into a CompiledModule. It is the
// only place this package depends on a concrete sandbox technology.
type GuestRuntime interface {
	Compile(ctx context.Context, code []byte) (CompiledModule, error)
}
