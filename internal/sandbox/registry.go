package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ErrDuplicateKey is returned by Registry.Add when key is already taken.
var ErrDuplicateKey = fmt.Errorf("sandbox: module key already registered")

// Registry is the shared module registry (key -> compiled module) guarded
// by a readers-writer lock: reads for session creation, writes for
// add/remove.
type Registry struct {
	runtime GuestRuntime

	mu      sync.RWMutex
	modules map[string]CompiledModule
}

func NewRegistry(runtime GuestRuntime) *Registry {
	return &Registry{
		runtime: runtime,
		modules: make(map[string]CompiledModule),
	}
}

// KeyFromFilename derives a registry key from a guest module's file name by
// stripping a trailing ".wasm" suffix, reproducing the original host's
// `new_runtime` convention.
func KeyFromFilename(filename string) string {
	return strings.TrimSuffix(filename, ".wasm")
}

// Add compiles code and registers it under key. Fails fast if key already
// exists, without compiling twice.
func (r *Registry) Add(ctx context.Context, key string, code []byte) error {
	r.mu.RLock()
	_, exists := r.modules[key]
	r.mu.RUnlock()
	if exists {
		return ErrDuplicateKey
	}

	module, err := r.runtime.Compile(ctx, code)
	if err != nil {
		return fmt.Errorf("sandbox: compile %q: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[key]; exists {
		return ErrDuplicateKey
	}
	r.modules[key] = module
	return nil
}

// Remove deletes key from the registry, reporting whether it was present.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[key]; !ok {
		return false
	}
	delete(r.modules, key)
	return true
}

// NewSession checks out a Session bound to the module registered under
// key. Multiple sessions may run concurrently against the same compiled
// module; each gets its own Instance at Session.Start time.
func (r *Registry) NewSession(key string, cfg Config) (*Session, error) {
	r.mu.RLock()
	module, ok := r.modules[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sandbox: module key %q not registered", key)
	}
	return &Session{gameKey: key, module: module, cfg: cfg}, nil
}

// Config mirrors the original runtime's per-host Config: whether guest
// updateState events reach the state sink, and whether guest log() calls
// reach the logging sink.
type Config struct {
	EnableStateBroadcast bool
	EnableLog            bool
}
