// Package wazerort is the production sandbox.GuestRuntime binding. No
// repo in the retrieval pack runs guest bytecode in a sandbox, so this
// package is grounded directly in the wazero project's own documented
// host-module API rather than in any pack example (see DESIGN.md); it is
// the only place this repo depends on a concrete sandbox technology,
// exactly the seam sandbox.GuestRuntime was designed to isolate.
package wazerort

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/arcanehall/rulebook-host/internal/sandbox"
)

// hostModuleName is the import module name guest binaries compiled
// against the original ABI expect their two host functions under.
const hostModuleName = "env"

// Runtime wraps a wazero.Runtime as a sandbox.GuestRuntime.
type Runtime struct {
	rt wazero.Runtime
}

// New creates a Runtime. Callers should Close it once, at process
// shutdown, to release the compiler's native resources.
func New(ctx context.Context) *Runtime {
	return &Runtime{rt: wazero.NewRuntime(ctx)}
}

func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

func (r *Runtime) Compile(ctx context.Context, code []byte) (sandbox.CompiledModule, error) {
	compiled, err := r.rt.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("wazerort: compile: %w", err)
	}
	return &compiledModule{rt: r.rt, compiled: compiled}, nil
}

type compiledModule struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
}

// Instantiate binds the two host functions into a fresh "env" host
// module, then instantiates the guest against it.
func (c *compiledModule) Instantiate(ctx context.Context, host sandbox.HostFuncs) (sandbox.Instance, error) {
	builder := c.rt.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, paramsPtr uint32) uint32 {
			n, err := host.TriggerIO(ctx, mod.Memory(), paramsPtr)
			if err != nil {
				// The guest never resumes past a trigger_io failure:
				// panicking here unwinds the guest call, which is the
				// wazero-idiomatic way to make an imported function abort
				// the instance instead of returning a bogus length.
				panic(err)
			}
			return n
		}).
		WithParameterNames("params_ptr").
		Export("trigger_io")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, msgPtr, msgLen uint32) {
			data, ok := mod.Memory().Read(msgPtr, msgLen)
			if !ok {
				return
			}
			host.Log(string(data))
		}).
		WithParameterNames("msg_ptr", "msg_len").
		Export("log")

	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("wazerort: build host module: %w", err)
	}

	instance, err := c.rt.InstantiateModule(ctx, c.compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, fmt.Errorf("wazerort: instantiate guest: %w", err)
	}

	return &instance_{module: instance}, nil
}

type instance_ struct {
	module api.Module
}

// StartSession calls the guest's rulebook_start_session export. A
// trigger_io failure surfaces here as a recovered panic (see Instantiate
// above), converted back into a plain error.
func (i *instance_) StartSession(ctx context.Context, inputCap uint32, printState bool) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if recErr, ok := rec.(error); ok {
				err = recErr
				return
			}
			err = fmt.Errorf("wazerort: guest call panicked: %v", rec)
		}
	}()

	fn := i.module.ExportedFunction("rulebook_start_session")
	if fn == nil {
		return fmt.Errorf("wazerort: guest does not export rulebook_start_session")
	}

	flag := uint64(0)
	if printState {
		flag = 1
	}
	_, callErr := fn.Call(ctx, uint64(inputCap), flag)
	return callErr
}

func (i *instance_) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
