package sandbox

import (
	"context"
	"errors"
	"testing"
)

// fakeCompiledModule is a no-op CompiledModule used to exercise the
// registry without a real sandbox technology.
type fakeCompiledModule struct{}

func (fakeCompiledModule) Instantiate(ctx context.Context, host HostFuncs) (Instance, error) {
	return nil, errors.New("fakeCompiledModule: Instantiate not implemented")
}

// fakeRuntime counts how many times Compile is called, so registry tests
// can assert double-checked locking avoids a redundant compile.
type fakeRuntime struct {
	compileCalls int
	compileErr   error
}

func (r *fakeRuntime) Compile(ctx context.Context, code []byte) (CompiledModule, error) {
	r.compileCalls++
	if r.compileErr != nil {
		return nil, r.compileErr
	}
	return fakeCompiledModule{}, nil
}

func TestKeyFromFilenameStripsWasmSuffix(t *testing.T) {
	if got := KeyFromFilename("tic-tac-toe.wasm"); got != "tic-tac-toe" {
		t.Fatalf("got %q", got)
	}
	if got := KeyFromFilename("no-suffix"); got != "no-suffix" {
		t.Fatalf("got %q", got)
	}
}

func TestRegistryAddAndNewSession(t *testing.T) {
	rt := &fakeRuntime{}
	reg := NewRegistry(rt)

	if err := reg.Add(context.Background(), "tic-tac-toe", []byte("bytecode")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rt.compileCalls != 1 {
		t.Fatalf("got %d compile calls", rt.compileCalls)
	}

	session, err := reg.NewSession("tic-tac-toe", Config{EnableLog: true})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if session.GameKey() != "tic-tac-toe" {
		t.Fatalf("got game key %q", session.GameKey())
	}
}

func TestRegistryAddDuplicateKeyFailsWithoutRecompiling(t *testing.T) {
	rt := &fakeRuntime{}
	reg := NewRegistry(rt)

	if err := reg.Add(context.Background(), "tic-tac-toe", []byte("v1")); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := reg.Add(context.Background(), "tic-tac-toe", []byte("v2"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
	if rt.compileCalls != 1 {
		t.Fatalf("the initial read-locked existence check should short-circuit before compiling again; got %d calls", rt.compileCalls)
	}
}

func TestRegistryNewSessionUnknownKeyFails(t *testing.T) {
	reg := NewRegistry(&fakeRuntime{})
	if _, err := reg.NewSession("nonexistent", Config{}); err == nil {
		t.Fatal("expected an error for an unregistered key")
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(&fakeRuntime{})
	_ = reg.Add(context.Background(), "tic-tac-toe", []byte("bytecode"))

	if !reg.Remove("tic-tac-toe") {
		t.Fatal("expected Remove to report the key was present")
	}
	if reg.Remove("tic-tac-toe") {
		t.Fatal("expected a second Remove to report the key was already gone")
	}
	if _, err := reg.NewSession("tic-tac-toe", Config{}); err == nil {
		t.Fatal("expected NewSession to fail after Remove")
	}
}
