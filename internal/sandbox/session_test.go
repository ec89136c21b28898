package sandbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// fakeMemory is a byte-slice GuestMemory with the same bounds-checking
// contract real linear memory has.
type fakeMemory struct {
	buf []byte
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{buf: make([]byte, size)}
}

func (m *fakeMemory) Read(offset, length uint32) ([]byte, bool) {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:offset+length])
	return out, true
}

func (m *fakeMemory) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], data)
	return true
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

// putParams writes the 4-word trigger_io params record at offset 0 and
// the output payload right after it, returning the params pointer.
func putParams(mem *fakeMemory, inputPtr, inputCap uint32, output []byte) uint32 {
	const paramsLen = 16
	outputPtr := uint32(paramsLen)
	record := make([]byte, paramsLen)
	binary.LittleEndian.PutUint32(record[0:4], inputPtr)
	binary.LittleEndian.PutUint32(record[4:8], inputCap)
	binary.LittleEndian.PutUint32(record[8:12], outputPtr)
	binary.LittleEndian.PutUint32(record[12:16], uint32(len(output)))
	mem.Write(0, record)
	mem.Write(outputPtr, output)
	return 0
}

// fakeHandler records every call made to it and lets each method's
// return value be scripted per test.
type fakeHandler struct {
	sessionEndErr error
	updateStateErr error
	doTaskIfErr   error
	taskDoneErr   error
	randomErr     error
	randomValue   int32
	actionErr     error
	actionValue   json.RawMessage

	sessionEndCalled bool
	updateStateValue json.RawMessage
	doTaskIfAllowed  []wire.PlayerId
	taskDoneTargets  []wire.PlayerId
	taskDoneValue    json.RawMessage
	randomStart      int32
	randomEnd        int32
	actionFrom       wire.PlayerId

	failCalled bool
	failErr    error
}

func (h *fakeHandler) SessionEnd(ctx context.Context) error {
	h.sessionEndCalled = true
	return h.sessionEndErr
}

func (h *fakeHandler) UpdateState(ctx context.Context, value json.RawMessage) error {
	h.updateStateValue = value
	return h.updateStateErr
}

func (h *fakeHandler) DoTaskIf(ctx context.Context, allowed []wire.PlayerId) error {
	h.doTaskIfAllowed = allowed
	return h.doTaskIfErr
}

func (h *fakeHandler) TaskDone(ctx context.Context, targets []wire.PlayerId, value json.RawMessage) error {
	h.taskDoneTargets = targets
	h.taskDoneValue = value
	return h.taskDoneErr
}

func (h *fakeHandler) Random(ctx context.Context, start, end int32) (int32, error) {
	h.randomStart, h.randomEnd = start, end
	return h.randomValue, h.randomErr
}

func (h *fakeHandler) Action(ctx context.Context, from wire.PlayerId, param json.RawMessage) (json.RawMessage, error) {
	h.actionFrom = from
	return h.actionValue, h.actionErr
}

func (h *fakeHandler) Fail(ctx context.Context, err error) {
	h.failCalled = true
	h.failErr = err
}

func newTestSession() *Session {
	return &Session{gameKey: "tic-tac-toe", cfg: Config{}}
}

func TestTriggerIOSessionStartReturnsRoom(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputSessionStart})
	ptr := putParams(mem, 64, 64, output)

	n, err := s.triggerIO(context.Background(), mem, ptr, json.RawMessage(`{"players":["red","blue"]}`), h)
	if err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	written, _ := mem.Read(64, n)
	if string(written) != `{"players":["red","blue"]}` {
		t.Fatalf("got %s", written)
	}
	if h.failCalled {
		t.Fatal("Fail must not be called on a successful dispatch")
	}
}

func TestTriggerIOSessionEndCallsHandler(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputSessionEnd})
	ptr := putParams(mem, 64, 64, output)

	if _, err := s.triggerIO(context.Background(), mem, ptr, nil, h); err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	if !h.sessionEndCalled {
		t.Fatal("expected SessionEnd to be called")
	}
}

func TestTriggerIOUpdateStateForwardsValue(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputUpdateState, StateValue: json.RawMessage(`{"board":1}`)})
	ptr := putParams(mem, 64, 64, output)

	if _, err := s.triggerIO(context.Background(), mem, ptr, nil, h); err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	if string(h.updateStateValue) != `{"board":1}` {
		t.Fatalf("got %s", h.updateStateValue)
	}
}

func TestTriggerIODoTaskIfRepliesDoTask(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputDoTaskIf, DoTaskIfAllowed: []wire.PlayerId{wire.Red}})
	ptr := putParams(mem, 64, 64, output)

	n, err := s.triggerIO(context.Background(), mem, ptr, nil, h)
	if err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	if len(h.doTaskIfAllowed) != 1 || h.doTaskIfAllowed[0] != wire.Red {
		t.Fatalf("got allowed=%v", h.doTaskIfAllowed)
	}
	written, _ := mem.Read(64, n)
	if string(written) != `{"type":"doTask"}` {
		t.Fatalf("got %s", written)
	}
}

func TestTriggerIOTaskDoneForwardsTargetsAndValue(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{
		Type:            wire.OutputTaskDone,
		TaskDoneTargets: []wire.PlayerId{wire.Blue},
		TaskDoneValue:   json.RawMessage(`"win"`),
	})
	ptr := putParams(mem, 64, 64, output)

	if _, err := s.triggerIO(context.Background(), mem, ptr, nil, h); err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	if len(h.taskDoneTargets) != 1 || h.taskDoneTargets[0] != wire.Blue {
		t.Fatalf("got targets=%v", h.taskDoneTargets)
	}
	if string(h.taskDoneValue) != `"win"` {
		t.Fatalf("got value=%s", h.taskDoneValue)
	}
}

func TestTriggerIORandomRepliesWithDrawnValue(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{randomValue: 3}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputRandom, RandomStart: 0, RandomEnd: 5})
	ptr := putParams(mem, 64, 64, output)

	n, err := s.triggerIO(context.Background(), mem, ptr, nil, h)
	if err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	if h.randomStart != 0 || h.randomEnd != 5 {
		t.Fatalf("got start=%d end=%d", h.randomStart, h.randomEnd)
	}
	written, _ := mem.Read(64, n)
	if string(written) != "3" {
		t.Fatalf("got %s", written)
	}
}

func TestTriggerIOActionRepliesWithReceivedValue(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{actionValue: json.RawMessage(`{"cell":4}`)}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputAction, ActionFrom: wire.Red})
	ptr := putParams(mem, 64, 64, output)

	n, err := s.triggerIO(context.Background(), mem, ptr, nil, h)
	if err != nil {
		t.Fatalf("triggerIO: %v", err)
	}
	if h.actionFrom != wire.Red {
		t.Fatalf("got from=%v", h.actionFrom)
	}
	written, _ := mem.Read(64, n)
	if string(written) != `{"cell":4}` {
		t.Fatalf("got %s", written)
	}
}

func TestTriggerIOGuestErrorNeverWritesBackAndFails(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	// Prime the reply slot with a sentinel so we can tell nothing wrote over it.
	mem.Write(64, []byte("SENTINEL"))
	output, _ := json.Marshal(wire.Output{Type: wire.OutputError, ErrorMessage: "invalid move"})
	ptr := putParams(mem, 64, 64, output)

	_, err := s.triggerIO(context.Background(), mem, ptr, nil, h)
	var guestErr *GuestLogicError
	if !errors.As(err, &guestErr) {
		t.Fatalf("got %v, want *GuestLogicError", err)
	}
	if guestErr.Message != "invalid move" {
		t.Fatalf("got message %q", guestErr.Message)
	}
	if !h.failCalled {
		t.Fatal("expected Fail to be called")
	}
	untouched, _ := mem.Read(64, 8)
	if string(untouched) != "SENTINEL" {
		t.Fatalf("reply buffer was written to: %s", untouched)
	}
}

func TestTriggerIOMalformedOutputFails(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	ptr := putParams(mem, 64, 64, []byte(`not json`))

	_, err := s.triggerIO(context.Background(), mem, ptr, nil, h)
	if err == nil {
		t.Fatal("expected an error for malformed guest output")
	}
	if !h.failCalled {
		t.Fatal("expected Fail to be called")
	}
}

func TestTriggerIOOversizeReplyFails(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(256)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputSessionStart})
	// inputCap of 4 bytes is too small for any realistic room JSON.
	ptr := putParams(mem, 64, 4, output)

	_, err := s.triggerIO(context.Background(), mem, ptr, json.RawMessage(`{"players":["red","blue"]}`), h)
	var oversize *OversizeReplyError
	if !errors.As(err, &oversize) {
		t.Fatalf("got %v, want *OversizeReplyError", err)
	}
	if !h.failCalled {
		t.Fatal("expected Fail to be called")
	}
}

func TestTriggerIOInputBufferOutOfBoundsFails(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(80)
	output, _ := json.Marshal(wire.Output{Type: wire.OutputSessionEnd})
	// inputPtr 1000 is past the end of the 80-byte memory.
	ptr := putParams(mem, 1000, 64, output)

	_, err := s.triggerIO(context.Background(), mem, ptr, nil, h)
	if err == nil {
		t.Fatal("expected an out-of-bounds write error")
	}
	if !h.failCalled {
		t.Fatal("expected Fail to be called")
	}
}

func TestTriggerIOParamsRecordOutOfBoundsReturnsRawError(t *testing.T) {
	s := newTestSession()
	h := &fakeHandler{}
	mem := newFakeMemory(8) // too small to hold a 16-byte params record

	_, err := s.triggerIO(context.Background(), mem, 0, nil, h)
	if err == nil {
		t.Fatal("expected an out-of-bounds params error")
	}
	if h.failCalled {
		t.Fatal("a malformed params record is a host-side bug, not a session failure; Fail should not fire")
	}
}
