package sandbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// OutputHandler is the host-side effect interpreter for a session: the
// seam between the Sandbox Adapter and the Session Orchestrator.
// sandbox.Session calls these from inside trigger_io; orchestrator
// implements them against the room's channels and visibility stack.
type OutputHandler interface {
	SessionEnd(ctx context.Context) error
	UpdateState(ctx context.Context, value json.RawMessage) error
	DoTaskIf(ctx context.Context, allowed []wire.PlayerId) error
	TaskDone(ctx context.Context, targets []wire.PlayerId, value json.RawMessage) error
	Random(ctx context.Context, start, end int32) (int32, error)
	Action(ctx context.Context, from wire.PlayerId, param json.RawMessage) (json.RawMessage, error)

	// Fail is called when trigger_io cannot produce a reply because of a
	// guest-reported error, malformed guest output, an oversize reply, or
	// an input buffer out of bounds. It is not called for an error returned
	// by one of the methods above (the handler is expected to have torn
	// down its own state on that path), nor for an out-of-bounds params
	// record or output slice. The handler should tear down its session
	// state; the original err is still what propagates to the adapter's
	// caller.
	Fail(ctx context.Context, err error)
}

// GuestLogicError wraps an Output::error payload the guest reported. It is
// terminal: the adapter must not return to the guest at all once it sees
// one.
type GuestLogicError struct {
	Message string
}

func (e *GuestLogicError) Error() string {
	return fmt.Sprintf("sandbox: guest reported error: %s", e.Message)
}

// OversizeReplyError is raised when the host's reply would not fit in the
// buffer capacity the guest advertised.
type OversizeReplyError struct {
	Len, Cap int
}

func (e *OversizeReplyError) Error() string {
	return fmt.Sprintf("sandbox: reply of %d bytes exceeds guest input_cap of %d", e.Len, e.Cap)
}

var unitJSON = json.RawMessage("null")

// Session is one session's binding of a compiled module: it owns the
// instance lifecycle and the trigger_io dispatch loop.
type Session struct {
	gameKey string
	module  CompiledModule
	cfg     Config
}

// GameKey returns the registry key this session was checked out under,
// reproducing the original `Session::game_key()` accessor, used for log
// lines that identify which game a room is running.
func (s *Session) GameKey() string {
	return s.gameKey
}

// Start instantiates the module, wires trigger_io/log, and runs
// rulebook_start_session to completion. It returns once the guest session
// ends, fails, or the context is canceled.
func (s *Session) Start(ctx context.Context, inputCap uint32, printState bool, room wire.RoomInfo, handler OutputHandler) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return err
	}

	instance, err := s.module.Instantiate(ctx, HostFuncs{
		TriggerIO: func(ctx context.Context, mem GuestMemory, paramsPtr uint32) (uint32, error) {
			return s.triggerIO(ctx, mem, paramsPtr, roomJSON, handler)
		},
		Log: func(msg string) {
			if s.cfg.EnableLog {
				log.Printf("GUEST[%s]: %s", s.gameKey, msg)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("sandbox: instantiate %q: %w", s.gameKey, err)
	}
	defer instance.Close(ctx)

	return instance.StartSession(ctx, inputCap, printState)
}

// triggerIO implements the trigger_io contract: read the guest's 4-word
// params record, pull its serialized Output out of guest memory, dispatch
// it, and write the JSON reply back — unless the guest reported a
// terminal error, in which case nothing is written back at all.
func (s *Session) triggerIO(ctx context.Context, mem GuestMemory, paramsPtr uint32, roomJSON json.RawMessage, handler OutputHandler) (uint32, error) {
	const paramsRecordLen = 4 * 4 // four u32 words

	params, ok := mem.Read(paramsPtr, paramsRecordLen)
	if !ok {
		return 0, errors.New("sandbox: params record out of bounds")
	}
	inputPtr := binary.LittleEndian.Uint32(params[0:4])
	inputCap := binary.LittleEndian.Uint32(params[4:8])
	outputPtr := binary.LittleEndian.Uint32(params[8:12])
	outputLen := binary.LittleEndian.Uint32(params[12:16])

	outputBytes, ok := mem.Read(outputPtr, outputLen)
	if !ok {
		return 0, errors.New("sandbox: output slice out of bounds")
	}

	var out wire.Output
	if err := json.Unmarshal(outputBytes, &out); err != nil {
		err = fmt.Errorf("sandbox: malformed guest output: %w", err)
		handler.Fail(ctx, err)
		return 0, err
	}

	reply, err := s.dispatch(ctx, handler, out, roomJSON)
	if err != nil {
		// Guest errors and protocol/transport failures alike: never write
		// back, never let the guest resume. Errors from the handler's own
		// methods are returned as they are, without a call to Fail; only a
		// guest-reported error is passed to Fail here.
		if _, isGuestErr := err.(*GuestLogicError); isGuestErr {
			handler.Fail(ctx, err)
		}
		return 0, err
	}

	if uint32(len(reply)) > inputCap {
		err := &OversizeReplyError{Len: len(reply), Cap: int(inputCap)}
		handler.Fail(ctx, err)
		return 0, err
	}
	if !mem.Write(inputPtr, reply) {
		err := errors.New("sandbox: input buffer out of bounds")
		handler.Fail(ctx, err)
		return 0, err
	}
	return uint32(len(reply)), nil
}

func (s *Session) dispatch(ctx context.Context, handler OutputHandler, out wire.Output, roomJSON json.RawMessage) (json.RawMessage, error) {
	switch out.Type {
	case wire.OutputError:
		return nil, &GuestLogicError{Message: out.ErrorMessage}

	case wire.OutputSessionStart:
		return roomJSON, nil

	case wire.OutputSessionEnd:
		if err := handler.SessionEnd(ctx); err != nil {
			return nil, err
		}
		return unitJSON, nil

	case wire.OutputUpdateState:
		if err := handler.UpdateState(ctx, out.StateValue); err != nil {
			return nil, err
		}
		return unitJSON, nil

	case wire.OutputDoTaskIf:
		if err := handler.DoTaskIf(ctx, out.DoTaskIfAllowed); err != nil {
			return nil, err
		}
		// The host-side reply to doTaskIf is always doTask; the
		// syncResult/restricted split is only delivered to *other*
		// players at the matching taskDone.
		return json.Marshal(wire.TaskResult{Type: wire.TaskResultDoTask})

	case wire.OutputTaskDone:
		if err := handler.TaskDone(ctx, out.TaskDoneTargets, out.TaskDoneValue); err != nil {
			return nil, err
		}
		return unitJSON, nil

	case wire.OutputRandom:
		n, err := handler.Random(ctx, out.RandomStart, out.RandomEnd)
		if err != nil {
			return nil, err
		}
		return json.Marshal(n)

	case wire.OutputAction:
		val, err := handler.Action(ctx, out.ActionFrom, out.ActionParam)
		if err != nil {
			return nil, err
		}
		return val, nil

	default:
		return nil, fmt.Errorf("sandbox: unhandled output type %q", out.Type)
	}
}
