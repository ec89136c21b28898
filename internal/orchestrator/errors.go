package orchestrator

import (
	"fmt"

	"github.com/arcanehall/rulebook-host/internal/sandbox"
)

// Subsystem classifies a SessionError so the operator-facing log line and
// any caller-side handling can branch on category without string matching.
type Subsystem string

const (
	SubsystemGuest     Subsystem = "guest"     // Output::error / guest panic
	SubsystemProtocol  Subsystem = "protocol"  // scope violation, malformed event
	SubsystemTransport Subsystem = "transport" // channel send/receive failure
	SubsystemResource  Subsystem = "resource"  // oversize reply, id overflow
)

// SessionError is the one error type every orchestrator failure path
// produces, wrapping the underlying cause with fmt.Errorf("...: %w", err)
// rather than inventing a new error type per call site.
type SessionError struct {
	Subsystem Subsystem
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("orchestrator: %s error: %v", e.Subsystem, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newGuestError(format string, args ...any) error {
	return &SessionError{Subsystem: SubsystemGuest, Err: fmt.Errorf(format, args...)}
}

func newProtocolError(format string, args ...any) error {
	return &SessionError{Subsystem: SubsystemProtocol, Err: fmt.Errorf(format, args...)}
}

func newTransportError(format string, args ...any) error {
	return &SessionError{Subsystem: SubsystemTransport, Err: fmt.Errorf(format, args...)}
}

func newResourceError(format string, args ...any) error {
	return &SessionError{Subsystem: SubsystemResource, Err: fmt.Errorf(format, args...)}
}

// classifyAdapterError maps an error surfaced by the sandbox adapter (as
// opposed to one this package raised itself) onto a Subsystem.
func classifyAdapterError(err error) Subsystem {
	switch err.(type) {
	case *sandbox.GuestLogicError:
		return SubsystemGuest
	case *sandbox.OversizeReplyError:
		return SubsystemResource
	default:
		return SubsystemProtocol
	}
}
