// Package orchestrator interprets every guest Output event, maintains the
// visibility scope stack, and fans messages in and out of player
// channels. It satisfies sandbox.OutputHandler.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/arcanehall/rulebook-host/internal/channel"
	"github.com/arcanehall/rulebook-host/internal/wire"
)

// Config is a session's configuration surface.
type Config struct {
	EnableStateBroadcast bool
	GameKey              string
}

// Session owns one room's channel map and visibility stack for the
// lifetime of a guest session. The sandbox adapter calls its
// OutputHandler methods from inside trigger_io; no other goroutine may
// touch a Session concurrently, since the guest is a single logical
// thread and events arrive strictly sequentially.
type Session struct {
	room     wire.RoomInfo
	channels map[wire.PlayerId]*channel.Channel

	// visibility is the scope stack; the innermost (last) element is the
	// current scope. An empty stack means "all seated players".
	visibility [][]wire.PlayerId

	rng   *rand.Rand
	state State
	cfg   Config

	stateSink StateSink
	history   HistoryRecorder
}

// New constructs a Session for room, one channel per seated player, in
// the StateStarting state. rngSeed selects the host RNG's seed; callers
// that want nondeterminism should derive it from crypto/rand once at
// startup and pass it through, since this package never calls time.Now
// or crypto/rand itself.
func New(room wire.RoomInfo, channels map[wire.PlayerId]*channel.Channel, cfg Config, rngSeed int64, stateSink StateSink, history HistoryRecorder) *Session {
	if stateSink == nil {
		stateSink = NopStateSink{}
	}
	if history == nil {
		history = NopHistoryRecorder{}
	}
	return &Session{
		room:      room,
		channels:  channels,
		rng:       rand.New(rand.NewSource(rngSeed)),
		state:     StateStarting,
		cfg:       cfg,
		stateSink: stateSink,
		history:   history,
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// GameKey returns the configured game key, for log lines and history
// records (mirrors sandbox.Session.GameKey).
func (s *Session) GameKey() string {
	return s.cfg.GameKey
}

// scope returns the current visibility scope: the stack top, or every
// seated player if the stack is empty.
func (s *Session) scope() []wire.PlayerId {
	if len(s.visibility) == 0 {
		return s.room.Players
	}
	return s.visibility[len(s.visibility)-1]
}

// Fail implements sandbox.OutputHandler: it is the adapter's hook for
// terminal dispatch failures this Session did not already fail itself on
// (guest-reported errors, malformed output, oversize replies).
func (s *Session) Fail(ctx context.Context, err error) {
	if s.state == StateFailed {
		return
	}
	if _, alreadyTyped := err.(*SessionError); !alreadyTyped {
		err = &SessionError{Subsystem: classifyAdapterError(err), Err: err}
	}
	_ = s.fail(err)
}

func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.history.Record(SessionOutcome{Room: s.room, GameKey: s.cfg.GameKey, Succeeded: false, Detail: err.Error()})
	s.closeChannels()
	return err
}

func (s *Session) closeChannels() {
	for _, ch := range s.channels {
		_ = ch.Close()
	}
}

// --- sandbox.OutputHandler ---

// SessionEnd asserts the visibility stack is empty and transitions to
// StateEnded.
func (s *Session) SessionEnd(ctx context.Context) error {
	if len(s.visibility) != 0 {
		return s.fail(newProtocolError("sessionEnd with non-empty visibility stack (depth %d)", len(s.visibility)))
	}
	s.state = StateEnded
	s.history.Record(SessionOutcome{Room: s.room, GameKey: s.cfg.GameKey, Succeeded: true})
	return nil
}

// UpdateState forwards v to the state sink if broadcast is enabled.
func (s *Session) UpdateState(ctx context.Context, value json.RawMessage) error {
	if s.state == StateStarting {
		s.state = StateRunning
	}
	if s.cfg.EnableStateBroadcast {
		s.stateSink.PublishState(s.room, value)
	}
	return nil
}

// DoTaskIf verifies allowed is a subset of the current scope and pushes
// it as the new innermost scope.
func (s *Session) DoTaskIf(ctx context.Context, allowed []wire.PlayerId) error {
	if s.state == StateStarting {
		s.state = StateRunning
	}
	if !wire.IsSubset(allowed, s.scope()) {
		return s.fail(newProtocolError("doTaskIf{allowed=%v} is not a subset of current scope %v", allowed, s.scope()))
	}
	s.visibility = append(s.visibility, allowed)
	return nil
}

// TaskDone pops the innermost scope and fans its result to every player
// in the scope one level out: doTask to those who were inside the
// closed scope, syncResult(value) to those in targets, restricted to
// everyone else.
func (s *Session) TaskDone(ctx context.Context, targets []wire.PlayerId, value json.RawMessage) error {
	if len(s.visibility) == 0 {
		return s.fail(newProtocolError("taskDone with empty visibility stack"))
	}
	last := s.visibility[len(s.visibility)-1]
	s.visibility = s.visibility[:len(s.visibility)-1]
	newScope := s.scope()

	var g errgroup.Group
	for _, p := range newScope {
		p := p
		var result wire.TaskResult
		switch {
		case wire.ContainsPlayer(last, p):
			result = wire.TaskResult{Type: wire.TaskResultDoTask}
		case wire.ContainsPlayer(targets, p):
			result = wire.TaskResult{Type: wire.TaskResultSyncResult, Value: value}
		default:
			result = wire.TaskResult{Type: wire.TaskResultRestricted}
		}
		g.Go(func() error {
			return s.sendTo(p, result)
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(err)
	}
	return nil
}

// Random draws an integer in [start, end] from the host RNG and fans it
// out to every member of the current scope, identical across recipients.
func (s *Session) Random(ctx context.Context, start, end int32) (int32, error) {
	if end < start {
		return 0, s.fail(newProtocolError("random{start=%d,end=%d}: end before start", start, end))
	}
	span := int64(end) - int64(start) + 1
	n := int32(int64(start) + s.rng.Int63n(span))

	var g errgroup.Group
	for _, p := range s.scope() {
		p := p
		g.Go(func() error {
			return s.sendTo(p, n)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, s.fail(err)
	}
	return n, nil
}

// Action awaits one message on from's channel and forwards it unchanged
// to every other player in the current scope. from need not be in the
// current scope: the orchestrator trusts the guest on whose turn it is.
func (s *Session) Action(ctx context.Context, from wire.PlayerId, param json.RawMessage) (json.RawMessage, error) {
	ch, ok := s.channels[from]
	if !ok {
		return nil, s.fail(newProtocolError("action{from=%s}: not a seated player", from))
	}

	val, err := ch.Receive()
	if err != nil {
		return nil, s.fail(newTransportError("action{from=%s}: receive: %w", from, err))
	}

	scope := s.scope()
	var g errgroup.Group
	for _, p := range scope {
		if p == from {
			continue
		}
		p := p
		g.Go(func() error {
			return s.sendTo(p, val)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.fail(err)
	}
	return val, nil
}

func (s *Session) sendTo(p wire.PlayerId, val any) error {
	ch, ok := s.channels[p]
	if !ok {
		return newProtocolError("no channel for seated player %s", p)
	}
	if err := ch.Send(val); err != nil {
		if errors.Is(err, channel.ErrIDOverflow) {
			return newResourceError("send to %s: %w", p, err)
		}
		return newTransportError("send to %s: %w", p, err)
	}
	return nil
}
