package orchestrator

import (
	"encoding/json"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// StateSink receives the guest's serialized state on every updateState
// event, when the session's Config.EnableStateBroadcast is set. The
// server's admission layer passes no sink, so its sessions use
// NopStateSink; tests use an in-memory recorder.
type StateSink interface {
	PublishState(room wire.RoomInfo, value json.RawMessage)
}

// HistoryRecorder is the fire-and-forget sink a finished session reports
// its outcome to (internal/history's gorm-backed ledger in production).
// A failing Record must never fail the session it describes.
type HistoryRecorder interface {
	Record(outcome SessionOutcome)
}

// SessionOutcome is the durable summary of one finished session, written
// once at sessionEnd or on fatal failure.
type SessionOutcome struct {
	Room      wire.RoomInfo
	GameKey   string
	Succeeded bool
	Detail    string
}

// NopStateSink discards every publish; New uses it when no sink is given.
type NopStateSink struct{}

func (NopStateSink) PublishState(wire.RoomInfo, json.RawMessage) {}

// NopHistoryRecorder discards every outcome; used where no ledger is
// wired (e.g. when the history database is unavailable at startup).
type NopHistoryRecorder struct{}

func (NopHistoryRecorder) Record(SessionOutcome) {}
