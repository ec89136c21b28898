// Package history is the session-outcome ledger: a gorm/postgres-backed
// record of finished sessions. It is additive — the source system has no
// persistence at all — and deliberately scoped to outcomes of finished
// sessions, never live session state.
package history

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// Outcome is the row written once a session reaches StateEnded or
// StateFailed.
type Outcome struct {
	gorm.Model
	GameKey   string
	Players   string // comma-joined PlayerIds, room seating order preserved
	Succeeded bool
	Detail    string
	EndedAt   time.Time
}

func playersColumn(players []wire.PlayerId) string {
	parts := make([]string, len(players))
	for i, p := range players {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
