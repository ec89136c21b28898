package history

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/arcanehall/rulebook-host/internal/orchestrator"
)

// Recorder is the concrete orchestrator.HistoryRecorder binding: one
// write per finished session, fire-and-forget from the orchestrator's
// point of view (a failed write here never fails the session it
// describes).
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(outcome orchestrator.SessionOutcome) {
	row := Outcome{
		GameKey:   outcome.GameKey,
		Players:   playersColumn(outcome.Room.Players),
		Succeeded: outcome.Succeeded,
		Detail:    outcome.Detail,
		EndedAt:   time.Now(),
	}
	if err := r.db.Create(&row).Error; err != nil {
		log.Printf("WARN: history: failed to record session outcome for game %q: %v", outcome.GameKey, err)
	}
}

// GetByGameKey retrieves the most recent outcomes recorded for a given
// game key, in reverse-chronological order.
func GetByGameKey(db *gorm.DB, gameKey string, limit int) ([]Outcome, error) {
	var outcomes []Outcome
	err := db.Where("game_key = ?", gameKey).
		Order("ended_at DESC").
		Limit(limit).
		Find(&outcomes).Error
	return outcomes, err
}
