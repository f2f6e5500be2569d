package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scheduling defaults for freshly created cards.
const (
	InitialEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// Card is a single front/back flash-card together with its review schedule.
// Scheduling fields are only ever mutated by the scheduler; content only by
// an explicit edit.
type Card struct {
	ID          string
	Front       string
	Back        string
	EaseFactor  float64
	Interval    int // days until the next review
	Repetitions int // consecutive successes since the last failure
	Due         time.Time
	LastReview  *time.Time // nil before the first review

	// Provenance, opaque to scheduling.
	SourceID   *int64
	SourcePage *int
	Excerpt    string
}

// NewCard creates a card that is immediately due.
func NewCard(front, back string, now time.Time) Card {
	return Card{
		ID:         uuid.NewString(),
		Front:      front,
		Back:       back,
		EaseFactor: InitialEaseFactor,
		Due:        now,
	}
}

// IsDue reports whether the card is ready for review at the given time.
func (c Card) IsDue(now time.Time) bool {
	return !c.Due.After(now)
}

// Stage returns the card's learning stage, derived from its repetition count.
func (c Card) Stage() Stage {
	return StageOf(c.Repetitions)
}
