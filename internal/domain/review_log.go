package domain

import "time"

// ReviewLogEntry records a single scheduling decision for a card.
// Entries are append-only; nothing in this engine reads them back.
type ReviewLogEntry struct {
	CardID         string
	At             time.Time
	Quality        Quality
	IntervalBefore int
	IntervalAfter  int
	EaseBefore     float64
	EaseAfter      float64
	ResponseMillis *int64 // optional time-to-answer
}
