package domain

import "fmt"

// Stage is the coarse mastery label derived from a card's repetition count.
// It exists for display grouping and for queue requeue decisions; it carries
// no scheduling state of its own.
type Stage int

const (
	New       Stage = iota // never answered successfully
	Learning               // 1-2 consecutive successes
	Reviewing              // 3-5 consecutive successes
	Mastered               // 6 or more
)

var stageNames = [...]string{New: "New", Learning: "Learning", Reviewing: "Reviewing", Mastered: "Mastered"}

// StageOf maps a repetition count onto a stage.
func StageOf(repetitions int) Stage {
	switch {
	case repetitions <= 0:
		return New
	case repetitions <= 2:
		return Learning
	case repetitions <= 5:
		return Reviewing
	default:
		return Mastered
	}
}

// String returns the stage name, or "Stage(n)" for invalid values.
func (s Stage) String() string {
	if s >= New && s <= Mastered {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}
