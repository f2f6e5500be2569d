package domain

import (
	"encoding"
	"fmt"
)

// Quality is the user's assessment of recall difficulty for one review.
// The scale is deliberately four levels wide even though the underlying
// ease formula descends from a six-level one; see sched for the arithmetic.
type Quality int

const (
	Again Quality = iota // complete failure to recall
	Hard                 // recalled with significant difficulty
	Good                 // recalled with some effort
	Easy                 // recalled effortlessly
)

var (
	qualityNames  = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}
	qualityByName = map[string]Quality{
		"Again": Again,
		"Hard":  Hard,
		"Good":  Good,
		"Easy":  Easy,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Quality(0)
	_ encoding.TextMarshaler   = Quality(0)
	_ encoding.TextUnmarshaler = (*Quality)(nil)
)

// IsValid reports whether q is a valid quality (Again through Easy).
func (q Quality) IsValid() bool {
	return q >= Again && q <= Easy
}

// String returns the name of the quality ("Again", "Hard", "Good", "Easy").
// For invalid values it returns "Quality(n)".
func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) {
	if !q.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}
	return []byte(qualityNames[q]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(text []byte) error {
	v, ok := qualityByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidQuality, text)
	}
	*q = v
	return nil
}
