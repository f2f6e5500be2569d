// Package sched implements the review scheduler: an SM-2 derivative driven by
// a four-level quality scale. The ease formula keeps the classic constants
// (tuned for a wider scale) on the narrowed 0..3 range, and a rating below
// Good counts as a failure. Both behaviors are inherited from the product and
// are kept exactly; do not rescale without sign-off.
package sched

import (
	"fmt"
	"math"
	"time"

	"github.com/finnvolkel/margin/internal/domain"
)

// Second-review interval of the SM-2 ladder, in days.
const secondInterval = 6

// Review applies a quality rating to the card at the given instant. The input
// card is not mutated; the updated card and the review-log entry describing
// the decision are returned. Deterministic given (card, quality, now).
func Review(card domain.Card, quality domain.Quality, now time.Time) (domain.Card, domain.ReviewLogEntry) {
	entry := domain.ReviewLogEntry{
		CardID:         card.ID,
		At:             now,
		Quality:        quality,
		IntervalBefore: card.Interval,
		EaseBefore:     card.EaseFactor,
	}

	card.EaseFactor = nextEase(card.EaseFactor, quality)
	card.Interval, card.Repetitions = nextInterval(card.Interval, card.Repetitions, card.EaseFactor, quality)
	card.LastReview = &now
	card.Due = now.AddDate(0, 0, card.Interval)

	entry.IntervalAfter = card.Interval
	entry.EaseAfter = card.EaseFactor
	return card, entry
}

// nextEase applies the SM-2 ease adjustment for quality q in [0,3] and clamps
// at the 1.3 floor.
func nextEase(ease float64, q domain.Quality) float64 {
	miss := float64(domain.Easy - q)
	ease += 0.1 - miss*(0.08+miss*0.02)
	return math.Max(domain.MinEaseFactor, ease)
}

// nextInterval computes the interval ladder. Again and Hard both reset the
// repetition run; Good and Easy extend it. The ease factor passed in is the
// post-adjustment one.
func nextInterval(interval, repetitions int, ease float64, q domain.Quality) (int, int) {
	if q < domain.Good {
		return 1, 0
	}
	repetitions++
	switch repetitions {
	case 1:
		interval = 1
	case 2:
		interval = secondInterval
	default:
		interval = int(math.Floor(float64(interval) * ease))
	}
	return interval, repetitions
}

// PreviewIntervals computes, for each quality, the interval a review right
// now would produce, without mutating the card. It runs the exact Review
// arithmetic so previews can never diverge from outcomes.
func PreviewIntervals(card domain.Card, now time.Time) map[domain.Quality]string {
	out := make(map[domain.Quality]string, 4)
	for q := domain.Again; q <= domain.Easy; q++ {
		next, _ := Review(card, q, now)
		out[q] = DescribeInterval(next.Interval)
	}
	return out
}

// DescribeInterval renders a day count for display.
func DescribeInterval(days int) string {
	switch {
	case days < 1:
		return "<1 day"
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
