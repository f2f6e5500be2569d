// Package session does the wall-clock bookkeeping for one study session.
// Nothing here is durable; the end-of-session summary is handed to the
// activity tracker and the tracker is thrown away.
package session

import (
	"fmt"
	"time"

	"github.com/finnvolkel/margin/internal/clock"
)

// Summary is the snapshot handed to the activity tracker when a session ends.
type Summary struct {
	Elapsed        time.Duration
	Minutes        int
	CardsProcessed int
}

// Tracker measures one Active→Complete session cycle.
type Tracker struct {
	clk            clock.Clock
	start          time.Time
	cardStart      time.Time
	cardsProcessed int
}

// New starts a tracker at the clock's current time.
func New(clk clock.Clock) *Tracker {
	now := clk.Now()
	return &Tracker{clk: clk, start: now, cardStart: now}
}

// CardShown resets the per-card timer. Call whenever the cursor advances to a
// new card.
func (t *Tracker) CardShown() {
	t.cardStart = t.clk.Now()
}

// CardRated counts one processed card. Skips are not counted.
func (t *Tracker) CardRated() {
	t.cardsProcessed++
}

// CardsProcessed returns how many cards have been rated this session.
func (t *Tracker) CardsProcessed() int {
	return t.cardsProcessed
}

// Elapsed returns the time since the session started.
func (t *Tracker) Elapsed() time.Duration {
	return t.clk.Now().Sub(t.start)
}

// CardElapsed returns the time the current card has been showing. Its value
// feeds the optional response-time field of the review log.
func (t *Tracker) CardElapsed() time.Duration {
	return t.clk.Now().Sub(t.cardStart)
}

// AverageSecondsPerCard returns elapsed seconds divided by cards processed,
// or 0 before the first rating.
func (t *Tracker) AverageSecondsPerCard() float64 {
	if t.cardsProcessed == 0 {
		return 0
	}
	return t.Elapsed().Seconds() / float64(t.cardsProcessed)
}

// FormatClock renders the elapsed session time as mm:ss.
func (t *Tracker) FormatClock() string {
	total := int(t.Elapsed().Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Snapshot returns the session totals for the activity tracker. Minutes are
// rounded to the nearest whole minute.
func (t *Tracker) Snapshot() Summary {
	elapsed := t.Elapsed()
	return Summary{
		Elapsed:        elapsed,
		Minutes:        int(elapsed.Round(time.Minute) / time.Minute),
		CardsProcessed: t.cardsProcessed,
	}
}
