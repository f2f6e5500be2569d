// Package queue holds the session-scoped working set of due cards: an ordered
// list, a cursor, and the requeue bookkeeping that keeps a session finite.
package queue

import (
	"fmt"
	"time"

	"github.com/finnvolkel/margin/internal/domain"
	"github.com/finnvolkel/margin/internal/sched"
)

// Phase is the lifecycle state of a study session's queue.
type Phase int

const (
	Idle     Phase = iota // no session yet
	Loading               // waiting on the repository's due-card fetch
	Active                // cards remain at or past the cursor
	Complete              // nothing left to show
)

var phaseNames = [...]string{Idle: "Idle", Loading: "Loading", Active: "Active", Complete: "Complete"}

func (p Phase) String() string {
	if p >= Idle && p <= Complete {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// item tags each queued card with whether it was itself produced by a
// requeue. Requeued entries are never requeued again, so any finite queue
// drains in at most 2n ratings.
type item struct {
	card     domain.Card
	requeued bool
}

// ReviewFunc computes a card's post-review state. It exists so tests can
// substitute the scheduler.
type ReviewFunc func(domain.Card, domain.Quality, time.Time) (domain.Card, domain.ReviewLogEntry)

// Queue is the in-memory study queue. It is not safe for concurrent use; the
// single-session model mutates it from one context only.
type Queue struct {
	review    ReviewFunc
	items     []item
	cursor    int
	phase     Phase
	processed int
}

// New returns an idle, empty queue backed by the real scheduler.
func New() *Queue {
	return &Queue{review: sched.Review, phase: Idle}
}

// BeginLoad marks the queue as waiting on a due-card fetch. Any previous
// session content is discarded.
func (q *Queue) BeginLoad() {
	q.items = nil
	q.cursor = 0
	q.processed = 0
	q.phase = Loading
}

// Start replaces the queue with the fetched due cards, order preserved as
// given, and resets the cursor. An empty fetch completes immediately.
func (q *Queue) Start(cards []domain.Card) {
	q.items = make([]item, len(cards))
	for i, c := range cards {
		q.items[i] = item{card: c}
	}
	q.cursor = 0
	q.processed = 0
	if len(q.items) == 0 {
		q.phase = Complete
	} else {
		q.phase = Active
	}
}

// Phase returns the queue's lifecycle state.
func (q *Queue) Phase() Phase {
	return q.phase
}

// Current returns the card at the cursor, if any.
func (q *Queue) Current() (domain.Card, bool) {
	if q.cursor >= len(q.items) {
		return domain.Card{}, false
	}
	return q.items[q.cursor].card, true
}

// Rate reviews the current card with the given quality. The updated card and
// its review-log entry are returned for the caller to persist. If the card is
// still in its learning run and still due, it is appended to the end of the
// queue, at most once per original enqueue. The cursor then advances.
func (q *Queue) Rate(quality domain.Quality, now time.Time) (domain.Card, domain.ReviewLogEntry, error) {
	if q.cursor >= len(q.items) {
		return domain.Card{}, domain.ReviewLogEntry{}, domain.ErrCardNotFound
	}
	cur := q.items[q.cursor]

	updated, entry := q.review(cur.card, quality, now)

	if !cur.requeued && updated.Stage() == domain.Learning && updated.IsDue(now) {
		q.items = append(q.items, item{card: updated, requeued: true})
	}

	q.cursor++
	q.processed++
	q.updatePhase()
	return updated, entry, nil
}

// Skip defers the current card to the end of the queue without scoring it and
// advances the cursor. The requeue marker travels with the card.
func (q *Queue) Skip() error {
	if q.cursor >= len(q.items) {
		return domain.ErrCardNotFound
	}
	q.items = append(q.items, q.items[q.cursor])
	q.cursor++
	q.updatePhase()
	return nil
}

// Delete removes the card at index. Deleting before the cursor shifts it back
// one so it still names the same logical next card; if the queue ends up
// shorter than the cursor, the cursor clamps to the last entry.
func (q *Queue) Delete(index int) (domain.Card, error) {
	if index < 0 || index >= len(q.items) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	removed := q.items[index].card
	q.items = append(q.items[:index], q.items[index+1:]...)
	if index < q.cursor {
		q.cursor--
	}
	if q.cursor >= len(q.items) {
		q.cursor = max(0, len(q.items)-1)
	}
	q.updatePhase()
	return removed, nil
}

// DeleteByID removes the first entry whose card has the given id.
func (q *Queue) DeleteByID(id string) (domain.Card, error) {
	for i, it := range q.items {
		if it.card.ID == id {
			return q.Delete(i)
		}
	}
	return domain.Card{}, domain.ErrCardNotFound
}

// Remaining counts the cards at or past the cursor.
func (q *Queue) Remaining() int {
	return max(0, len(q.items)-q.cursor)
}

// Len returns the total queue length, processed entries included.
func (q *Queue) Len() int {
	return len(q.items)
}

// Processed returns how many ratings this session has taken.
func (q *Queue) Processed() int {
	return q.processed
}

func (q *Queue) updatePhase() {
	if q.phase == Idle || q.phase == Loading {
		return
	}
	if q.Remaining() == 0 {
		q.phase = Complete
	} else {
		q.phase = Active
	}
}
