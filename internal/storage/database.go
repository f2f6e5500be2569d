// Package storage is the sqlite-backed card repository, review-log sink, and
// activity-state store.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/finnvolkel/margin/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// OpenMemory creates an in-memory database for testing.
func OpenMemory() (*DB, error) {
	return Open(":memory:")
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InsertCard inserts a new card. contentHash may be empty for cards not
// created by a deck sync.
func (db *DB) InsertCard(card domain.Card, contentHash string) error {
	_, err := db.conn.Exec(`
		INSERT INTO cards (id, front, back, ease_factor, interval, repetitions, due, last_review, content_hash, source_id, source_page, excerpt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.Front,
		card.Back,
		card.EaseFactor,
		card.Interval,
		card.Repetitions,
		card.Due,
		nullTime(card.LastReview),
		nullString(contentHash),
		nullInt64(card.SourceID),
		nullInt(card.SourcePage),
		card.Excerpt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

const cardColumns = `id, front, back, ease_factor, interval, repetitions, due, last_review, source_id, source_page, excerpt`

func scanCard(row interface{ Scan(...any) error }) (domain.Card, error) {
	var (
		c          domain.Card
		lastReview sql.NullTime
		sourceID   sql.NullInt64
		sourcePage sql.NullInt64
	)
	err := row.Scan(
		&c.ID,
		&c.Front,
		&c.Back,
		&c.EaseFactor,
		&c.Interval,
		&c.Repetitions,
		&c.Due,
		&lastReview,
		&sourceID,
		&sourcePage,
		&c.Excerpt,
	)
	if err != nil {
		return domain.Card{}, err
	}
	if lastReview.Valid {
		t := lastReview.Time
		c.LastReview = &t
	}
	if sourceID.Valid {
		v := sourceID.Int64
		c.SourceID = &v
	}
	if sourcePage.Valid {
		v := int(sourcePage.Int64)
		c.SourcePage = &v
	}
	return c, nil
}

// FindCard retrieves a card by id. Returns ErrCardNotFound if absent.
func (db *DB) FindCard(id string) (domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrCardNotFound, id)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return c, nil
}

// FindCardByHash retrieves a card by its content hash, or ErrCardNotFound.
func (db *DB) FindCardByHash(hash string) (domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE content_hash = ?`, hash)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return domain.Card{}, fmt.Errorf("%w: hash %s", domain.ErrCardNotFound, hash)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return c, nil
}

// FetchDue returns the cards in scope that are due at the given time, oldest
// due first. The caller does not re-sort.
func (db *DB) FetchDue(scope domain.Scope, now time.Time) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE due <= ?`
	args := []any{now}
	if scope.SourceID != nil {
		query += ` AND source_id = ?`
		args = append(args, *scope.SourceID)
	}
	query += ` ORDER BY due ASC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetCardsBySourceID retrieves all cards belonging to a source.
func (db *DB) GetCardsBySourceID(sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.Query(`SELECT `+cardColumns+` FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for source ID %d: %w", sourceID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CardContentHash returns the stored content hash for a card, empty when the
// card was not imported from a deck.
func (db *DB) CardContentHash(id string) (string, error) {
	var hash sql.NullString
	err := db.conn.QueryRow(`SELECT content_hash FROM cards WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", domain.ErrCardNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content hash for %s: %w", id, err)
	}
	return hash.String, nil
}

// UpdateCardSchedule persists the scheduling fields after a review.
func (db *DB) UpdateCardSchedule(card domain.Card) error {
	res, err := db.conn.Exec(`
		UPDATE cards
		SET ease_factor = ?, interval = ?, repetitions = ?, due = ?, last_review = ?
		WHERE id = ?
	`,
		card.EaseFactor,
		card.Interval,
		card.Repetitions,
		card.Due,
		nullTime(card.LastReview),
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule for card %s: %w", card.ID, err)
	}
	return requireRow(res, card.ID)
}

// UpdateCardContent replaces a card's front/back text and content hash
// without touching its schedule.
func (db *DB) UpdateCardContent(id, front, back, contentHash string) error {
	res, err := db.conn.Exec(`
		UPDATE cards
		SET front = ?, back = ?, content_hash = ?
		WHERE id = ?
	`, front, back, nullString(contentHash), id)
	if err != nil {
		return fmt.Errorf("failed to update content for card %s: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteCard removes a card by id.
func (db *DB) DeleteCard(id string) error {
	res, err := db.conn.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, id)
	}
	return nil
}

// CountsByStage returns the new/learning/due card counts within a scope.
func (db *DB) CountsByStage(scope domain.Scope, now time.Time) (domain.StageCounts, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN repetitions = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN repetitions BETWEEN 1 AND 2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN due <= ? THEN 1 ELSE 0 END), 0)
		FROM cards`
	args := []any{now}
	if scope.SourceID != nil {
		query += ` WHERE source_id = ?`
		args = append(args, *scope.SourceID)
	}

	var counts domain.StageCounts
	if err := db.conn.QueryRow(query, args...).Scan(&counts.New, &counts.Learning, &counts.Due); err != nil {
		return domain.StageCounts{}, fmt.Errorf("failed to count cards by stage: %w", err)
	}
	return counts, nil
}

// AppendReviewLog appends one scheduling decision. Entries are never updated
// or deleted.
func (db *DB) AppendReviewLog(entry domain.ReviewLogEntry) error {
	_, err := db.conn.Exec(`
		INSERT INTO review_log (card_id, at, quality, interval_before, interval_after, ease_before, ease_after, response_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.CardID,
		entry.At,
		int(entry.Quality),
		entry.IntervalBefore,
		entry.IntervalAfter,
		entry.EaseBefore,
		entry.EaseAfter,
		nullInt64(entry.ResponseMillis),
	)
	if err != nil {
		return fmt.Errorf("failed to append review log for card %s: %w", entry.CardID, err)
	}
	return nil
}

// LoadActivity reads the activity singleton, creating the default row on
// first use.
func (db *DB) LoadActivity() (domain.ActivityState, error) {
	row := db.conn.QueryRow(`
		SELECT current_streak, longest_streak, last_study, today_minutes, today_bucket,
		       daily_goal_minutes, weekly_goal_days, total_study_days, total_minutes, total_cards, total_pages
		FROM activity WHERE id = 1
	`)

	var (
		s           domain.ActivityState
		lastStudy   sql.NullTime
		todayBucket sql.NullTime
	)
	err := row.Scan(
		&s.CurrentStreak,
		&s.LongestStreak,
		&lastStudy,
		&s.TodayMinutes,
		&todayBucket,
		&s.DailyGoalMinutes,
		&s.WeeklyGoalDays,
		&s.TotalStudyDays,
		&s.TotalMinutes,
		&s.TotalCardsReviewed,
		&s.TotalPagesRead,
	)
	if err == sql.ErrNoRows {
		return domain.NewActivityState(), nil
	}
	if err != nil {
		return domain.ActivityState{}, fmt.Errorf("failed to load activity state: %w", err)
	}
	if lastStudy.Valid {
		t := lastStudy.Time
		s.LastStudy = &t
	}
	if todayBucket.Valid {
		t := todayBucket.Time
		s.TodayBucket = &t
	}
	return s, nil
}

// SaveActivity upserts the activity singleton row.
func (db *DB) SaveActivity(s domain.ActivityState) error {
	_, err := db.conn.Exec(`
		INSERT INTO activity (id, current_streak, longest_streak, last_study, today_minutes, today_bucket,
		                      daily_goal_minutes, weekly_goal_days, total_study_days, total_minutes, total_cards, total_pages)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_study = excluded.last_study,
			today_minutes = excluded.today_minutes,
			today_bucket = excluded.today_bucket,
			daily_goal_minutes = excluded.daily_goal_minutes,
			weekly_goal_days = excluded.weekly_goal_days,
			total_study_days = excluded.total_study_days,
			total_minutes = excluded.total_minutes,
			total_cards = excluded.total_cards,
			total_pages = excluded.total_pages
	`,
		s.CurrentStreak,
		s.LongestStreak,
		nullTime(s.LastStudy),
		s.TodayMinutes,
		nullTime(s.TodayBucket),
		s.DailyGoalMinutes,
		s.WeeklyGoalDays,
		s.TotalStudyDays,
		s.TotalMinutes,
		s.TotalCardsReviewed,
		s.TotalPagesRead,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity state: %w", err)
	}
	return nil
}

// Source is a card origin, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string // "local" or "git"
	LastScanned sql.NullTime
}

// InsertSource inserts a new source and returns its ID.
func (db *DB) InsertSource(path, sourceType string) (int64, error) {
	res, err := db.conn.Exec(`INSERT INTO sources (path, type) VALUES (?, ?)`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path, or nil when absent.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRow(`SELECT id, path, type, last_scanned FROM sources WHERE path = ?`, path)
	err := row.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, path, type, last_scanned FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned stamps a source after a sync pass.
func (db *DB) UpdateSourceLastScanned(sourceID int64, at time.Time) error {
	_, err := db.conn.Exec(`UPDATE sources SET last_scanned = ? WHERE id = ?`, at, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source and every card imported from it.
func (db *DB) DeleteSource(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM cards WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cards for source %d: %w", id, err)
	}
	if _, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
