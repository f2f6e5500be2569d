package storage

const schema = `
-- The 'cards' table stores each flashcard together with its review schedule.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    interval INTEGER NOT NULL DEFAULT 0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    due DATETIME NOT NULL,
    last_review DATETIME,
    content_hash TEXT,
    source_id INTEGER,
    source_page INTEGER,
    excerpt TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_due    ON cards(due);
CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_id);
CREATE INDEX IF NOT EXISTS idx_cards_hash   ON cards(content_hash);

-- The 'review_log' table is the append-only record of scheduling decisions.
-- Nothing in the engine reads it back; it exists for external analytics.
CREATE TABLE IF NOT EXISTS review_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    at DATETIME NOT NULL,
    quality INTEGER NOT NULL,
    interval_before INTEGER NOT NULL,
    interval_after INTEGER NOT NULL,
    ease_before REAL NOT NULL,
    ease_after REAL NOT NULL,
    response_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id);

-- The 'activity' table holds the single streak/goal aggregate row.
CREATE TABLE IF NOT EXISTS activity (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_study DATETIME,
    today_minutes INTEGER NOT NULL DEFAULT 0,
    today_bucket DATETIME,
    daily_goal_minutes INTEGER NOT NULL DEFAULT 30,
    weekly_goal_days INTEGER NOT NULL DEFAULT 5,
    total_study_days INTEGER NOT NULL DEFAULT 0,
    total_minutes INTEGER NOT NULL DEFAULT 0,
    total_cards INTEGER NOT NULL DEFAULT 0,
    total_pages INTEGER NOT NULL DEFAULT 0
);

-- The 'sources' table tracks card origins: a local directory or a git URL.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);
`
