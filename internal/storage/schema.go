package storage

const schema = `
-- A deck groups one user's cards. Cards reference their deck by id.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- Cards carry their own scheduling metadata (interval in days, ease factor,
-- review count, due date).
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT 'en',
    tags TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    interval REAL NOT NULL,
    ease_factor REAL NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    due_date DATETIME NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

-- Per-user difficulty markers, kept outside the scheduling fields. A marked
-- card is served earlier in review queues.
CREATE TABLE IF NOT EXISTS difficult_cards (
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    marked_at DATETIME NOT NULL,

    PRIMARY KEY (user_id, card_id)
);

CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(due_date);
`
