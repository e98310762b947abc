package storage

const schema = `
-- Deck sources: a local directory or a git repository of markdown decks.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- local | git
    last_scanned INTEGER                -- unix seconds
);

-- Cards are keyed by the content hash of term, translation and kind.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    term TEXT NOT NULL,
    phonetic TEXT NOT NULL DEFAULT '',
    translation TEXT NOT NULL DEFAULT '',
    part_of_speech TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    audio_ref TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT 'vocabulary',
    created_at INTEGER NOT NULL
);

-- Every source a card was found in. Identical cards in two sources share one
-- row in cards; the card goes once no source lists it.
CREATE TABLE IF NOT EXISTS card_sources (
    card_id TEXT NOT NULL,
    source_id INTEGER NOT NULL,

    PRIMARY KEY(card_id, source_id),
    FOREIGN KEY(card_id) REFERENCES cards(id),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS card_sources_source ON card_sources(source_id);

-- Per-learner FSRS memory state. No row means the card is new to the learner.
CREATE TABLE IF NOT EXISTS card_states (
    learner_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    last_review INTEGER,
    due_at INTEGER NOT NULL,

    PRIMARY KEY(learner_id, card_id),
    FOREIGN KEY(card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS card_states_due ON card_states(learner_id, due_at);

CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    learner_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    reviewed_at INTEGER NOT NULL
);
`
