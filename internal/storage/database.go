package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/flipdeck/internal/domain"
)

var ErrCardNotFound = errors.New("card not found")

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; the web server reviews from many goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Source is a deck source, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string // local | git
	LastScanned sql.NullInt64
}

// LastScannedAt returns the last scan time, zero if never scanned.
func (s Source) LastScannedAt() time.Time {
	if !s.LastScanned.Valid {
		return time.Time{}
	}
	return time.Unix(s.LastScanned.Int64, 0).UTC()
}

// InsertSource inserts a new source and returns its ID.
func (db *DB) InsertSource(path, sourceType string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, type)
		VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path. It returns nil if none exists.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRow(`
		SELECT id, path, type, last_scanned
		FROM sources WHERE path = ?
	`, path)

	err := row.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, path, type, last_scanned
		FROM sources ORDER BY id
	`)
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

// UpdateSourceLastScanned records when a source was last reconciled.
func (db *DB) UpdateSourceLastScanned(sourceID int64, at time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.Unix(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// exclusiveCards selects the cards listed by source ?1 and no other source.
const exclusiveCards = `
	SELECT card_id FROM card_sources
	WHERE source_id = ?1
	AND card_id NOT IN (SELECT card_id FROM card_sources WHERE source_id <> ?1)`

// DeleteSource removes a source. Cards no other source lists go with it,
// together with their history.
func (db *DB) DeleteSource(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM card_states WHERE card_id IN (` + exclusiveCards + `)`,
		`DELETE FROM review_logs WHERE card_id IN (` + exclusiveCards + `)`,
		`DELETE FROM cards WHERE id IN (` + exclusiveCards + `)`,
		`DELETE FROM card_sources WHERE source_id = ?1`,
		`DELETE FROM sources WHERE id = ?1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete source %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// UpsertCard inserts a card or refreshes the presentation fields of an
// existing one, and records that sourceID lists it. The card's ID must
// already be set.
func (db *DB) UpsertCard(card domain.Flashcard, sourceID int64, now time.Time) error {
	kind := card.Kind
	if kind == "" {
		kind = domain.KindVocabulary
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cards (id, term, phonetic, translation, part_of_speech, gender, audio_ref, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phonetic = excluded.phonetic,
			part_of_speech = excluded.part_of_speech,
			gender = excluded.gender,
			audio_ref = excluded.audio_ref
	`,
		card.ID,
		card.Term,
		card.Phonetic,
		card.Translation,
		card.PartOfSpeech,
		card.Gender,
		card.AudioRef,
		kind,
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}
	_, err = tx.Exec(`INSERT OR IGNORE INTO card_sources (card_id, source_id) VALUES (?, ?)`, card.ID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to link card %s to source ID %d: %w", card.ID, sourceID, err)
	}
	return tx.Commit()
}

// FindCardByID retrieves a card by its ID. It returns nil if none exists.
func (db *DB) FindCardByID(id string) (*domain.Flashcard, error) {
	var c domain.Flashcard
	row := db.conn.QueryRow(`
		SELECT id, term, phonetic, translation, part_of_speech, gender, audio_ref, kind
		FROM cards WHERE id = ?
	`, id)

	err := row.Scan(&c.ID, &c.Term, &c.Phonetic, &c.Translation, &c.PartOfSpeech, &c.Gender, &c.AudioRef, &c.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// GetCardIDsBySourceID lists the IDs of every card a source lists.
func (db *DB) GetCardIDsBySourceID(sourceID int64) ([]string, error) {
	rows, err := db.conn.Query(`SELECT card_id FROM card_sources WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card row for source ID %d: %w", sourceID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCard removes a card and everything recorded about it.
func (db *DB) DeleteCard(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteCard(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteCard(tx *sql.Tx, id string) error {
	for _, stmt := range []string{
		`DELETE FROM card_states WHERE card_id = ?`,
		`DELETE FROM review_logs WHERE card_id = ?`,
		`DELETE FROM card_sources WHERE card_id = ?`,
		`DELETE FROM cards WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete card %s: %w", id, err)
		}
	}
	return nil
}

// DetachCard records that sourceID no longer lists the card. The card and its
// history are deleted once no source lists it; deleted reports whether that
// happened.
func (db *DB) DetachCard(id string, sourceID int64) (deleted bool, err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM card_sources WHERE card_id = ? AND source_id = ?`, id, sourceID); err != nil {
		return false, fmt.Errorf("failed to detach card %s from source ID %d: %w", id, sourceID, err)
	}
	var remaining int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM card_sources WHERE card_id = ?`, id).Scan(&remaining); err != nil {
		return false, fmt.Errorf("failed to count sources of card %s: %w", id, err)
	}
	if remaining == 0 {
		if err := deleteCard(tx, id); err != nil {
			return false, err
		}
		deleted = true
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit detach of card %s: %w", id, err)
	}
	return deleted, nil
}

// CountCards returns the number of cards in the deck.
func (db *DB) CountCards() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}
