package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/fsrs"
)

// Deck serves due cards from the local database and schedules reviews with
// FSRS. It stands in for the platform API when studying offline.
type Deck struct {
	db     *DB
	params *fsrs.Params
	now    func() time.Time
}

func NewDeck(db *DB, params *fsrs.Params) *Deck {
	if params == nil {
		params = fsrs.DefaultParams()
	}
	return &Deck{db: db, params: params, now: time.Now}
}

// FetchDueCards returns overdue cards first, then cards the learner has never seen.
func (d *Deck) FetchDueCards(ctx context.Context, learnerID string, limit int) ([]domain.Flashcard, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT c.id, c.term, c.phonetic, c.translation, c.part_of_speech, c.gender, c.audio_ref, c.kind,
		       s.card_id IS NULL AS is_new
		FROM cards c
		LEFT JOIN card_states s ON s.card_id = c.id AND s.learner_id = ?
		WHERE s.card_id IS NULL OR s.due_at <= ?
		ORDER BY is_new, s.due_at, c.created_at, c.id
		LIMIT ?
	`, learnerID, d.now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards for %s: %w", learnerID, err)
	}
	defer rows.Close()

	cards := []domain.Flashcard{}
	for rows.Next() {
		var c domain.Flashcard
		if err := rows.Scan(&c.ID, &c.Term, &c.Phonetic, &c.Translation, &c.PartOfSpeech, &c.Gender, &c.AudioRef, &c.Kind, &c.IsNew); err != nil {
			return nil, fmt.Errorf("failed to scan due card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SubmitRating advances the learner's FSRS state for the card and logs the review.
func (d *Deck) SubmitRating(ctx context.Context, learnerID, cardID string, rating domain.Rating) error {
	if !rating.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}
	now := d.now()

	tx, err := d.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM cards WHERE id = ?`, cardID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
		}
		return fmt.Errorf("failed to look up card %s: %w", cardID, err)
	}

	cur, err := loadState(ctx, tx, learnerID, cardID)
	if err != nil {
		return err
	}
	next := d.params.Next(cur, rating, now)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO card_states (learner_id, card_id, stability, difficulty, reps, lapses, last_review, due_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, card_id) DO UPDATE SET
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			reps = excluded.reps,
			lapses = excluded.lapses,
			last_review = excluded.last_review,
			due_at = excluded.due_at
	`, learnerID, cardID, next.Stability, next.Difficulty, next.Reps, next.Lapses, next.LastReview.Unix(), next.Due.Unix())
	if err != nil {
		return fmt.Errorf("failed to save state for card %s: %w", cardID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (learner_id, card_id, rating, reviewed_at)
		VALUES (?, ?, ?, ?)
	`, learnerID, cardID, int(rating), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to log review of card %s: %w", cardID, err)
	}

	return tx.Commit()
}

// State returns the learner's FSRS state for a card; the zero state if new.
func (d *Deck) State(ctx context.Context, learnerID, cardID string) (fsrs.CardState, error) {
	return loadState(ctx, d.db.conn, learnerID, cardID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadState(ctx context.Context, q queryRower, learnerID, cardID string) (fsrs.CardState, error) {
	var (
		s          fsrs.CardState
		lastReview sql.NullInt64
		dueAt      int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT stability, difficulty, reps, lapses, last_review, due_at
		FROM card_states WHERE learner_id = ? AND card_id = ?
	`, learnerID, cardID).Scan(&s.Stability, &s.Difficulty, &s.Reps, &s.Lapses, &lastReview, &dueAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fsrs.CardState{}, nil
	}
	if err != nil {
		return fsrs.CardState{}, fmt.Errorf("failed to load state for card %s: %w", cardID, err)
	}
	if lastReview.Valid {
		s.LastReview = time.Unix(lastReview.Int64, 0).UTC()
	}
	s.Due = time.Unix(dueAt, 0).UTC()
	return s, nil
}

// ReviewLogs returns the learner's most recent reviews, newest first.
func (d *Deck) ReviewLogs(ctx context.Context, learnerID string, limit int) ([]domain.ReviewLog, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT learner_id, card_id, rating, reviewed_at
		FROM review_logs WHERE learner_id = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?
	`, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs for %s: %w", learnerID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l  domain.ReviewLog
			ts int64
		)
		if err := rows.Scan(&l.LearnerID, &l.CardID, &l.Rating, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan review log: %w", err)
		}
		l.Timestamp = time.Unix(ts, 0).UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
