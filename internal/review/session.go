// Package review drives a learner through one pass over a fixed list of due
// flashcards: flip, rate, advance, complete.
package review

import (
	"errors"
	"math"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/scoring"
)

var (
	ErrNoCurrentCard = errors.New("no current card")
	ErrAlreadyRated  = errors.New("current card already rated")
)

// Stats are the running counters of a session.
type Stats struct {
	Total      int
	Reviewed   int
	Correct    int
	Streak     int
	BestStreak int
	Points     int
}

// Score is round(correct / reviewed * 100), or 0 before the first review.
func (s Stats) Score() int {
	if s.Reviewed == 0 {
		return 0
	}
	return int(math.Round(float64(s.Correct) / float64(s.Reviewed) * 100))
}

// Session holds progress through a fixed card list. It is not safe for
// concurrent use; Controller serializes access.
type Session struct {
	cards   []domain.Flashcard
	index   int
	flipped bool
	rated   bool // current card has an outcome
	pending bool // a rating submission is in flight
	stats   Stats
	policy  scoring.Policy
}

// NewSession copies cards; the list is fixed for the session's lifetime.
func NewSession(cards []domain.Flashcard, policy scoring.Policy) *Session {
	c := make([]domain.Flashcard, len(cards))
	copy(c, cards)
	if policy == nil {
		policy = scoring.Flat(0)
	}
	return &Session{
		cards:  c,
		policy: policy,
		stats:  Stats{Total: len(c)},
	}
}

// Current returns the card under review, or nil past the end.
func (s *Session) Current() *domain.Flashcard {
	if s.index >= len(s.cards) {
		return nil
	}
	card := s.cards[s.index]
	return &card
}

func (s *Session) Index() int     { return s.index }
func (s *Session) Len() int       { return len(s.cards) }
func (s *Session) Flipped() bool  { return s.flipped }
func (s *Session) Stats() Stats   { return s.stats }
func (s *Session) IsLast() bool   { return s.index == len(s.cards)-1 }
func (s *Session) Complete() bool { return s.stats.Total > 0 && s.stats.Reviewed == s.stats.Total }

// Flip toggles the reveal state and reports whether it changed anything.
func (s *Session) Flip() bool {
	if s.pending || s.Current() == nil {
		return false
	}
	s.flipped = !s.flipped
	return true
}

// Advance moves to the next card with its front showing. Advancing from the
// last card moves past the end.
func (s *Session) Advance() {
	if s.index < len(s.cards) {
		s.index++
	}
	s.flipped = false
	s.rated = false
}

// RecordOutcome applies a rating for the current card to the counters.
func (s *Session) RecordOutcome(r domain.Rating) error {
	if !r.Valid() {
		return domain.ErrInvalidRating
	}
	if s.Current() == nil {
		return ErrNoCurrentCard
	}
	if s.rated {
		return ErrAlreadyRated
	}

	s.rated = true
	s.stats.Reviewed++
	if r.Correct() {
		s.stats.Correct++
		s.stats.Streak++
		s.stats.Points += s.policy.Points(1)
		if s.stats.Streak > s.stats.BestStreak {
			s.stats.BestStreak = s.stats.Streak
		}
	} else {
		s.stats.Streak = 0
	}
	return nil
}
