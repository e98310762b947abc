// Package quiz runs a multiple-choice game over a set of flashcards: each
// question shows a term and asks for its translation among a few options.
package quiz

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/scoring"
)

var (
	ErrNotEnoughCards = errors.New("quiz needs at least two cards with distinct translations")
	ErrGameOver       = errors.New("quiz is over")
	ErrQuestionDone   = errors.New("question already answered")
	ErrNoSuchOption   = errors.New("no such option")
)

// Config tunes a game. Zero values fall back to 4 options, 3 attempts and
// Ladder(10, 5, 3).
type Config struct {
	Options     int            `koanf:"options" validate:"omitempty,gte=2,lte=8"`
	MaxAttempts int            `koanf:"max_attempts" validate:"omitempty,gte=1"`
	Policy      scoring.Policy `koanf:"-"`
}

func (c *Config) setDefaults() {
	if c.Options == 0 {
		c.Options = 4
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.Policy == nil {
		c.Policy = scoring.Ladder(10, 5, 3)
	}
}

// Question is one term and its shuffled candidate translations.
type Question struct {
	Card     domain.Flashcard
	Options  []string
	Answer   int
	Attempts int
	Solved   bool
	Done     bool
	Points   int
}

// Rating maps the outcome to a review rating so quiz results can feed the
// scheduler: first try is Good, a later solve is Hard, a miss is Again.
func (q Question) Rating() domain.Rating {
	switch {
	case q.Solved && q.Attempts == 1:
		return domain.Good
	case q.Solved:
		return domain.Hard
	}
	return domain.Again
}

// Outcome describes the result of one pick.
type Outcome struct {
	Correct  bool
	Done     bool
	Attempts int
	Points   int
}

type Stats struct {
	Total      int
	Answered   int
	Solved     int
	FirstTry   int
	Streak     int
	BestStreak int
	Points     int
}

// Game is not safe for concurrent use.
type Game struct {
	cfg       Config
	questions []Question
	index     int
	stats     Stats
}

// New builds a game with one question per card that has a translation.
// rng drives option selection and order.
func New(cards []domain.Flashcard, cfg Config, rng *rand.Rand) (*Game, error) {
	cfg.setDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	var pool []string
	seen := make(map[string]bool)
	var usable []domain.Flashcard
	for _, c := range cards {
		t := strings.TrimSpace(c.Translation)
		if t == "" {
			continue
		}
		usable = append(usable, c)
		if key := strings.ToLower(t); !seen[key] {
			seen[key] = true
			pool = append(pool, t)
		}
	}
	if len(pool) < 2 {
		return nil, ErrNotEnoughCards
	}

	g := &Game{cfg: cfg}
	for _, c := range usable {
		g.questions = append(g.questions, buildQuestion(c, pool, cfg.Options, rng))
	}
	g.stats.Total = len(g.questions)
	return g, nil
}

func buildQuestion(card domain.Flashcard, pool []string, n int, rng *rand.Rand) Question {
	answer := strings.TrimSpace(card.Translation)
	options := []string{answer}
	for _, i := range rng.Perm(len(pool)) {
		if len(options) == n {
			break
		}
		if strings.EqualFold(pool[i], answer) {
			continue
		}
		options = append(options, pool[i])
	}
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	q := Question{Card: card, Options: options}
	for i, o := range options {
		if o == answer {
			q.Answer = i
		}
	}
	return q
}

// Current returns the question in play, nil once the game is over.
func (g *Game) Current() *Question {
	if g.index >= len(g.questions) {
		return nil
	}
	return &g.questions[g.index]
}

// Pick answers the current question with option i. A wrong pick uses up an
// attempt; the question ends on the right pick or when attempts run out.
func (g *Game) Pick(i int) (Outcome, error) {
	q := g.Current()
	if q == nil {
		return Outcome{}, ErrGameOver
	}
	if q.Done {
		return Outcome{}, ErrQuestionDone
	}
	if i < 0 || i >= len(q.Options) {
		return Outcome{}, ErrNoSuchOption
	}

	q.Attempts++
	if i == q.Answer {
		q.Solved = true
		q.Done = true
		q.Points = g.cfg.Policy.Points(q.Attempts)
	} else if q.Attempts >= g.cfg.MaxAttempts {
		q.Done = true
	}

	if q.Done {
		g.finish(q)
	}
	return Outcome{Correct: q.Solved, Done: q.Done, Attempts: q.Attempts, Points: q.Points}, nil
}

func (g *Game) finish(q *Question) {
	g.stats.Answered++
	g.stats.Points += q.Points
	if q.Solved {
		g.stats.Solved++
	}
	if q.Solved && q.Attempts == 1 {
		g.stats.FirstTry++
		g.stats.Streak++
		if g.stats.Streak > g.stats.BestStreak {
			g.stats.BestStreak = g.stats.Streak
		}
		return
	}
	g.stats.Streak = 0
}

// Next moves past a finished question. It reports whether another question
// is waiting.
func (g *Game) Next() bool {
	if q := g.Current(); q != nil && q.Done {
		g.index++
	}
	return g.Current() != nil
}

func (g *Game) Over() bool {
	return g.Current() == nil
}

func (g *Game) Stats() Stats {
	return g.stats
}

// Questions returns every question so far, answered or not.
func (g *Game) Questions() []Question {
	out := make([]Question, len(g.questions))
	copy(out, g.questions)
	return out
}
