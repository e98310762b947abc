package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/quiz"
	"github.com/conorfennell/flipdeck/internal/review"
)

type memSource struct {
	cards     []domain.Flashcard
	fetchErr  error
	submitted map[string]domain.Rating
}

func (m *memSource) FetchDueCards(ctx context.Context, learnerID string, limit int) ([]domain.Flashcard, error) {
	if m.fetchErr != nil {
		err := m.fetchErr
		m.fetchErr = nil
		return nil, err
	}
	return m.cards, nil
}

func (m *memSource) SubmitRating(ctx context.Context, learnerID, cardID string, rating domain.Rating) error {
	if m.submitted == nil {
		m.submitted = map[string]domain.Rating{}
	}
	m.submitted[cardID] = rating
	return nil
}

func deck() []domain.Flashcard {
	return []domain.Flashcard{
		{ID: "1", Term: "el gato", Translation: "the cat"},
		{ID: "2", Term: "Ñ", Phonetic: "enye", Translation: "letter enye", Kind: domain.KindLetter},
	}
}

func TestReviewLoop(t *testing.T) {
	src := &memSource{cards: deck()}
	c := review.NewController(src, review.Options{LearnerID: "kid-1"})

	var out bytes.Buffer
	in := strings.NewReader("\n3\n\ngood\n")
	require.NoError(t, reviewLoop(context.Background(), c, in, &out))

	text := out.String()
	assert.Contains(t, text, "[1/2]")
	assert.Contains(t, text, "the cat")
	assert.Contains(t, text, "letter enye, says enye")
	assert.Contains(t, text, "Amazing! You remembered almost everything.")
	assert.Contains(t, text, "score 100%")
	assert.Equal(t, domain.Good, src.submitted["2"])
}

func TestReviewLoopRetriesFailedLoad(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	src := &memSource{cards: deck(), fetchErr: errors.New("offline")}
	c := review.NewController(src, review.Options{LearnerID: "kid-1", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	var out bytes.Buffer
	require.NoError(t, reviewLoop(context.Background(), c, strings.NewReader("r\nq\n"), &out))
	assert.Contains(t, out.String(), "Couldn't load your cards: offline")
	assert.Contains(t, out.String(), "el gato")

	assert.Contains(t, logs.String(), "review session failed to start")
	assert.Contains(t, logs.String(), "offline")
}

func TestReviewLoopNothingDue(t *testing.T) {
	c := review.NewController(&memSource{}, review.Options{LearnerID: "kid-1"})
	var out bytes.Buffer
	require.NoError(t, reviewLoop(context.Background(), c, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Nothing due")
}

func TestQuizLoop(t *testing.T) {
	cards := []domain.Flashcard{
		{ID: "1", Term: "el gato", Translation: "the cat"},
		{ID: "2", Term: "el perro", Translation: "the dog"},
	}
	// with two options, the right one is whichever the wrong pick was not
	g, err := quiz.New(cards, quiz.Config{}, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	qs := g.Questions()
	answers := ""
	for _, q := range qs {
		answers += string(rune('1'+q.Answer)) + "\n"
	}

	src := &memSource{}
	var out bytes.Buffer
	err = quizLoop(context.Background(), src, "kid-1", cards, quiz.Config{}, rand.New(rand.NewSource(11)), strings.NewReader(answers), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Correct! +10")
	assert.Contains(t, out.String(), "Solved 2 of 2, 2 on the first try")
	assert.Equal(t, domain.Good, src.submitted["1"])
	assert.Equal(t, domain.Good, src.submitted["2"])
}

func TestQuizLoopNeedsCards(t *testing.T) {
	var out bytes.Buffer
	err := quizLoop(context.Background(), &memSource{}, "kid-1", nil, quiz.Config{}, nil, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Not enough due cards")
}
