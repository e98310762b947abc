package quiz

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/scoring"
)

func animals() []domain.Flashcard {
	return []domain.Flashcard{
		{ID: "1", Term: "el gato", Translation: "the cat"},
		{ID: "2", Term: "el perro", Translation: "the dog"},
		{ID: "3", Term: "el pez", Translation: "the fish"},
		{ID: "4", Term: "la vaca", Translation: "the cow"},
		{ID: "5", Term: "el pato", Translation: "the duck"},
	}
}

func wrong(q *Question) int {
	return (q.Answer + 1) % len(q.Options)
}

func TestNewBuildsDistinctOptions(t *testing.T) {
	g, err := New(animals(), Config{}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	for _, q := range g.Questions() {
		require.Len(t, q.Options, 4)
		assert.Equal(t, q.Card.Translation, q.Options[q.Answer])
		seen := map[string]bool{}
		for _, o := range q.Options {
			assert.False(t, seen[o], "duplicate option %q", o)
			seen[o] = true
		}
	}
	assert.Equal(t, 5, g.Stats().Total)
}

func TestNewCapsOptionsAtPool(t *testing.T) {
	cards := animals()[:2]
	g, err := New(cards, Config{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, g.Current().Options, 2)
}

func TestNewNeedsTwoTranslations(t *testing.T) {
	testCases := []struct {
		name  string
		cards []domain.Flashcard
	}{
		{"empty", nil},
		{"one card", animals()[:1]},
		{"same translation", []domain.Flashcard{
			{ID: "1", Term: "gato", Translation: "cat"},
			{ID: "2", Term: "micho", Translation: "Cat"},
		}},
		{"no translations", []domain.Flashcard{{ID: "1", Term: "gato"}, {ID: "2", Term: "perro"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cards, Config{}, nil)
			assert.ErrorIs(t, err, ErrNotEnoughCards)
		})
	}
}

func TestPickLadderPoints(t *testing.T) {
	testCases := []struct {
		name       string
		misses     int
		wantSolved bool
		wantPoints int
		wantRating domain.Rating
	}{
		{"first try", 0, true, 10, domain.Good},
		{"second try", 1, true, 5, domain.Hard},
		{"third try", 2, true, 3, domain.Hard},
		{"out of attempts", 3, false, 0, domain.Again},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := New(animals(), Config{}, rand.New(rand.NewSource(3)))
			require.NoError(t, err)
			q := g.Current()

			var out Outcome
			for i := 0; i < tc.misses; i++ {
				out, err = g.Pick(wrong(q))
				require.NoError(t, err)
				assert.False(t, out.Correct)
			}
			if !out.Done {
				out, err = g.Pick(q.Answer)
				require.NoError(t, err)
			}

			assert.True(t, out.Done)
			assert.Equal(t, tc.wantSolved, out.Correct)
			assert.Equal(t, tc.wantPoints, out.Points)
			assert.Equal(t, tc.wantRating, g.Current().Rating())
			assert.Equal(t, tc.wantPoints, g.Stats().Points)

			_, err = g.Pick(q.Answer)
			assert.ErrorIs(t, err, ErrQuestionDone)
		})
	}
}

func TestStreakCountsFirstTrySolves(t *testing.T) {
	g, err := New(animals(), Config{Policy: scoring.Flat(1)}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	// first, first, second, first, first
	plan := []int{0, 0, 1, 0, 0}
	for _, misses := range plan {
		q := g.Current()
		require.NotNil(t, q)
		for i := 0; i < misses; i++ {
			_, err := g.Pick(wrong(q))
			require.NoError(t, err)
		}
		_, err := g.Pick(q.Answer)
		require.NoError(t, err)
		g.Next()
	}

	st := g.Stats()
	assert.True(t, g.Over())
	assert.Equal(t, 5, st.Answered)
	assert.Equal(t, 5, st.Solved)
	assert.Equal(t, 4, st.FirstTry)
	assert.Equal(t, 2, st.Streak)
	assert.Equal(t, 2, st.BestStreak)
	assert.Equal(t, 5, st.Points)

	_, err = g.Pick(0)
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestNextWaitsForAnswer(t *testing.T) {
	g, err := New(animals(), Config{}, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	first := g.Current().Card.ID

	assert.True(t, g.Next())
	assert.Equal(t, first, g.Current().Card.ID, "unanswered question stays current")

	_, err = g.Pick(-1)
	assert.ErrorIs(t, err, ErrNoSuchOption)
}

func TestSameSeedSameGame(t *testing.T) {
	a, err := New(animals(), Config{}, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := New(animals(), Config{}, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a.Questions(), b.Questions())
}
