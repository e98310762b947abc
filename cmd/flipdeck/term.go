package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/quiz"
	"github.com/conorfennell/flipdeck/internal/review"
)

// textFace renders a card for the terminal.
type textFace struct {
	front, back string
}

func (t *textFace) Vocabulary(c domain.Vocabulary) {
	t.front = c.Term
	if c.Phonetic != "" {
		t.front += " [" + c.Phonetic + "]"
	}
	t.back = c.Translation
	if notes := strings.TrimSpace(c.PartOfSpeech + " " + c.Gender); notes != "" {
		t.back += " (" + notes + ")"
	}
}

func (t *textFace) Letter(c domain.Letter) {
	t.front = c.Glyph
	t.back = c.Name
	if c.Sound != "" {
		t.back += ", says " + c.Sound
	}
}

func (t *textFace) Story(c domain.Story) { t.front, t.back = c.Title, "\n"+c.Text }
func (t *textFace) Song(c domain.Song)   { t.front, t.back = c.Title, "\n"+c.Lyrics }

func renderCard(card domain.Flashcard) textFace {
	var t textFace
	content, err := card.Content()
	if err != nil {
		return textFace{front: card.Term, back: card.Translation}
	}
	content.Accept(&t)
	return t
}

// reviewLoop drives a controller from line input: enter flips, 1-4 (or the
// rating names) rate, s speaks, r retries a failed load and q quits.
func reviewLoop(ctx context.Context, c *review.Controller, in io.Reader, out io.Writer) error {
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		slog.Warn("review session failed to start", "error", err)
	}

	sc := bufio.NewScanner(in)
	for {
		v := c.Snapshot()
		switch v.Phase {
		case review.PhaseEmpty:
			fmt.Fprintln(out, "Nothing due. You're all caught up!")
			return nil
		case review.PhaseComplete:
			s := v.Summary
			fmt.Fprintf(out, "\n%s\nReviewed %d, correct %d, score %d%%, best streak %d, %d points.\n",
				s.Message, s.Reviewed, s.Correct, s.Score, s.BestStreak, s.Points)
			return nil
		case review.PhaseFeedback:
			if v.Feedback.Correct {
				fmt.Fprintln(out, "Nice!")
			} else {
				fmt.Fprintln(out, "Keep at it!")
			}
			if _, err := c.Continue(); err != nil {
				return err
			}
			continue
		case review.PhaseError:
			fmt.Fprintf(out, "Couldn't load your cards: %s\n[r]etry or [q]uit > ", v.FetchError)
		default:
			if v.Card == nil {
				return fmt.Errorf("no card to show in phase %s", v.Phase)
			}
			face := renderCard(*v.Card)
			fmt.Fprintf(out, "\n[%d/%d] score %d%% streak %d\n%s\n", v.Position, v.Total, v.Score, v.Stats.Streak, face.front)
			if v.Flipped {
				fmt.Fprintf(out, "  %s\n", face.back)
			}
			if v.SubmitError != "" {
				fmt.Fprintf(out, "Couldn't save your answer: %s. Try again.\n", v.SubmitError)
			}
			if v.Flipped {
				fmt.Fprint(out, "rate 1 again, 2 hard, 3 good, 4 easy > ")
			} else {
				fmt.Fprint(out, "enter to flip, s to listen > ")
			}
		}

		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.ToLower(strings.TrimSpace(sc.Text()))
		switch {
		case line == "q":
			return nil
		case line == "s":
			c.Speak(ctx)
		case line == "r" && v.Phase == review.PhaseError:
			_ = c.Retry(ctx)
		case line == "":
			c.Flip()
		default:
			rating, err := domain.ParseRating(line)
			if err != nil {
				fmt.Fprintf(out, "Unknown input %q\n", line)
				continue
			}
			if _, err := c.Rate(ctx, rating); errors.Is(err, review.ErrInvalidPhase) {
				fmt.Fprintln(out, "Nothing to rate right now.")
			}
		}
	}
}

// quizLoop plays one game. Each finished question is reported to src so the
// scheduler sees quiz results too.
func quizLoop(ctx context.Context, src review.CardSource, learnerID string, cards []domain.Flashcard, cfg quiz.Config, rng *rand.Rand, in io.Reader, out io.Writer) error {
	g, err := quiz.New(cards, cfg, rng)
	if errors.Is(err, quiz.ErrNotEnoughCards) {
		fmt.Fprintln(out, "Not enough due cards for a quiz.")
		return nil
	}
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(in)
	for !g.Over() {
		q := g.Current()
		fmt.Fprintf(out, "\nWhat does %q mean?\n", q.Card.Term)
		for i, o := range q.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, o)
		}
		fmt.Fprint(out, "> ")

		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "q" {
			break
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(out, "Pick 1-%d\n", len(q.Options))
			continue
		}
		res, err := g.Pick(n - 1)
		if errors.Is(err, quiz.ErrNoSuchOption) {
			fmt.Fprintf(out, "Pick 1-%d\n", len(q.Options))
			continue
		}
		if err != nil {
			return err
		}

		switch {
		case res.Correct:
			fmt.Fprintf(out, "Correct! +%d\n", res.Points)
		case res.Done:
			fmt.Fprintf(out, "The answer was %q.\n", q.Options[q.Answer])
		default:
			fmt.Fprintln(out, "Not quite, try again.")
		}
		if res.Done {
			if err := src.SubmitRating(ctx, learnerID, q.Card.ID, q.Rating()); err != nil {
				fmt.Fprintf(out, "(couldn't save result: %s)\n", err)
			}
			g.Next()
		}
	}

	st := g.Stats()
	fmt.Fprintf(out, "\nSolved %d of %d, %d on the first try, best streak %d, %d points.\n",
		st.Solved, st.Answered, st.FirstTry, st.BestStreak, st.Points)
	return nil
}
