package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/conorfennell/flipdeck/internal/audio"
	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/scoring"
)

var (
	ErrSubmissionInFlight = errors.New("rating submission already in flight")
	ErrInvalidPhase       = errors.New("operation not allowed in current phase")
	ErrClosed             = errors.New("review controller closed")
	ErrTimeout            = errors.New("card source timed out")
)

// CardSource hands out due cards and accepts review outcomes. Scheduling is
// the source's business.
type CardSource interface {
	FetchDueCards(ctx context.Context, learnerID string, limit int) ([]domain.Flashcard, error)
	SubmitRating(ctx context.Context, learnerID, cardID string, rating domain.Rating) error
}

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseEmpty
	PhaseActive
	PhaseSubmitting
	PhaseFeedback
	PhaseComplete
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseEmpty:
		return "empty"
	case PhaseActive:
		return "active"
	case PhaseSubmitting:
		return "submitting"
	case PhaseFeedback:
		return "feedback"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options configure a Controller. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	LearnerID     string
	Limit         int           // 20
	FetchTimeout  time.Duration // 10s
	SubmitTimeout time.Duration // 10s
	Retries       uint64        // 0
	RetryBase     time.Duration // 200ms
	Policy        scoring.Policy
	Thresholds    Thresholds
	Speaker       audio.Speaker
	Effects       *audio.Effects
	Logger        *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = 10 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 200 * time.Millisecond
	}
	if o.Policy == nil {
		o.Policy = scoring.Flat(10)
	}
	if o.Thresholds == (Thresholds{}) {
		o.Thresholds = DefaultThresholds()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Feedback describes the rating that was just accepted.
type Feedback struct {
	CardID  string
	Rating  domain.Rating
	Correct bool
	Last    bool
}

// Controller runs the review state machine for one session:
// loading -> empty | active | error, active -> submitting -> feedback | active,
// feedback -> active | complete. It is safe for concurrent use.
type Controller struct {
	src  CardSource
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	phase     Phase
	session   *Session
	fetchErr  error
	submitErr error
	feedback  *Feedback
	fetching  bool
	closed    bool
}

func NewController(src CardSource, opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		src:   src,
		opts:  opts,
		log:   opts.Logger.With("component", "review", "learner_id", opts.LearnerID),
		phase: PhaseLoading,
	}
}

// Start fetches the due cards. An empty list ends in PhaseEmpty; a failure
// ends in PhaseError without constructing a Session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session != nil || c.phase == PhaseEmpty || c.fetching {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	c.phase = PhaseLoading
	c.fetching = true
	c.fetchErr = nil
	c.mu.Unlock()

	var cards []domain.Flashcard
	err := c.call(ctx, c.opts.FetchTimeout, func(ctx context.Context) error {
		var err error
		cards, err = c.src.FetchDueCards(ctx, c.opts.LearnerID, c.opts.Limit)
		return err
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
	if c.closed {
		return ErrClosed
	}
	if err != nil {
		c.log.Warn("failed to fetch due cards", "error", err)
		c.phase = PhaseError
		c.fetchErr = err
		return fmt.Errorf("failed to fetch due cards: %w", err)
	}
	if len(cards) == 0 {
		c.log.Info("nothing due")
		c.phase = PhaseEmpty
		return nil
	}
	c.session = NewSession(cards, c.opts.Policy)
	c.phase = PhaseActive
	c.log.Info("review session started", "cards", len(cards))
	return nil
}

// Retry re-fetches after a failed Start.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()
	if phase != PhaseError {
		return ErrInvalidPhase
	}
	return c.Start(ctx)
}

// Flip toggles the current card. It is ignored outside PhaseActive.
func (c *Controller) Flip() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseActive || c.session == nil {
		return false
	}
	return c.session.Flip()
}

// Rate submits a rating for the current card. While a submission is
// outstanding further calls return ErrSubmissionInFlight and change
// nothing. On failure the session is left as it was so the card can be
// rated again.
func (c *Controller) Rate(ctx context.Context, r domain.Rating) (Feedback, error) {
	if !r.Valid() {
		return Feedback{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(r))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Feedback{}, ErrClosed
	}
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return Feedback{}, ErrSubmissionInFlight
	}
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return Feedback{}, ErrInvalidPhase
	}
	card := c.session.Current()
	if card == nil {
		c.mu.Unlock()
		return Feedback{}, ErrNoCurrentCard
	}
	c.phase = PhaseSubmitting
	c.session.pending = true
	c.submitErr = nil
	c.mu.Unlock()

	err := c.call(ctx, c.opts.SubmitTimeout, func(ctx context.Context) error {
		return c.src.SubmitRating(ctx, c.opts.LearnerID, card.ID, r)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Feedback{}, ErrClosed
	}
	c.session.pending = false
	if err != nil {
		c.log.Warn("failed to submit rating", "card_id", card.ID, "rating", r, "error", err)
		c.phase = PhaseActive
		c.submitErr = err
		return Feedback{}, fmt.Errorf("failed to submit rating: %w", err)
	}
	if err := c.session.RecordOutcome(r); err != nil {
		c.phase = PhaseActive
		return Feedback{}, err
	}

	fb := Feedback{CardID: card.ID, Rating: r, Correct: r.Correct(), Last: c.session.IsLast()}
	c.feedback = &fb
	c.phase = PhaseFeedback
	if fb.Correct {
		c.opts.Effects.Play(ctx, audio.CueCorrect)
	} else {
		c.opts.Effects.Play(ctx, audio.CueIncorrect)
	}
	c.log.Debug("rating accepted", "card_id", card.ID, "rating", r, "streak", c.session.Stats().Streak)
	return fb, nil
}

// Continue leaves the feedback phase: on to the next card, or complete when
// the rated card was the last one.
func (c *Controller) Continue() (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.phase, ErrClosed
	}
	if c.phase != PhaseFeedback {
		return c.phase, ErrInvalidPhase
	}
	c.session.Advance()
	c.feedback = nil
	if c.session.Complete() {
		c.phase = PhaseComplete
		c.opts.Effects.Play(context.Background(), audio.CueComplete)
		st := c.session.Stats()
		c.log.Info("review session complete", "reviewed", st.Reviewed, "correct", st.Correct, "score", st.Score())
	} else {
		c.phase = PhaseActive
	}
	return c.phase, nil
}

// Speak plays the current card in the background. The returned channel
// yields the playback result and may be ignored; failures are only logged.
func (c *Controller) Speak(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	var card *domain.Flashcard
	if c.session != nil && !c.closed {
		card = c.session.Current()
	}
	c.mu.Unlock()

	if card == nil || c.opts.Speaker == nil {
		done <- audio.ErrNothingToPlay
		close(done)
		return done
	}

	go func() {
		defer close(done)
		err := c.opts.Speaker.Speak(ctx, audio.Utterance{Text: card.Spoken(), AudioRef: card.AudioRef})
		if err != nil {
			c.log.Debug("audio playback failed", "card_id", card.ID, "error", err)
		}
		done <- err
	}()
	return done
}

// Close tears the controller down. Results arriving afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// View is a point-in-time copy of the controller state for renderers.
type View struct {
	Phase       Phase
	Card        *domain.Flashcard
	Position    int // 1-based
	Total       int
	Flipped     bool
	Stats       Stats
	Score       int
	Feedback    *Feedback
	FetchError  string
	SubmitError string
	Summary     *Summary
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Phase: c.phase}
	if c.fetchErr != nil {
		v.FetchError = c.fetchErr.Error()
	}
	if c.submitErr != nil {
		v.SubmitError = c.submitErr.Error()
	}
	if c.feedback != nil {
		fb := *c.feedback
		v.Feedback = &fb
	}
	if c.session == nil {
		return v
	}
	v.Card = c.session.Current()
	v.Position = min(c.session.Index()+1, c.session.Len())
	v.Total = c.session.Len()
	v.Flipped = c.session.Flipped()
	v.Stats = c.session.Stats()
	v.Score = v.Stats.Score()
	if c.phase == PhaseComplete {
		s := Summarize(v.Stats, c.opts.Thresholds)
		v.Summary = &s
	}
	return v
}

// call runs op with a per-attempt timeout, retrying temporary failures with
// exponential backoff.
func (c *Controller) call(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	b := retry.WithMaxRetries(c.opts.Retries, retry.NewExponential(c.opts.RetryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		if temporary(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return err
}

func temporary(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
