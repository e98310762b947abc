// Package audio plays card pronunciations and feedback cues. Playback is
// best-effort: callers log failures and carry on.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

var ErrNothingToPlay = errors.New("nothing to play")

// Utterance is what to play: text to speak, a recorded clip, or both.
type Utterance struct {
	Text     string
	AudioRef string
}

// Speaker produces audible speech for an utterance.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) error
}

// Nop discards every utterance.
type Nop struct{}

func (Nop) Speak(context.Context, Utterance) error { return nil }

// Command runs external players: Text for speech synthesis and Clip for
// recorded audio. Arguments may contain the {text} and {ref} placeholders.
// Clip is preferred when the utterance carries an audio reference.
type Command struct {
	Text []string
	Clip []string
}

// NewCommand splits command lines such as "espeak -v es {text}" and
// "mpv --really-quiet {ref}". Either may be empty, not both.
func NewCommand(textLine, clipLine string) (*Command, error) {
	c := &Command{Text: strings.Fields(textLine), Clip: strings.Fields(clipLine)}
	if len(c.Text) == 0 && len(c.Clip) == 0 {
		return nil, fmt.Errorf("empty audio command")
	}
	return c, nil
}

// argv picks the player for u and expands the placeholders.
func (c *Command) argv(u Utterance) ([]string, error) {
	var tmpl []string
	switch {
	case u.AudioRef != "" && len(c.Clip) > 0:
		tmpl = c.Clip
	case u.Text != "" && len(c.Text) > 0:
		tmpl = c.Text
	default:
		return nil, ErrNothingToPlay
	}
	r := strings.NewReplacer("{text}", u.Text, "{ref}", u.AudioRef)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out, nil
}

func (c *Command) Speak(ctx context.Context, u Utterance) error {
	argv, err := c.argv(u)
	if err != nil {
		return err
	}
	if err := exec.CommandContext(ctx, argv[0], argv[1:]...).Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", argv[0], err)
	}
	return nil
}

// Cue is a short feedback sound.
type Cue string

const (
	CueCorrect   Cue = "correct"
	CueIncorrect Cue = "incorrect"
	CueComplete  Cue = "complete"
)

// Effects plays feedback cues in the background. It is constructed once per
// process and closed on shutdown; a nil *Effects is silent.
type Effects struct {
	speaker Speaker
	clips   map[Cue]string
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewEffects(speaker Speaker, clips map[Cue]string, logger *slog.Logger) *Effects {
	if logger == nil {
		logger = slog.Default()
	}
	c := make(map[Cue]string, len(clips))
	for k, v := range clips {
		if v != "" {
			c[k] = v
		}
	}
	return &Effects{speaker: speaker, clips: c, logger: logger}
}

// Play starts the clip for cue and returns immediately.
func (e *Effects) Play(ctx context.Context, cue Cue) {
	if e == nil || e.speaker == nil {
		return
	}
	ref, ok := e.clips[cue]
	if !ok {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if err := e.speaker.Speak(context.WithoutCancel(ctx), Utterance{AudioRef: ref}); err != nil {
			e.logger.Debug("sound effect failed", "cue", cue, "error", err)
		}
	}()
}

// Close stops accepting cues and waits for the ones already playing.
func (e *Effects) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}
