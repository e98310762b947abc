package audio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandArgv(t *testing.T) {
	c, err := NewCommand("espeak -v es {text}", "mpv --really-quiet {ref}")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		u        Utterance
		expected []string
		wantErr  error
	}{
		{
			name:     "text only",
			u:        Utterance{Text: "gato"},
			expected: []string{"espeak", "-v", "es", "gato"},
		},
		{
			name:     "clip preferred",
			u:        Utterance{Text: "gato", AudioRef: "https://cdn.example/gato.mp3"},
			expected: []string{"mpv", "--really-quiet", "https://cdn.example/gato.mp3"},
		},
		{
			name:    "empty",
			u:       Utterance{},
			wantErr: ErrNothingToPlay,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.argv(tc.u)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestCommandTextOnlyFallsBackForClips(t *testing.T) {
	c, err := NewCommand("say {text}", "")
	require.NoError(t, err)

	got, err := c.argv(Utterance{Text: "hola", AudioRef: "hola.mp3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"say", "hola"}, got)

	_, err = NewCommand("  ", "")
	assert.Error(t, err)
}

type recordingSpeaker struct {
	mu   sync.Mutex
	refs []string
	err  error
}

func (r *recordingSpeaker) Speak(_ context.Context, u Utterance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, u.AudioRef)
	return r.err
}

func TestEffects(t *testing.T) {
	sp := &recordingSpeaker{err: errors.New("no sound card")}
	fx := NewEffects(sp, map[Cue]string{CueCorrect: "ding.wav", CueIncorrect: ""}, nil)

	fx.Play(context.Background(), CueCorrect)
	fx.Play(context.Background(), CueIncorrect) // no clip configured
	require.NoError(t, fx.Close())

	fx.Play(context.Background(), CueCorrect) // closed

	assert.Equal(t, []string{"ding.wav"}, sp.refs)
}

func TestNilEffectsIsSilent(t *testing.T) {
	var fx *Effects
	fx.Play(context.Background(), CueComplete)
	assert.NoError(t, fx.Close())
}
