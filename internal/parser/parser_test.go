package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipdeck/internal/domain"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expected      domain.Flashcard
	}{
		{
			name:          "Term and meaning",
			input:         "T: gato\nM: cat",
			expectedCards: 1,
			expected:      domain.Flashcard{Term: "gato", Translation: "cat"},
		},
		{
			name: "All fields",
			input: `
T: perro
P: PEH-rroh
M: dog
S: noun
G: masculine
U: https://cdn.example/perro.mp3
K: Vocabulary
`,
			expectedCards: 1,
			expected: domain.Flashcard{
				Term:         "perro",
				Phonetic:     "PEH-rroh",
				Translation:  "dog",
				PartOfSpeech: "noun",
				Gender:       "masculine",
				AudioRef:     "https://cdn.example/perro.mp3",
				Kind:         "vocabulary",
			},
		},
		{
			name: "Multiline story text",
			input: `
T: La luna
K: story
M: The moon came out.
It was very round.
`,
			expectedCards: 1,
			expected: domain.Flashcard{
				Term:        "La luna",
				Kind:        "story",
				Translation: "The moon came out.\nIt was very round.",
			},
		},
		{
			name: "Two cards split by a new term",
			input: `
T: uno
M: one

T: dos
M: two
`,
			expectedCards: 2,
		},
		{
			name:          "Separator",
			input:         "T: sol\nM: sun\n---\nT: mar\nM: sea\n---\n",
			expectedCards: 2,
		},
		{
			name:          "Meaning without a term is dropped",
			input:         "M: orphan\n---\nT: casa\nM: house",
			expectedCards: 1,
			expected:      domain.Flashcard{Term: "casa", Translation: "house"},
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no cards.",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "T:agua\nM:water",
			expectedCards: 1,
			expected:      domain.Flashcard{Term: "agua", Translation: "water"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			require.Len(t, cards, tc.expectedCards)

			if tc.expectedCards == 1 {
				assert.Equal(t, tc.expected, cards[0])
			}
		})
	}
}

func TestParseLongLines(t *testing.T) {
	lyrics := strings.Repeat("la ", 70*1024/3)
	cards, err := Parse(strings.NewReader("T: la canción\nK: song\nM: " + lyrics + "\n"))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, strings.TrimSpace(lyrics), cards[0].Translation)

	_, err = Parse(strings.NewReader("T: demasiado\nM: " + strings.Repeat("x", maxLineSize+1) + "\n"))
	assert.Error(t, err)
}
