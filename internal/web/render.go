package web

import (
	"strings"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/review"
)

// face is the presentable form of a card, whatever its kind.
type face struct {
	Kind  string
	Front string
	Hint  string
	Back  string
	Notes []string
	Long  bool
}

type faceBuilder struct {
	f face
}

func (b *faceBuilder) Vocabulary(c domain.Vocabulary) {
	b.f = face{Kind: domain.KindVocabulary, Front: c.Term, Hint: c.Phonetic, Back: c.Translation}
	for _, n := range []string{c.PartOfSpeech, c.Gender} {
		if n != "" {
			b.f.Notes = append(b.f.Notes, n)
		}
	}
}

func (b *faceBuilder) Letter(c domain.Letter) {
	b.f = face{Kind: domain.KindLetter, Front: c.Glyph, Hint: c.Sound, Back: c.Name}
}

func (b *faceBuilder) Story(c domain.Story) {
	b.f = face{Kind: domain.KindStory, Front: c.Title, Back: c.Text, Long: true}
}

func (b *faceBuilder) Song(c domain.Song) {
	b.f = face{Kind: domain.KindSong, Front: c.Title, Back: c.Lyrics, Long: true}
}

// faceOf renders a card. Unknown kinds still show term and translation.
func faceOf(card domain.Flashcard) (*face, error) {
	content, err := card.Content()
	if err != nil {
		return &face{
			Kind:  strings.ToLower(card.Kind),
			Front: card.Term,
			Hint:  card.Phonetic,
			Back:  card.Translation,
		}, err
	}
	var b faceBuilder
	content.Accept(&b)
	return &b.f, nil
}

var ratings = []domain.Rating{domain.Again, domain.Hard, domain.Good, domain.Easy}

type stageData struct {
	HasSession      bool
	SourcesEnabled  bool
	View            review.View
	Face            *face
	Ratings         []domain.Rating
	FeedbackDelayMS int64
}
