package domain

import "fmt"

const (
	KindVocabulary = "vocabulary"
	KindLetter     = "letter"
	KindStory      = "story"
	KindSong       = "song"
)

// Content is the presentation variant of a card. The set of variants is
// closed: only the types in this file implement it.
type Content interface {
	Accept(v ContentVisitor)
	isContent()
}

// ContentVisitor has one method per Content variant. Adding a variant adds a
// method here, so every renderer stops compiling until it handles it.
type ContentVisitor interface {
	Vocabulary(c Vocabulary)
	Letter(c Letter)
	Story(c Story)
	Song(c Song)
}

type Vocabulary struct {
	Term         string
	Phonetic     string
	Translation  string
	PartOfSpeech string
	Gender       string
	AudioRef     string
}

type Letter struct {
	Glyph    string
	Name     string
	Sound    string
	AudioRef string
}

type Story struct {
	Title    string
	Text     string
	AudioRef string
}

type Song struct {
	Title    string
	Lyrics   string
	AudioRef string
}

func (c Vocabulary) Accept(v ContentVisitor) { v.Vocabulary(c) }
func (c Letter) Accept(v ContentVisitor)     { v.Letter(c) }
func (c Story) Accept(v ContentVisitor)      { v.Story(c) }
func (c Song) Accept(v ContentVisitor)       { v.Song(c) }

func (Vocabulary) isContent() {}
func (Letter) isContent()     {}
func (Story) isContent()      {}
func (Song) isContent()       {}

// Content maps the card's kind onto its presentation variant.
// An empty kind is treated as vocabulary.
func (c Flashcard) Content() (Content, error) {
	switch c.Kind {
	case "", KindVocabulary:
		return Vocabulary{
			Term:         c.Term,
			Phonetic:     c.Phonetic,
			Translation:  c.Translation,
			PartOfSpeech: c.PartOfSpeech,
			Gender:       c.Gender,
			AudioRef:     c.AudioRef,
		}, nil
	case KindLetter:
		return Letter{Glyph: c.Term, Name: c.Translation, Sound: c.Phonetic, AudioRef: c.AudioRef}, nil
	case KindStory:
		return Story{Title: c.Term, Text: c.Translation, AudioRef: c.AudioRef}, nil
	case KindSong:
		return Song{Title: c.Term, Lyrics: c.Translation, AudioRef: c.AudioRef}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// Spoken returns the text a speaker should read for the card's front.
func (c Flashcard) Spoken() string {
	if c.Phonetic != "" && c.Kind == KindLetter {
		return c.Phonetic
	}
	return c.Term
}
