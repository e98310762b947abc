package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidRating = errors.New("invalid rating")
	ErrUnknownKind   = errors.New("unknown card kind")
)

// Flashcard is a single due card as handed out by a card source.
type Flashcard struct {
	ID           string `json:"id"`
	Term         string `json:"term"`
	Phonetic     string `json:"phonetic,omitempty"`
	Translation  string `json:"translation"`
	PartOfSpeech string `json:"part_of_speech,omitempty"`
	Gender       string `json:"gender,omitempty"`
	AudioRef     string `json:"audio_ref,omitempty"`
	Kind         string `json:"kind,omitempty"`
	IsNew        bool   `json:"is_new"`
}

// Rating is the learner's self-assessed recall quality for a card.
// 1: Again
// 2: Hard
// 3: Good
// 4: Easy
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

var ratingNames = map[Rating]string{
	Again: "again",
	Hard:  "hard",
	Good:  "good",
	Easy:  "easy",
}

// Valid reports whether r is one of the four rating levels.
func (r Rating) Valid() bool {
	return r >= Again && r <= Easy
}

// Correct reports whether the rating counts as a correct recall.
// Only the top two levels do.
func (r Rating) Correct() bool {
	return r >= Good && r <= Easy
}

func (r Rating) String() string {
	if name, ok := ratingNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rating(%d)", int(r))
}

// ParseRating accepts either the ordinal ("1".."4") or the name ("again".."easy").
func ParseRating(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		r := Rating(n)
		if !r.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidRating, n)
		}
		return r, nil
	}
	for r, name := range ratingNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// ReviewLog records a single review event for a card.
type ReviewLog struct {
	LearnerID string
	CardID    string
	Rating    Rating
	Timestamp time.Time
}
