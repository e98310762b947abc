package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/flipdeck/internal/domain"
)

type field int

const (
	none field = iota
	term
	phonetic
	translation
	partOfSpeech
	gender
	audioRef
	kind
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"T:", term},
	{"P:", phonetic},
	{"M:", translation},
	{"S:", partOfSpeech},
	{"G:", gender},
	{"U:", audioRef},
	{"K:", kind},
}

// maxLineSize bounds a single deck line. Story and song cards keep whole
// texts on one line.
const maxLineSize = 1 << 20

// ParseFile reads a deck file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Flashcard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck from r. Each card starts with a "T:" line; "---" or the
// next "T:" ends it. Lines without a prefix continue the previous field.
func Parse(r io.Reader) ([]domain.Flashcard, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var cards []domain.Flashcard
	var current domain.Flashcard
	var block []string
	currentField := none

	flushField := func() {
		if len(block) > 0 {
			set(&current, currentField, strings.TrimSpace(strings.Join(block, "\n")))
			block = nil
		}
	}
	finishCard := func() {
		flushField()
		if current.Term != "" {
			cards = append(cards, current)
		}
		current = domain.Flashcard{}
		currentField = none
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "---" {
			finishCard()
			continue
		}

		f, content, ok := match(line)
		if !ok {
			if currentField != none {
				block = append(block, line)
			}
			continue
		}

		flushField()
		if f == term && currentField != none {
			finishCard()
		}
		currentField = f
		block = append(block, content)
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func match(line string) (field, string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.field, strings.TrimPrefix(line[len(p.prefix):], " "), true
		}
	}
	return none, "", false
}

func set(card *domain.Flashcard, f field, value string) {
	switch f {
	case term:
		card.Term = value
	case phonetic:
		card.Phonetic = value
	case translation:
		card.Translation = value
	case partOfSpeech:
		card.PartOfSpeech = value
	case gender:
		card.Gender = value
	case audioRef:
		card.AudioRef = value
	case kind:
		card.Kind = strings.ToLower(value)
	}
}
