// Package cardhash derives stable card IDs from card content.
package cardhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/flipdeck/internal/domain"
)

// Normalize joins the identifying fields of a card after trimming,
// lowercasing and normalizing line endings in each.
func Normalize(card domain.Flashcard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	kind := card.Kind
	if kind == "" {
		kind = domain.KindVocabulary
	}

	// Newline-joined so "ab"+"c" and "a"+"bc" hash differently.
	return strings.Join([]string{
		normalizePart(card.Term),
		normalizePart(card.Translation),
		normalizePart(kind),
	}, "\n")
}

// Hash returns the hex SHA-256 of the normalized card.
func Hash(card domain.Flashcard) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}
