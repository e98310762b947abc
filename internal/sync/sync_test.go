package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipdeck/internal/cardhash"
	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "deck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeDeck(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestReconcile(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "deck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	decks := t.TempDir()
	writeDeck(t, decks, "animals.md", "T: el gato\nM: the cat\n---\nT: el perro\nM: the dog\n")
	writeDeck(t, decks, "letters/abc.md", "T: Ñ\nP: enye\nK: letter\n")
	writeDeck(t, decks, "notes.txt", "T: ignored\nM: not a deck\n")

	sourceID, err := AddSource(db, decks)
	require.NoError(t, err)
	again, err := AddSource(db, decks)
	require.NoError(t, err)
	assert.Equal(t, sourceID, again, "sources are registered once")

	at := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	s := &Syncer{DB: db, ReposDir: t.TempDir(), Now: func() time.Time { return at }}

	res := s.Reconcile(sourceID, decks)
	require.NoError(t, res.Err())
	assert.Equal(t, 3, res.Parsed)
	assert.Zero(t, res.Orphaned)

	n, err := db.CountCards()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// removing a card from the deck file deletes it on the next pass
	writeDeck(t, decks, "animals.md", "T: el gato\nM: the cat\n")
	res = s.Reconcile(sourceID, decks)
	require.NoError(t, res.Err())
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 1, res.Orphaned)

	n, err = db.CountCards()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	src, err := db.FindSourceByPath(decks)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, at, src.LastScannedAt())
}

func TestReconcileKeepsCardsWhenAFileFails(t *testing.T) {
	db := openTestDB(t)
	decks := t.TempDir()
	writeDeck(t, decks, "animals.md", "T: el gato\nM: the cat\n")
	sourceID, err := AddSource(db, decks)
	require.NoError(t, err)

	s := &Syncer{DB: db, ReposDir: t.TempDir()}
	require.NoError(t, s.Reconcile(sourceID, decks).Err())

	cat := domain.Flashcard{Term: "el gato", Translation: "the cat"}
	deck := storage.NewDeck(db, nil)
	ctx := context.Background()
	require.NoError(t, deck.SubmitRating(ctx, "kid-1", cardhash.Hash(cat), domain.Good))

	// the card is still in the file, but the file no longer parses
	writeDeck(t, decks, "animals.md", "T: el gato\nM: the cat\n---\nT: la canción\nM: "+strings.Repeat("la ", 400*1024)+"\n")
	res := s.Reconcile(sourceID, decks)
	require.Error(t, res.Err())
	assert.Zero(t, res.Orphaned)

	n, err := db.CountCards()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	logs, err := deck.ReviewLogs(ctx, "kid-1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "review history is kept")
}

func TestReconcileSharedCardAcrossSources(t *testing.T) {
	db := openTestDB(t)
	first, second := t.TempDir(), t.TempDir()
	writeDeck(t, first, "a.md", "T: hola\nM: hello\n---\nT: adiós\nM: goodbye\n")
	writeDeck(t, second, "b.md", "T: hola\nM: hello\n")

	firstID, err := AddSource(db, first)
	require.NoError(t, err)
	secondID, err := AddSource(db, second)
	require.NoError(t, err)

	s := &Syncer{DB: db, ReposDir: t.TempDir()}
	require.NoError(t, s.Reconcile(firstID, first).Err())
	require.NoError(t, s.Reconcile(secondID, second).Err())

	writeDeck(t, first, "a.md", "T: adiós\nM: goodbye\n")
	res := s.Reconcile(firstID, first)
	require.NoError(t, res.Err())
	assert.Equal(t, 1, res.Orphaned)

	hola, err := db.FindCardByID(cardhash.Hash(domain.Flashcard{Term: "hola", Translation: "hello"}))
	require.NoError(t, err)
	assert.NotNil(t, hola, "the second source still lists it")

	require.NoError(t, db.DeleteSource(secondID))
	n, err := db.CountCards()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunContinuesPastFailingSource(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "deck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	missing := filepath.Join(t.TempDir(), "gone")
	_, err = db.InsertSource(missing, SourceLocal)
	require.NoError(t, err)

	decks := t.TempDir()
	writeDeck(t, decks, "deck.md", "T: hola\nM: hello\n")
	_, err = AddSource(db, decks)
	require.NoError(t, err)

	s := &Syncer{DB: db, ReposDir: t.TempDir()}
	results, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Error(t, results[0].Err())
	assert.NoError(t, results[1].Err())
	assert.Equal(t, 1, results[1].Parsed)
}

func TestSourceType(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{"/home/ana/decks", SourceLocal},
		{"./decks", SourceLocal},
		{"https://github.com/example/decks.git", SourceGit},
		{"https://github.com/example/decks", SourceGit},
		{"git@github.com:example/decks.git", SourceGit},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, SourceType(tc.path))
		})
	}
}

func TestGitURLToLocalPath(t *testing.T) {
	testCases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://github.com/example/decks.git", filepath.Join("/repos", "github.com", "example", "decks"), false},
		{"git@github.com:example/decks.git", filepath.Join("/repos", "github.com", "example", "decks"), false},
		{"not a url", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := gitURLToLocalPath("/repos", tc.url)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
