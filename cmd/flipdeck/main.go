package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/flipdeck/internal/audio"
	"github.com/conorfennell/flipdeck/internal/config"
	"github.com/conorfennell/flipdeck/internal/logger"
	"github.com/conorfennell/flipdeck/internal/remote"
	"github.com/conorfennell/flipdeck/internal/review"
	"github.com/conorfennell/flipdeck/internal/scoring"
	"github.com/conorfennell/flipdeck/internal/storage"
	decksync "github.com/conorfennell/flipdeck/internal/sync"
	"github.com/conorfennell/flipdeck/internal/web"
)

const usage = `usage: flipdeck <command> [flags]

commands:
  serve               run the web review app
  review              review due cards in the terminal
  quiz                play the multiple-choice game over due cards
  import <dir>        load markdown decks from dir into the local deck
  add-source <path>   register a local directory or git URL as a deck source
  sync                pull every source and reconcile the local deck
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "flipdeck:", err)
		os.Exit(1)
	}
}

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *storage.DB
	source  review.CardSource
	speaker audio.Speaker
	effects *audio.Effects
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}
	cmd, args := args[0], args[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	seed := fs.Int64("seed", 0, "quiz shuffle seed (0 picks one)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	log, err := logger.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "review":
		return reviewLoop(ctx, review.NewController(a.source, a.reviewOptions()), in, out)
	case "quiz":
		s := *seed
		if s == 0 {
			s = time.Now().UnixNano()
		}
		return a.quiz(ctx, rand.New(rand.NewSource(s)), in, out)
	case "import":
		if fs.NArg() != 1 {
			return errors.New("usage: flipdeck import <dir>")
		}
		return a.importDir(fs.Arg(0), out)
	case "add-source":
		if fs.NArg() != 1 {
			return errors.New("usage: flipdeck add-source <path|git-url>")
		}
		return a.addSource(fs.Arg(0), out)
	case "sync":
		return a.sync(ctx, out)
	}
	fmt.Fprint(out, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db, speaker: audio.Nop{}}

	switch cfg.Source {
	case config.SourceRemote:
		c, err := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.source = c
	default:
		a.source = storage.NewDeck(db, nil)
	}

	if cfg.Audio.TextCommand != "" || cfg.Audio.ClipCommand != "" {
		cmd, err := audio.NewCommand(cfg.Audio.TextCommand, cfg.Audio.ClipCommand)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.speaker = cmd
	}
	clips := make(map[audio.Cue]string, len(cfg.Audio.Clips))
	for cue, path := range cfg.Audio.Clips {
		clips[audio.Cue(cue)] = path
	}
	a.effects = audio.NewEffects(a.speaker, clips, log.With("component", "audio"))
	return a, nil
}

func (a *app) close() {
	a.effects.Close()
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
}

func (a *app) reviewOptions() review.Options {
	r := a.cfg.Review
	return review.Options{
		LearnerID:     a.cfg.Learner,
		Limit:         r.Limit,
		FetchTimeout:  r.FetchTimeout,
		SubmitTimeout: r.SubmitTimeout,
		Retries:       r.Retries,
		RetryBase:     r.RetryBase,
		Policy:        scoring.Flat(r.Points),
		Thresholds:    r.Thresholds,
		Speaker:       a.speaker,
		Effects:       a.effects,
		Logger:        a.log,
	}
}

func (a *app) syncer() *decksync.Syncer {
	return &decksync.Syncer{DB: a.db, ReposDir: a.cfg.ReposDir}
}

func (a *app) serve(ctx context.Context) error {
	srv, err := web.NewServer(web.Options{
		Source:        a.source,
		Review:        a.reviewOptions(),
		DB:            a.db,
		Syncer:        a.syncer(),
		FeedbackDelay: a.cfg.Web.FeedbackDelay,
		Logger:        a.log,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              a.cfg.Web.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "addr", a.cfg.Web.Addr, "source", a.cfg.Source)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (a *app) importDir(dir string, out io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	id, err := decksync.AddSource(a.db, abs)
	if err != nil {
		return err
	}
	res := a.syncer().Reconcile(id, abs)
	fmt.Fprintf(out, "Found %d cards, %d removed, %d errors.\n", res.Parsed, res.Orphaned, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(out, "- %s\n", e)
	}
	return nil
}

func (a *app) addSource(path string, out io.Writer) error {
	if decksync.SourceType(path) == decksync.SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}
	id, err := decksync.AddSource(a.db, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Source %d: %s\n", id, path)
	return nil
}

func (a *app) sync(ctx context.Context, out io.Writer) error {
	results, err := a.syncer().Run(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, r := range results {
		status := "ok"
		if err := r.Err(); err != nil {
			status = err.Error()
			failed++
		}
		fmt.Fprintf(out, "%s: %d cards, %d removed (%s)\n", r.Path, r.Parsed, r.Orphaned, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed to sync", failed, len(results))
	}
	return nil
}

func (a *app) quiz(ctx context.Context, rng *rand.Rand, in io.Reader, out io.Writer) error {
	cards, err := a.source.FetchDueCards(ctx, a.cfg.Learner, a.cfg.Review.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due cards: %w", err)
	}
	return quizLoop(ctx, a.source, a.cfg.Learner, cards, a.cfg.Quiz, rng, in, out)
}
