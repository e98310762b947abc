package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/review"
	"github.com/conorfennell/flipdeck/internal/storage"
	decksync "github.com/conorfennell/flipdeck/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Options wire a Server. DB and Syncer are optional; without them the
// source management pages are not mounted. FeedbackDelay is how long the
// browser shows feedback before continuing; zero means 1.5s.
type Options struct {
	Source        review.CardSource
	Review        review.Options
	DB            *storage.DB
	Syncer        *decksync.Syncer
	FeedbackDelay time.Duration
	Logger        *slog.Logger
}

const defaultFeedbackDelay = 1500 * time.Millisecond

// Server holds the dependencies for the HTTP server.
type Server struct {
	source    review.CardSource
	review    review.Options
	db        *storage.DB
	syncer    *decksync.Syncer
	delay     time.Duration
	router    chi.Router
	templates *template.Template
	sessions  *registry
	log       *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(opts Options) (*Server, error) {
	if opts.Source == nil {
		return nil, errors.New("web: a card source is required")
	}
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := opts.FeedbackDelay
	if delay <= 0 {
		delay = defaultFeedbackDelay
	}

	s := &Server{
		source:    opts.Source,
		review:    opts.Review,
		db:        opts.DB,
		syncer:    opts.Syncer,
		delay:     delay,
		router:    chi.NewRouter(),
		templates: tpl,
		sessions:  newRegistry(),
		log:       logger.With("component", "web"),
	}
	if s.review.Logger == nil {
		s.review.Logger = logger
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close tears down every live review session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create sub-filesystem for static assets: %w", err)
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests(s.log))
	r.Use(recoverer(s.log))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/", s.handleIndex)

	r.Route("/session", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/", s.withSession(s.handleShow))
		r.Delete("/", s.handleTeardown)
		r.Post("/flip", s.withSession(s.handleFlip))
		r.Post("/rate/{rating}", s.withSession(s.handleRate))
		r.Post("/continue", s.withSession(s.handleContinue))
		r.Post("/retry", s.withSession(s.handleRetry))
		r.Post("/speak", s.withSession(s.handleSpeak))
	})

	if s.db != nil {
		r.Get("/sources", s.handleGetSources)
		r.Post("/sources", s.handlePostSource)
		r.Delete("/sources/{id}", s.handleDeleteSource)
		if s.syncer != nil {
			r.Post("/sync", s.handlePostSync)
		}
	}
	return nil
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, c *review.Controller)

// withSession resolves the caller's controller. Without one the start
// prompt is rendered instead.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.sessions.get(existingSessionID(r))
		if c == nil {
			s.renderStage(w, http.StatusOK, nil)
			return
		}
		h(w, r, c)
	}
}

// handleIndex renders the full page, resuming the caller's session if any.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(existingSessionID(r))
	s.render(w, http.StatusOK, "index", s.stage(c))
}

// handleStart replaces the caller's session with a fresh one and fetches
// its due cards. A failed fetch renders the retry prompt.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	opts := s.review
	if learner := r.PostFormValue("learner"); learner != "" {
		opts.LearnerID = learner
	}
	c := review.NewController(s.source, opts)
	s.sessions.put(id, c)

	if err := c.Start(r.Context()); err != nil && !errors.Is(err, review.ErrClosed) {
		s.log.Warn("review session failed to start", "session", id, "error", err)
	}
	s.renderStage(w, http.StatusOK, c)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request, c *review.Controller) {
	s.renderStage(w, http.StatusOK, c)
}

func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request) {
	if id := existingSessionID(r); id != "" {
		s.sessions.remove(id)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	s.renderStage(w, http.StatusOK, nil)
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request, c *review.Controller) {
	c.Flip()
	s.renderStage(w, http.StatusOK, c)
}

// handleRate submits a rating. Submission failures render inline on the
// card; a rating sent while another is in flight is ignored.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request, c *review.Controller) {
	rating, err := domain.ParseRating(chi.URLParam(r, "rating"))
	if err != nil {
		http.Error(w, "Invalid rating", http.StatusBadRequest)
		return
	}
	_, err = c.Rate(r.Context(), rating)
	s.renderStage(w, statusFor(err), c)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request, c *review.Controller) {
	_, err := c.Continue()
	s.renderStage(w, statusFor(err), c)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, c *review.Controller) {
	err := c.Retry(r.Context())
	if errors.Is(err, review.ErrInvalidPhase) {
		s.renderStage(w, http.StatusConflict, c)
		return
	}
	s.renderStage(w, http.StatusOK, c)
}

// handleSpeak starts playback and returns at once; playback outlives the request.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request, c *review.Controller) {
	c.Speak(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, review.ErrSubmissionInFlight),
		errors.Is(err, review.ErrInvalidPhase),
		errors.Is(err, review.ErrClosed):
		return http.StatusConflict
	}
	// Source failures are shown in the page itself.
	return http.StatusOK
}

func (s *Server) stage(c *review.Controller) stageData {
	data := stageData{
		SourcesEnabled:  s.db != nil,
		Ratings:         ratings,
		FeedbackDelayMS: s.delay.Milliseconds(),
	}
	if c == nil {
		return data
	}
	data.HasSession = true
	data.View = c.Snapshot()
	if data.View.Card != nil {
		f, err := faceOf(*data.View.Card)
		if err != nil {
			s.log.Warn("rendering card of unknown kind", "card_id", data.View.Card.ID, "error", err)
		}
		data.Face = f
	}
	return data
}

func (s *Server) renderStage(w http.ResponseWriter, status int, c *review.Controller) {
	s.render(w, status, "stage", s.stage(c))
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("failed to render template", "template", name, "error", err)
	}
}

// handleGetSources renders the sources management page.
func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	data, err := s.sourceData(nil)
	if err != nil {
		s.log.Error("failed to get sources", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "sources", data)
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := r.PostFormValue("path")
	if path == "" {
		http.Error(w, "Path cannot be empty", http.StatusBadRequest)
		return
	}
	if _, err := decksync.AddSource(s.db, path); err != nil {
		s.log.Error("failed to add source", "path", path, "error", err)
		http.Error(w, "Failed to add source", http.StatusInternalServerError)
		return
	}
	s.renderSourceList(w, nil)
}

// handleDeleteSource deletes a source and re-renders the source list.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid source ID", http.StatusBadRequest)
		return
	}
	if err := s.db.DeleteSource(id); err != nil {
		s.log.Error("failed to delete source", "source_id", id, "error", err)
		http.Error(w, "Failed to delete source", http.StatusInternalServerError)
		return
	}
	s.renderSourceList(w, nil)
}

// handlePostSync runs a sync in the foreground and re-renders the source list.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	results, err := s.syncer.Run(r.Context())
	if err != nil {
		s.log.Error("sync failed", "error", err)
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}
	s.renderSourceList(w, results)
}

func (s *Server) renderSourceList(w http.ResponseWriter, results []decksync.Result) {
	data, err := s.sourceData(results)
	if err != nil {
		s.log.Error("failed to get sources", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "source_list", data)
}

func (s *Server) sourceData(results []decksync.Result) (map[string]any, error) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"SourcesEnabled": true,
		"Sources":        sources,
		"SyncResults":    results,
	}, nil
}
