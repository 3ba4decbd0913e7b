// Package webapi exposes one triage store over a small JSON API.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/filehandler"
	"github.com/fpang/gallery-sweep/internal/prefs"
	"github.com/fpang/gallery-sweep/internal/resolve"
	"github.com/fpang/gallery-sweep/internal/triage"
)

// maxNotices bounds the notice queue between two state polls.
const maxNotices = 20

// FileSource maps asset ids to local files. The directory library
// implements it.
type FileSource interface {
	PathFor(id string) (string, error)
}

// NoticeQueue is a triage.Notifier that holds notices until the next state
// response drains them.
type NoticeQueue struct {
	mu      sync.Mutex
	notices []triage.Notice
}

func (q *NoticeQueue) Notify(n triage.Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices = append(q.notices, n)
	if len(q.notices) > maxNotices {
		q.notices = q.notices[len(q.notices)-maxNotices:]
	}
}

// Drain returns and clears the queued notices.
func (q *NoticeQueue) Drain() []triage.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	return out
}

// Server serves the API.
type Server struct {
	store   *triage.Store
	prefs   prefs.Store
	notices *NoticeQueue
	files   FileSource
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithNotices includes notices from q in state responses. q should also be
// the store's notifier.
func WithNotices(q *NoticeQueue) Option {
	return func(s *Server) { s.notices = q }
}

// WithFileSource lets /api/media stream local files.
func WithFileSource(f FileSource) Option {
	return func(s *Server) { s.files = f }
}

// New creates a Server for store. prefsStore may be nil, which disables the
// prefs endpoints.
func New(store *triage.Store, prefsStore prefs.Store, opts ...Option) *Server {
	s := &Server{store: store, prefs: prefsStore}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withLogging)
	r.Use(withSecurityHeaders)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Post("/load", s.handleLoad)
		r.Post("/mark", s.handleMark)
		r.Post("/advance", s.handleAdvance)
		r.Post("/retreat", s.handleRetreat)
		r.Post("/delete", s.handleDelete)
		r.Get("/prefs", s.handleGetPrefs)
		r.Put("/prefs", s.handlePutPrefs)
		r.Get("/media", s.handleMedia)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data: https:; media-src 'self' https:; style-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// --- JSON shapes ---

type assetJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	URI       string    `json:"uri"`
	SourceURI string    `json:"sourceUri"`
	Status    string    `json:"status"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
	SizeLabel string    `json:"sizeLabel"`
}

type noticeJSON struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type stateJSON struct {
	Current     *assetJSON   `json:"current"`
	Index       int          `json:"index"`
	Total       int          `json:"total"`
	Kept        int          `json:"kept"`
	Discarded   int          `json:"discarded"`
	Loading     bool         `json:"loading"`
	HasNextPage bool         `json:"hasNextPage"`
	Notices     []noticeJSON `json:"notices,omitempty"`
}

func toAssetJSON(a triage.Asset) *assetJSON {
	return &assetJSON{
		ID:        a.ID,
		Kind:      string(a.Kind),
		URI:       a.DisplayURI(),
		SourceURI: a.SourceURI,
		Status:    string(a.Status),
		Filename:  a.Filename,
		CreatedAt: a.CreatedAt,
		Size:      a.Size,
		SizeLabel: filehandler.FormatSize(a.Size),
	}
}

func (s *Server) state() stateJSON {
	snap := s.store.Snapshot()
	out := stateJSON{
		Index:       snap.CurrentIndex,
		Total:       snap.Total,
		Kept:        snap.Kept,
		Discarded:   snap.Discarded,
		Loading:     snap.IsLoading,
		HasNextPage: snap.HasNextPage,
	}
	if cur, ok := snap.Current(); ok {
		out.Current = toAssetJSON(cur)
	}
	if s.notices != nil {
		for _, n := range s.notices.Drain() {
			out.Notices = append(out.Notices, noticeJSON{Level: string(n.Level), Title: n.Title, Message: n.Message})
		}
	}
	return out
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Append bool `json:"append"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := s.store.LoadPage(r.Context(), req.Append); err != nil {
		storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := triage.ParseStatus(req.Status)
	if err != nil {
		httpError(w, http.StatusBadRequest, "status must be 'keep' or 'discard'")
		return
	}
	if _, ok := s.store.Get(req.ID); !ok {
		httpError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err := s.store.Mark(req.ID, status); err != nil {
		storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Advance(r.Context()); err != nil {
		storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request) {
	s.store.Retreat()
	respondJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.DeleteDiscarded(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":         res.Deleted,
		"nothingToDelete": res.NothingToDelete,
		"state":           s.state(),
	})
}

type prefsJSON struct {
	SuppressOnboarding bool `json:"suppressOnboarding"`
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		httpError(w, http.StatusNotFound, "preferences are not configured")
		return
	}
	v, err := s.prefs.Load(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load preferences")
		httpError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	respondJSON(w, http.StatusOK, prefsJSON{SuppressOnboarding: v})
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		httpError(w, http.StatusNotFound, "preferences are not configured")
		return
	}
	var req prefsJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.prefs.Save(r.Context(), req.SuppressOnboarding); err != nil {
		log.Error().Err(err).Msg("Failed to save preferences")
		httpError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// GET /api/media?id=...
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httpError(w, http.StatusBadRequest, "id is required")
		return
	}
	asset, ok := s.store.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "asset not found")
		return
	}

	if uri := asset.DisplayURI(); resolve.IsHTTPURI(uri) {
		http.Redirect(w, r, uri, http.StatusFound)
		return
	}
	if s.files == nil {
		httpError(w, http.StatusNotFound, "media not available")
		return
	}

	path, err := s.files.PathFor(id)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid id")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		httpError(w, http.StatusNotFound, "file not found")
		return
	}
	if mime, err := filehandler.GetMIMEType(filepath.Ext(path)); err == nil {
		w.Header().Set("Content-Type", mime)
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}

// --- Helpers ---

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, triage.ErrLoadInFlight):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, triage.ErrDeleteRefused):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, triage.ErrInvalidStatus):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		httpError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		log.Error().Err(err).Msg("Store operation failed")
		httpError(w, http.StatusBadGateway, "media library error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
