// Package httpapi exposes the management API: bookmark listing proxied from
// linkding, per-bookmark event history, and manual task triggers.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/joshmcarthur/linkding-companion/dispatch"
	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/linkding"
)

// Options configures the server.
type Options struct {
	// Username and PasswordHash (bcrypt) guard every /api route with basic
	// auth. Both blank leaves the API open, for trusted-network deployments.
	Username     string
	PasswordHash string
	// Logger for request errors. Default: slog.Default().
	Logger *slog.Logger
}

// Server carries the API's collaborators.
type Server struct {
	linkding *linkding.Client
	events   *eventlog.Store
	queue    dispatch.Submitter
	opts     Options
	logger   *slog.Logger
}

// New creates a Server.
func New(client *linkding.Client, events *eventlog.Store, queue dispatch.Submitter, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		linkding: client,
		events:   events,
		queue:    queue,
		opts:     opts,
		logger:   logger.With("component", "httpapi"),
	}
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.opts.Username != "" && s.opts.PasswordHash != "" {
			r.Use(s.requireBasicAuth)
		}

		r.Get("/api/bookmarks", s.listBookmarks)
		r.Get("/api/bookmarks/{id}/events", s.listEvents)
		r.Post("/api/bookmarks/{id}/retag", s.trigger(dispatch.KindAutotag))
		r.Post("/api/bookmarks/{id}/search", s.trigger(dispatch.KindSearch))
		r.Post("/api/sync", func(w http.ResponseWriter, r *http.Request) {
			if err := s.queue.Submit(r.Context(), dispatch.KindSync, 0); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 202, map[string]string{"status": "submitted"})
		})
		r.Get("/api/stats", s.stats)
	})

	return r
}

func (s *Server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.opts.Username ||
			bcrypt.CompareHashAndPassword([]byte(s.opts.PasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="linkding-companion"`)
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// listBookmarks proxies one page of the linkding bookmark listing, passing
// limit, offset and q through.
func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	for _, key := range []string{"limit", "offset", "q"} {
		if v := r.URL.Query().Get(key); v != "" {
			params.Set(key, v)
		}
	}
	page, err := s.linkding.ListBookmarks(r.Context(), params)
	if err != nil {
		s.logger.Error("list bookmarks", "error", err)
		writeError(w, 502, err)
		return
	}
	writeJSON(w, 200, page)
}

type eventResponse struct {
	Action     eventlog.Action `json:"action"`
	OccurredAt time.Time       `json:"occurred_at"`
	Extra      json.RawMessage `json:"extra"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	id, err := bookmarkID(r)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	events, err := s.events.ListByBookmark(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{Action: e.Action, OccurredAt: e.OccurredAt, Extra: e.Extra})
	}
	writeJSON(w, 200, out)
}

// trigger submits a task kind for the bookmark in the URL. The task's own
// guards decide whether anything actually happens.
func (s *Server) trigger(kind dispatch.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bookmarkID(r)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		if err := s.queue.Submit(r.Context(), kind, id); err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 202, map[string]any{"status": "submitted", "kind": kind, "bookmark_id": id})
	}
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.events.CountByAction(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]any{"events": counts})
}

func bookmarkID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
