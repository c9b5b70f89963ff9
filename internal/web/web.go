package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"inkuinfo/internal/config"
	"inkuinfo/internal/format"
	"inkuinfo/internal/layout"
	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/model"
	"inkuinfo/internal/state"
)

// Refresher triggers an out-of-schedule poll.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Server exposes the current event list to renderers over HTTP.
type Server struct {
	cfg       *config.Config
	store     *state.Store
	formatter *format.Formatter
	refresher Refresher
	mux       *http.ServeMux
}

// NewServer constructs a new Server. refresher may be nil, in which case
// POST /api/refresh is not available.
func NewServer(cfg *config.Config, store *state.Store, formatter *format.Formatter, refresher Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		formatter: formatter,
		refresher: refresher,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="inkuinfo", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	if s.refresher != nil {
		s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// EventsResponse is the JSON response shape for /api/events.
type EventsResponse struct {
	UpdatedAt *time.Time `json:"updated_at"`
	Timezone  string     `json:"timezone"`
	Locale    string     `json:"locale"`
	Events    []EventDTO `json:"events"`
}

// EventDTO is a normalized event plus its display strings.
type EventDTO struct {
	model.Event
	LongDate        string `json:"long_date"`
	ShortDate       string `json:"short_date"`
	LocationDisplay string `json:"location_display"`
}

// BuildEventsResponse renders a snapshot the way /api/events serves it.
func BuildEventsResponse(snap *state.Snapshot, f *format.Formatter, locale string) EventsResponse {
	resp := EventsResponse{
		Timezone: f.Location().String(),
		Locale:   locale,
		Events:   make([]EventDTO, 0, len(snap.Events)),
	}
	if snap.Seq != 0 {
		at := snap.UpdatedAt
		resp.UpdatedAt = &at
	}
	for _, ev := range snap.Events {
		resp.Events = append(resp.Events, EventDTO{
			Event:           ev,
			LongDate:        f.LongDate(ev),
			ShortDate:       f.ShortDate(ev),
			LocationDisplay: f.FilterLocation(ev),
		})
	}
	return resp
}

// handleEvents returns the current snapshot. It never calls the calendar;
// until the first successful poll the list is empty and updated_at is null.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BuildEventsResponse(s.store.Snapshot(), s.formatter, s.cfg.Locale))
}

func (s *Server) handleLayout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, layout.Build(s.store.Snapshot(), s.formatter))
}

// handleRefresh polls the calendar now and returns the resulting events.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	s.handleEvents(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
