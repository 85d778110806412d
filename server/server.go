package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social_media_agent/auth"
	"social_media_agent/generator"
	"social_media_agent/metrics"
	"social_media_agent/store"
)

// GenerateTimeout bounds one generation request, covering every fallback attempt.
const GenerateTimeout = 3 * time.Minute

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Agent    *generator.Agent
	Accounts *store.Accounts
	History  store.History
	Tokens   *auth.Tokens
	Logger   *slog.Logger
}

type Server struct {
	agent    *generator.Agent
	accounts *store.Accounts
	history  store.History
	tokens   *auth.Tokens
	logger   *slog.Logger
	validate *validator.Validate
	store    *sessionStore
}

// sessionStore holds the live login sessions. A session exists from login
// until logout or token expiry; tokens whose session is gone are rejected.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	now      func() time.Time
}

type sessionEntry struct {
	sess    *generator.Session
	expires time.Time
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]sessionEntry), now: time.Now}
}

// create registers a session for a fresh login and evicts expired ones.
func (s *sessionStore) create(id auth.Identity, agent *generator.Agent) *generator.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for sid, e := range s.sessions {
		if !now.Before(e.expires) {
			delete(s.sessions, sid)
		}
	}
	sess := generator.NewSession(id.SessionID, id.Username, agent)
	s.sessions[id.SessionID] = sessionEntry{sess: sess, expires: id.ExpiresAt}
	return sess
}

// get returns the live session for sid; expired entries are removed.
func (s *sessionStore) get(sid string) (*generator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expires) {
		delete(s.sessions, sid)
		return nil, false
	}
	return e.sess, true
}

func (s *sessionStore) drop(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func New(d Deps) (*Server, error) {
	switch {
	case d.Agent == nil:
		return nil, errors.New("generator agent required")
	case d.Accounts == nil:
		return nil, errors.New("account store required")
	case d.History == nil:
		return nil, errors.New("history store required")
	case d.Tokens == nil:
		return nil, errors.New("token issuer required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:    d.Agent,
		accounts: d.Accounts,
		history:  d.History,
		tokens:   d.Tokens,
		logger:   logger,
		validate: validator.New(),
		store:    newStore(),
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.handleLogout)
			r.Post("/generate/{task}", s.handleGenerate)
			r.Get("/history", s.handleHistory)
			r.Get("/session", s.handleSession)
		})
	})
	return r
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
