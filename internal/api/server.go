// Package api exposes team lookups and match tickets over a JSON http api.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"dlstracker-backend/internal/authprovider"
	"dlstracker-backend/internal/components/assert"
	"dlstracker-backend/internal/components/chrono"
	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/resultcache"
	"dlstracker-backend/internal/tickets"
	"dlstracker-backend/internal/tracker"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// TeamCache is the part of resultcache.Cache the api uses.
type TeamCache interface {
	Get(ctx context.Context, id identity.TrackedIdentity) tracker.ScrapeResult
	Search(ctx context.Context, name string) (resultcache.Entry, bool, error)
	Count(ctx context.Context) (int, error)
}

// AuthProvider verifies credentials on behalf of the api.
//
// note: fault injection point
type AuthProvider interface {
	SignUp(ctx context.Context, params authprovider.SignUpParams) (authprovider.User, error)
	SignIn(ctx context.Context, email, password string) (authprovider.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	User(ctx context.Context, accessToken string) (authprovider.User, error)
}

type Server struct {
	teams   TeamCache
	tickets *tickets.Store
	auth    AuthProvider
	time    chrono.API
	tel     telemetry.API

	corsOrigins   []string
	secureCookies bool
}

type Option func(s *Server)

// WithAuthProvider mounts the account routes (/register, /login, ...).
func WithAuthProvider(auth AuthProvider) Option {
	return func(s *Server) {
		s.auth = auth
	}
}

func WithCorsOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithSecureCookies marks the session cookie Secure, use it when served over https.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) {
		s.secureCookies = secure
	}
}

func WithCustomTimeAPI(time chrono.API) Option {
	return func(s *Server) {
		s.time = time
	}
}

func NewServer(teams TeamCache, ticketStore *tickets.Store, tel telemetry.API, options ...Option) *Server {
	assert.NotNil(teams)
	assert.NotNil(ticketStore)
	assert.NotNil(tel)

	s := &Server{
		teams:       teams,
		tickets:     ticketStore,
		time:        chrono.NewStandardImpl(),
		tel:         telemetry.NewScopedAPI("api", tel),
		corsOrigins: []string{"*"},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug(
				"http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Handler builds the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/create-match", s.createMatch)
	r.Get("/team-info", s.teamInfo)
	r.Get("/match-result", s.matchResult)
	r.Get("/match-stats", s.matchStats)
	r.Post("/update-match-result", s.updateMatchResult)
	r.Get("/status", s.status)

	if s.auth != nil {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/protected", s.protected)
			r.Get("/user/stats", s.userStats)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}
