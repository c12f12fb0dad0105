package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/glasskit/glassbox/internal/config"
	"github.com/glasskit/glassbox/internal/console"
	"github.com/glasskit/glassbox/internal/server/middleware"
	"github.com/glasskit/glassbox/internal/store/sqlite"
	"github.com/glasskit/glassbox/internal/track"
)

// Server is the HTTP server that wires all application routes and the
// instrumentation pipeline around them.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      *sqlite.Store
	sessions   *middleware.SessionManager
	renderer   *Renderer
	cfg        *config.Config
}

// New creates a Server with all routes wired. Application routes run under
// the recording middleware so every response carries its envelope; the
// debug console routes do not, so inspecting a request never records one.
func New(ctx context.Context, cfg *config.Config, store *sqlite.Store, webAssets fs.FS) (*Server, error) {
	renderer, err := NewRenderer(webAssets)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RealIP)
	router.Use(requestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	router.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	sessions := middleware.NewSessionManager(ctx, cfg.Session.CookieName, cfg.Session.IdleTTL, console.Options{
		SlowCall:        cfg.Debug.SlowCall,
		SlowQuery:       cfg.Debug.SlowQuery,
		HistoryCapacity: cfg.Debug.HistoryCapacity,
	})
	router.Use(sessions.Handler)

	s := &Server{
		router:   router,
		store:    store,
		sessions: sessions,
		renderer: renderer,
		cfg:      cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Application routes: recorded, with the envelope attached to every
	// response and delivered to the request's session console.
	router.Group(func(r chi.Router) {
		r.Use(track.Middleware(cfg.Debug.TruncateLimit, s.deliverEnvelope))
		registerAppRoutes(r, s)
	})

	// Console routes: unrecorded. The flow socket must not pass through
	// the body-buffering recorder, so it lives here too.
	router.Route("/_glassbox", func(r chi.Router) {
		registerConsoleRoutes(r, s)
	})

	// Static assets for both surfaces.
	router.Handle("/static/*", http.FileServer(http.FS(webAssets)))

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s, nil
}

// deliverEnvelope is the recording middleware's sink: each finished
// request lands in the console of the session that made it.
func (s *Server) deliverEnvelope(r *http.Request, env track.Envelope) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		log.Warn().Str("requestId", env.RequestID).Msg("envelope without session")
		return
	}
	sess.Console.Ingest(env)
}

// requestLogger logs one line per request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
