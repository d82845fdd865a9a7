package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shortsfeed/shortsfeed/internal/comment"
	"github.com/shortsfeed/shortsfeed/internal/database"
	"github.com/shortsfeed/shortsfeed/internal/device"
	"github.com/shortsfeed/shortsfeed/internal/docs"
	"github.com/shortsfeed/shortsfeed/internal/feed"
	"github.com/shortsfeed/shortsfeed/internal/geoip"
	"github.com/shortsfeed/shortsfeed/internal/httputil"
	"github.com/shortsfeed/shortsfeed/internal/ratelimit"
	"github.com/shortsfeed/shortsfeed/internal/session"
	"github.com/shortsfeed/shortsfeed/internal/shareid"
	"github.com/shortsfeed/shortsfeed/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Registry *session.Registry
	// Catalog is the shared discoverer, used where no device engine is needed.
	Catalog  feed.Discoverer
	Playback PlaybackURLs
	// DB enables comment threads.
	DB           database.DBTX
	Pinger       Pinger
	DeviceSecret string
	BaseURL      string
	// VideosDir serves local files under /<VideosPrefix>.
	VideosDir    string
	VideosPrefix string
	MediaOrigins []string
	EnableDocs   bool
}

type Server struct {
	router         chi.Router
	cfg            Config
	pinger         Pinger
	registry       *session.Registry
	playback       PlaybackURLs
	commentHandler *comment.Handler
	feedLimiter    *ratelimit.Limiter
	commentLimiter *ratelimit.Limiter
}

func New(cfg Config) *Server {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.VideosPrefix == "" {
		cfg.VideosPrefix = "videos/"
	}
	if cfg.Playback == nil {
		cfg.Playback = LocalURLs{}
	}
	if cfg.Registry == nil {
		cfg.Registry = session.NewRegistry(session.Config{Discoverer: cfg.Catalog})
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{BaseURL: cfg.BaseURL, MediaOrigins: cfg.MediaOrigins}))
	r.Use(device.Middleware(cfg.DeviceSecret, strings.HasPrefix(cfg.BaseURL, "https://")))
	r.Use(slogMiddleware)

	s := &Server{
		router:         r,
		cfg:            cfg,
		pinger:         cfg.Pinger,
		registry:       cfg.Registry,
		playback:       cfg.Playback,
		feedLimiter:    ratelimit.NewLimiter(5, 30, ratelimit.ByClientIP),
		commentLimiter: ratelimit.NewLimiter(0.5, 5, ratelimit.ByClientIP),
	}
	if cfg.DB != nil {
		s.commentHandler = comment.NewHandler(comment.NewStore(cfg.DB), s.knownShareID)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StartBackground runs housekeeping until ctx is done.
func (s *Server) StartBackground(ctx context.Context) {
	s.feedLimiter.StartCleanup(ctx)
	s.commentLimiter.StartCleanup(ctx)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.cfg.EnableDocs {
		apiDocs := docs.New(s.cfg.BaseURL)
		s.router.Get("/api/docs", apiDocs.Page)
		s.router.Get("/api/docs/openapi.yaml", apiDocs.Document)
	}

	s.router.Route("/api/feed", func(r chi.Router) {
		r.Get("/next", s.handleNext)
		r.Get("/stats", s.handleStats)
		r.With(s.feedLimiter.Middleware).Post("/watched", s.handleWatched)
		r.With(s.feedLimiter.Middleware).Post("/reset", s.handleReset)
	})
	s.router.Get("/api/videos", s.handleVideos)
	s.router.Get("/api/share/{id}", s.handleShare)

	if s.commentHandler != nil {
		s.router.Route("/api/comments", func(r chi.Router) {
			s.commentHandler.Routes(r, s.commentLimiter.Middleware)
		})
	}

	s.router.Get("/", s.handlePlayer)
	s.router.Handle("/static/*", http.StripPrefix("/static/", newAssetServer()))

	if s.cfg.VideosDir != "" {
		prefix := "/" + strings.Trim(s.cfg.VideosPrefix, "/") + "/"
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.cfg.VideosDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	n, ok, err := s.registry.KnownDevices(r.Context())
	if err != nil {
		slog.Warn("health: failed to count devices", "error", err)
	}
	if !ok || err != nil {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}
	_, _ = fmt.Fprintf(w, `{"status":"ok","devices":%d}`, n)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}

func (s *Server) knownShareID(ctx context.Context, id string) bool {
	if s.cfg.Catalog == nil {
		return false
	}
	refs, err := s.cfg.Catalog.Discover(ctx)
	if err != nil {
		return false
	}
	_, ok := shareid.Resolve(refs, id)
	return ok
}

func (s *Server) visit(r *http.Request) {
	s.registry.Visit(r.Context(), device.FromContext(r.Context()), r.UserAgent(), geoip.ClientIP(r))
}
