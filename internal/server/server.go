// Package server exposes the content workflows and image generation over
// HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/social-studio/internal/extract"
	"github.com/sells-group/social-studio/internal/imagegen"
	"github.com/sells-group/social-studio/internal/metrics"
	"github.com/sells-group/social-studio/internal/workflow"
)

const maxBodyBytes = 1 << 20

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	workflows   workflow.Runner
	images      imagegen.Requester
	metrics     *metrics.Metrics
	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics instruments every route and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCORSOrigins restricts cross-origin requests. The default allows all.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// New creates a Server.
func New(workflows workflow.Runner, images imagegen.Requester, opts ...Option) *Server {
	s := &Server{
		workflows:   workflows,
		images:      images,
		corsOrigins: []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(s.metrics.Middleware)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "API is working"})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	for _, cr := range contentRoutes {
		r.Post(cr.path, s.handleContent(cr))
	}
	r.Post("/generate_image", s.handleImage(imagegen.AspectSquare))
	r.Post("/generate_image_yt", s.handleImage(imagegen.AspectLandscape))

	return r
}

// NewHTTPServer wraps the handler with the configured timeouts.
func (s *Server) NewHTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

// renderRecord maps a record onto response keys. Fields missing from rename
// keep their own name.
func renderRecord(rec extract.Record, rename map[string]string) map[string]string {
	out := make(map[string]string, len(rec.Fields()))
	for _, name := range rec.Fields() {
		key := name
		if k, ok := rename[name]; ok {
			key = k
		}
		out[key] = rec.Get(name)
	}
	return out
}
