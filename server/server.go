// Package server is the HTTP adapter over the analysis pipeline. It keeps
// the routes and payloads of the mobile app's backend:
//
//	GET  /                     liveness message
//	POST /analyze-text         {"text": "..."}
//	POST /analyze-audio        multipart field "file"
//	POST /multimodal-analysis  multipart fields "text" and "file"
//	GET  /mood-history?limit=N newest entries first
//	GET  /healthz              model slot states
//	GET  /metrics              Prometheus
//
// Only malformed requests are rejected; model and decode problems come back
// as 200 responses carrying a warning.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/models"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/orchestrator"
)

// Analyzer is the pipeline surface served over HTTP.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (orchestrator.Result, error)
	AnalyzeAudio(ctx context.Context, data []byte) (orchestrator.Result, error)
	AnalyzeMultimodal(ctx context.Context, text string, data []byte) (orchestrator.Multimodal, error)
	History(ctx context.Context, limit int) ([]history.Entry, error)
}

// ModelStates reports the model registry slots for /healthz.
type ModelStates interface {
	States() map[string]models.State
}

// Options configures the adapter.
type Options struct {
	MaxUploadBytes  int64    // per request body; 25 MiB when zero
	CORSOrigins     []string // allow-all when empty
	RateLimitPerMin int      // per client IP; 0 disables
	Version         string
	Logger          logrus.FieldLogger
}

type Server struct {
	analyzer Analyzer
	states   ModelStates
	opts     Options
	log      logrus.FieldLogger
	validate *validator.Validate
}

func New(a Analyzer, states ModelStates, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Server{
		analyzer: a,
		states:   states,
		opts:     opts,
		log:      opts.Logger.WithField("component", "server"),
		validate: validator.New(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	}))
	r.Use(s.instrument)

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.RateLimitPerMin > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/analyze-text", s.analyzeText)
		r.Post("/analyze-audio", s.analyzeAudio)
		r.Post("/multimodal-analysis", s.multimodal)
		r.Get("/mood-history", s.moodHistory)
	})
	return r
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
