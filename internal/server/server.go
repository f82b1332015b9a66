// Package server is the HTTP surface: the analysis form, its result page and a
// few operational endpoints.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quantdash/internal/collector"
	"quantdash/internal/metrics"
	"quantdash/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Analyzer runs analyses for the form submissions.
type Analyzer interface {
	AnalyzeTicker(ctx context.Context, raw string) model.Analysis
	ReadProfile(ctx context.Context, req model.ProfileRequest) model.Analysis
}

// CorpusReporter exposes the knowledge-corpus state.
type CorpusReporter interface {
	CorpusStatus(ctx context.Context, refresh bool) model.CorpusStatus
}

// Prober checks the upstream chart endpoint directly.
type Prober interface {
	ProbeChart(ctx context.Context, symbol string) collector.Probe
}

// Options configures the HTTP server.
type Options struct {
	Addr         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the gin engine and its dependencies.
type Server struct {
	opts    Options
	engine  *gin.Engine
	svc     Analyzer
	corpus  CorpusReporter
	prober  Prober
	metrics *metrics.Metrics
}

// New builds the router. corpus, prober and m may be nil.
func New(opts Options, svc Analyzer, corpus CorpusReporter, prober Prober, m *metrics.Metrics) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	s := &Server{
		opts:    opts,
		engine:  gin.New(),
		svc:     svc,
		corpus:  corpus,
		prober:  prober,
		metrics: m,
	}

	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
	s.engine.SetHTMLTemplate(tmpl)

	s.engine.Use(requestID(), accessLog(), observe(m), recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/analyze", s.handleAnalyze)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/debug/yahoo", s.handleDebugYahoo)
	s.engine.GET("/debug/corpus", s.handleDebugCorpus)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the router for embedding or testing.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] http server listening on %s", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[INFO] shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
