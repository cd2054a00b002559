package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"phishguard/internal/analysis"
	"phishguard/internal/metrics"
	"phishguard/internal/repository"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Scanner is the scoring pipeline behind the scan routes.
type Scanner interface {
	AnalyzeURL(ctx context.Context, url string) (analysis.RiskResult, error)
	AnalyzeBatch(ctx context.Context, urls []string) (analysis.BatchResult, error)
}

// HistoryReader serves the history and stats routes.
type HistoryReader interface {
	GetScan(id string) (*repository.ScanRecord, error)
	RecentScans(limit int) ([]repository.ScanRecord, error)
	TopRiskyDomains(minScore float64, limit int) ([]repository.DomainCount, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// APIKeys accepted in X-API-Key. Empty disables authentication.
	APIKeys      []string
	MaxBodyBytes int64
}

// Server is the HTTP API surface for PhishGuard.
type Server struct {
	cfg     Config
	scanner Scanner
	history HistoryReader
	router  chi.Router
	logger  *zap.Logger
}

// New builds the router. history may be nil (a nil interface, not a typed
// nil pointer), in which case the history routes answer 404.
func New(cfg Config, scanner Scanner, history HistoryReader, logger *zap.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		scanner: scanner,
		history: history,
		router:  chi.NewRouter(),
		logger:  logger.Named("http"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(accessLog(s.logger))
	r.Use(cors)
	r.Use(apiKeyAuth(s.cfg.APIKeys))
	r.Use(metrics.Middleware())
	r.Use(bodyLimit(s.cfg.MaxBodyBytes))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/scan", s.handleScanQuery)
	r.Post("/scan", s.handleScanBody)
	r.Post("/scan_batch", s.handleScanBatch)

	r.Get("/history", s.handleRecentScans)
	r.Get("/history/{id}", s.handleGetScan)
	r.Get("/stats/top-domains", s.handleTopDomains)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}
