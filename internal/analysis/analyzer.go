package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"phishguard/internal/features"
	"phishguard/internal/heuristics"
	"phishguard/internal/inference"
	"phishguard/internal/metrics"
	"phishguard/internal/repository"
	"phishguard/internal/scoring"
)

// Scan modes, used for metrics and history rows.
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// DefaultBatchWorkers bounds parallel extraction inside one batch.
const DefaultBatchWorkers = 16

// ScanRecorder persists finished scans.
type ScanRecorder interface {
	RecordScans(recs []repository.ScanRecord) ([]string, error)
}

// Analyzer runs the scoring pipeline. It keeps no per-call state.
type Analyzer struct {
	extractor *features.Extractor
	pageModel *inference.Adapter
	urlModel  *inference.Adapter
	rules     *heuristics.Engine
	history   ScanRecorder
	workers   int
	logger    *zap.Logger
}

type Option func(*Analyzer)

// WithHistory records every scored URL.
func WithHistory(h ScanRecorder) Option {
	return func(a *Analyzer) { a.history = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithBatchWorkers sets the extraction parallelism of AnalyzeBatch.
func WithBatchWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// NewAnalyzer wires the pipeline. pageModel scores single, page-aware scans;
// urlModel scores URL-only batches.
func NewAnalyzer(extractor *features.Extractor, pageModel, urlModel *inference.Adapter, rules *heuristics.Engine, opts ...Option) *Analyzer {
	a := &Analyzer{
		extractor: extractor,
		pageModel: pageModel,
		urlModel:  urlModel,
		rules:     rules,
		workers:   DefaultBatchWorkers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("analyzer")
	return a
}

// AnalyzeURL scores one URL with page features and heuristics. Extraction
// failures produce an error-shaped result; the returned error is reserved
// for classifier failures.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (RiskResult, error) {
	v, err := a.extractor.Extract(ctx, rawURL, features.SingleScanOptions())
	if err != nil {
		metrics.ScanErrorsTotal.WithLabelValues(ModeSingle, "input").Inc()
		return RiskResult{URL: rawURL, Error: err.Error()}, nil
	}

	preds, err := a.pageModel.Classify([]features.Vector{v})
	if err != nil {
		metrics.ScanErrorsTotal.WithLabelValues(ModeSingle, "classifier").Inc()
		a.logger.Error("classification failed", zap.String("url", rawURL), zap.Error(err))
		return RiskResult{}, fmt.Errorf("analyze %s: %w", rawURL, err)
	}
	pred := preds[0]

	verdict := a.rules.Evaluate(v)
	combined := scoring.Combine(verdict.Score, pred.Probability)

	res := RiskResult{
		URL:               rawURL,
		AIPrediction:      pred.Label,
		AIProbability:     pred.Probability,
		HeuristicScore:    verdict.Score,
		CombinedRiskScore: combined,
		RiskLevel:         scoring.LevelOf(combined),
		Reasons:           verdict.Reasons(),
		Features:          &v,
	}

	metrics.ScansTotal.WithLabelValues(ModeSingle).Inc()
	a.logger.Debug("url scored",
		zap.String("url", rawURL),
		zap.Float64("combined_risk_score", combined),
		zap.Int("heuristic_score", verdict.Score),
		zap.Float64("ai_probability", pred.Probability))

	a.record(ModeSingle, []RiskResult{res}, []features.Vector{v})
	return res, nil
}

// AnalyzeBatch scores up to MaxBatchSize URLs from their URL strings only.
// Heuristics are not computed, heuristic_score stays 0 and the combined
// score is the classifier probability scaled to 0-100.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, urls []string) (BatchResult, error) {
	if len(urls) == 0 {
		return BatchResult{}, ErrNoURLs
	}
	if len(urls) > MaxBatchSize {
		return BatchResult{}, fmt.Errorf("%w: got %d", ErrTooManyURLs, len(urls))
	}
	for i, u := range urls {
		if strings.TrimSpace(u) == "" {
			return BatchResult{}, &InputError{Index: i, URL: u, Err: features.ErrEmptyURL}
		}
	}

	vectors := make([]features.Vector, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, u := range urls {
		g.Go(func() error {
			v, err := a.extractor.Extract(gctx, u, features.BatchOptions())
			if err != nil {
				return &InputError{Index: i, URL: u, Err: err}
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ScanErrorsTotal.WithLabelValues(ModeBatch, "input").Inc()
		return BatchResult{}, err
	}

	preds, err := a.urlModel.Classify(vectors)
	if err != nil {
		metrics.ScanErrorsTotal.WithLabelValues(ModeBatch, "classifier").Inc()
		a.logger.Error("batch classification failed", zap.Int("count", len(urls)), zap.Error(err))
		return BatchResult{}, fmt.Errorf("analyze batch: %w", err)
	}

	out := BatchResult{Count: len(urls), Results: make([]RiskResult, len(urls))}
	for i, u := range urls {
		score := scoring.MLOnly(preds[i].Probability)
		level := scoring.LevelOf(score)
		out.Results[i] = RiskResult{
			URL:               u,
			AIPrediction:      preds[i].Label,
			AIProbability:     preds[i].Probability,
			HeuristicScore:    0,
			CombinedRiskScore: score,
			RiskLevel:         level,
		}
		out.Summary.add(level)
	}

	metrics.ScansTotal.WithLabelValues(ModeBatch).Add(float64(len(urls)))
	a.logger.Debug("batch scored", zap.Int("count", out.Count), zap.Int("high_risk", out.Summary.HighRisk))

	a.record(ModeBatch, out.Results, vectors)
	return out, nil
}

func (a *Analyzer) record(mode string, results []RiskResult, vectors []features.Vector) {
	if a.history == nil {
		return
	}
	recs := make([]repository.ScanRecord, len(results))
	for i, r := range results {
		recs[i] = repository.ScanRecord{
			URL:               r.URL,
			Domain:            vectors[i].Domain,
			Mode:              mode,
			AIPrediction:      r.AIPrediction,
			AIProbability:     r.AIProbability,
			HeuristicScore:    r.HeuristicScore,
			CombinedRiskScore: r.CombinedRiskScore,
			RiskLevel:         string(r.RiskLevel),
			Reasons:           r.Reasons,
		}
	}
	if _, err := a.history.RecordScans(recs); err != nil {
		a.logger.Warn("failed to record scan history", zap.String("mode", mode), zap.Int("count", len(recs)), zap.Error(err))
	}
}
