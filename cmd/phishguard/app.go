package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"phishguard/internal/analysis"
	"phishguard/internal/config"
	"phishguard/internal/features"
	"phishguard/internal/fetch"
	"phishguard/internal/heuristics"
	"phishguard/internal/inference"
	"phishguard/internal/logger"
	"phishguard/internal/repository"
	"phishguard/internal/updater"
)

// app is the composition root shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	analyzer *analysis.Analyzer
	history  *repository.ScanDB

	pageModel *inference.Handle
	urlModel  *inference.Handle
	onnxReady bool
}

func newApp(ctx context.Context, configPath string, withHistory bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: log}

	if err := inference.InitONNX(cfg.Model.LibraryPath); err != nil {
		// Scans will fail with classifier unavailable; /health and
		// history keep working.
		log.Warn("onnx init failed", zap.Error(err))
	} else {
		a.onnxReady = true
	}

	a.pageModel = inference.NewHandle(inference.ONNXLoader(inference.ModelSpec{
		Name:           "page",
		Path:           cfg.Model.Page.Path,
		FeaturesPath:   cfg.Model.Page.FeaturesPath,
		DefaultColumns: features.PageModelColumns,
	}))
	a.urlModel = inference.NewHandle(inference.ONNXLoader(inference.ModelSpec{
		Name:           "url",
		Path:           cfg.Model.URL.Path,
		FeaturesPath:   cfg.Model.URL.FeaturesPath,
		DefaultColumns: features.URLModelColumns,
	}))

	fetcher := fetch.New(fetch.Config{
		Timeout:       time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		UserAgent:     cfg.Fetch.UserAgent,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		Burst:         cfg.Fetch.Burst,
	})
	extractor := features.NewExtractor(features.NewPageExtractor(fetcher, log))
	trusted := append([]string{}, heuristics.DefaultTrustedDomains...)
	trusted = append(trusted, cfg.Trust.Domains...)
	if len(cfg.Trust.Sources) > 0 {
		trusted = append(trusted, updater.Run(ctx, cfg.Trust.Sources, log)...)
	}
	rules := heuristics.NewEngine(heuristics.NewTrustedSet(trusted...))

	opts := []analysis.Option{
		analysis.WithLogger(log),
		analysis.WithBatchWorkers(cfg.Analysis.BatchWorkers),
	}
	if withHistory && cfg.History.Enabled {
		db := &repository.ScanDB{}
		if err := db.InitDB(cfg.History.Path); err != nil {
			a.Close()
			return nil, fmt.Errorf("could not initialize history database: %w", err)
		}
		a.history = db
		opts = append(opts, analysis.WithHistory(db))
		log.Info("scan history enabled", zap.String("path", cfg.History.Path))
	}

	a.analyzer = analysis.NewAnalyzer(
		extractor,
		inference.NewAdapter("page", a.pageModel),
		inference.NewAdapter("url", a.urlModel),
		rules,
		opts...,
	)
	return a, nil
}

func (a *app) Close() {
	a.pageModel.Close()
	a.urlModel.Close()
	if a.onnxReady {
		inference.CleanupONNX()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("closing history database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
