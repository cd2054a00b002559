package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phishguard/internal/engine"
	"phishguard/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scoring API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Server
			var history server.HistoryReader
			if a.history != nil {
				history = a.history
			}
			var cache *engine.VerdictCache
			if ttl := a.cfg.Analysis.CacheTTLSec; ttl > 0 {
				cache = engine.NewVerdictCache(time.Duration(ttl)*time.Second, a.cfg.Analysis.CacheSize)
			}
			scanner := engine.New(a.analyzer, cache)

			srv := server.New(server.Config{
				Addr:         cfg.Addr,
				ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
				APIKeys:      a.cfg.Auth.APIKeys,
				MaxBodyBytes: cfg.MaxBodyBytes,
			}, scanner, history, a.logger).HTTPServer()

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("Starting HTTP server",
					zap.String("addr", cfg.Addr),
					zap.Bool("auth", len(a.cfg.Auth.APIKeys) > 0),
					zap.Bool("history", a.history != nil))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return err
				}
			case <-cmd.Context().Done():
				a.logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("Error during shutdown", zap.Error(err))
				return err
			}
			a.logger.Info("Server stopped gracefully")
			return nil
		},
	}
}
