// Package updater pulls extra trusted domains from configured feeds.
package updater

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"phishguard/internal/config"
	"phishguard/internal/urllist"
)

const fetchTimeout = 15 * time.Second

// Run loads every source concurrently and returns the union of their
// domains. A failing source is logged and skipped.
func Run(ctx context.Context, sources []config.SourceConfig, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("updater")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		domains []string
	)
	client := &http.Client{Timeout: fetchTimeout}

	for _, src := range sources {
		wg.Add(1)
		go func(s config.SourceConfig) {
			defer wg.Done()
			got, err := processSource(ctx, client, s)
			if err != nil {
				logger.Warn("trusted source failed", zap.String("source", s.Name), zap.Error(err))
				return
			}
			logger.Info("trusted source loaded", zap.String("source", s.Name), zap.Int("domains", len(got)))

			mu.Lock()
			domains = append(domains, got...)
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	return domains
}

func processSource(ctx context.Context, client *http.Client, src config.SourceConfig) ([]string, error) {
	body, err := open(ctx, client, src.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return urllist.ReadAll(body, urllist.Source{Format: src.Format, TargetColumn: src.TargetColumn})
}

// open reads http(s) sources over the network and anything else as a file.
func open(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return resp.Body, nil
}
