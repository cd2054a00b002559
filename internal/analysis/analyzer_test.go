package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"phishguard/internal/features"
	"phishguard/internal/heuristics"
	"phishguard/internal/inference"
	"phishguard/internal/repository"
	"phishguard/internal/scoring"
)

type fixedClassifier struct {
	order []string
	prob  float64
	calls int
	rows  int
}

func (f *fixedClassifier) FeatureOrder() []string { return f.order }

func (f *fixedClassifier) Predict(rows [][]float32) ([]inference.Prediction, error) {
	f.calls++
	f.rows += len(rows)
	label := 0
	if f.prob >= 0.5 {
		label = 1
	}
	out := make([]inference.Prediction, len(rows))
	for i := range out {
		out[i] = inference.Prediction{Label: label, Probability: f.prob}
	}
	return out, nil
}

type stubFetcher struct {
	html  string
	calls atomic.Int32
}

func (s *stubFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	s.calls.Add(1)
	return s.html, nil
}

type memoryRecorder struct {
	mu   sync.Mutex
	recs []repository.ScanRecord
}

func (m *memoryRecorder) RecordScans(recs []repository.ScanRecord) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(recs))
	for i := range recs {
		ids[i] = fmt.Sprintf("id-%d", len(m.recs)+i)
	}
	m.recs = append(m.recs, recs...)
	return ids, nil
}

type fixture struct {
	analyzer *Analyzer
	page     *fixedClassifier
	url      *fixedClassifier
	fetcher  *stubFetcher
}

func newFixture(t *testing.T, html string, prob float64, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		page:    &fixedClassifier{order: features.PageModelColumns, prob: prob},
		url:     &fixedClassifier{order: features.URLModelColumns, prob: prob},
		fetcher: &stubFetcher{html: html},
	}
	pageModel := inference.NewAdapter("page", inference.NewHandle(func() (inference.Classifier, error) { return f.page, nil }))
	urlModel := inference.NewAdapter("url", inference.NewHandle(func() (inference.Classifier, error) { return f.url, nil }))
	extractor := features.NewExtractor(features.NewPageExtractor(f.fetcher, nil))
	rules := heuristics.NewEngine(heuristics.NewTrustedSet(heuristics.DefaultTrustedDomains...))
	f.analyzer = NewAnalyzer(extractor, pageModel, urlModel, rules, opts...)
	return f
}

func TestAnalyzeURL_CombinesHeuristicsAndModel(t *testing.T) {
	f := newFixture(t, `<html><body><form><input type="password"></form></body></html>`, 0.5)

	res, err := f.analyzer.AnalyzeURL(context.Background(), "http://1.2.3.4/login")
	if err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}

	if res.HeuristicScore != 40 {
		t.Errorf("expected heuristic score 40, got %d", res.HeuristicScore)
	}
	// 0.4*0.4 + 0.5*0.6 = 0.46
	if res.CombinedRiskScore != 46 {
		t.Errorf("expected combined score 46, got %v", res.CombinedRiskScore)
	}
	if res.RiskLevel != scoring.LevelSuspicious {
		t.Errorf("expected suspicious, got %s", res.RiskLevel)
	}
	want := []string{"URL uses raw IP address", "Password input field detected"}
	if len(res.Reasons) != len(want) {
		t.Fatalf("expected reasons %v, got %v", want, res.Reasons)
	}
	for i := range want {
		if res.Reasons[i] != want[i] {
			t.Errorf("reason %d: got %q, want %q", i, res.Reasons[i], want[i])
		}
	}
	if res.Features == nil || res.Features.Domain != "1.2.3.4" {
		t.Errorf("expected features with domain 1.2.3.4, got %+v", res.Features)
	}
	if f.fetcher.calls.Load() != 1 || f.page.calls != 1 || f.url.calls != 0 {
		t.Errorf("unexpected call counts: fetch=%d page=%d url=%d", f.fetcher.calls.Load(), f.page.calls, f.url.calls)
	}
}

func TestAnalyzeURL_CleanURLHasEmptyReasons(t *testing.T) {
	f := newFixture(t, "<html><body>hello</body></html>", 0.1)

	res, err := f.analyzer.AnalyzeURL(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}
	if res.Reasons == nil || len(res.Reasons) != 0 {
		t.Errorf("expected empty, non-nil reasons, got %#v", res.Reasons)
	}
	if res.CombinedRiskScore != 6 || res.RiskLevel != scoring.LevelSafe {
		t.Errorf("expected 6/safe, got %v/%s", res.CombinedRiskScore, res.RiskLevel)
	}
}

func TestAnalyzeURL_MalformedURLIsErrorShaped(t *testing.T) {
	f := newFixture(t, "", 0.9)

	res, err := f.analyzer.AnalyzeURL(context.Background(), "http://[::1")
	if err != nil {
		t.Fatalf("expected no error for input problems, got %v", err)
	}
	if !res.Failed() {
		t.Fatal("expected an error-shaped result")
	}
	if f.page.calls != 0 {
		t.Errorf("classifier must not run on extraction failure, ran %d times", f.page.calls)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m["url"] != "http://[::1" || m["error"] == "" {
		t.Errorf("expected only url and error keys, got %s", data)
	}
}

func TestAnalyzeURL_ClassifierUnavailable(t *testing.T) {
	broken := inference.NewAdapter("page", inference.NewHandle(func() (inference.Classifier, error) {
		return nil, errors.New("model file missing")
	}))
	extractor := features.NewExtractor(nil)
	a := NewAnalyzer(extractor, broken, broken, heuristics.NewEngine(nil))

	_, err := a.AnalyzeURL(context.Background(), "http://example.com")
	if !errors.Is(err, inference.ErrClassifierUnavailable) {
		t.Errorf("expected ErrClassifierUnavailable, got %v", err)
	}
	if IsInputError(err) {
		t.Error("classifier failures are not input errors")
	}
}

func TestAnalyzeBatch_Limits(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want error
	}{
		{"Empty", 0, ErrNoURLs},
		{"OverLimit", MaxBatchSize + 1, ErrTooManyURLs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "", 0.5)
			urls := make([]string, tt.n)
			for i := range urls {
				urls[i] = fmt.Sprintf("http://site%d.com", i)
			}

			_, err := f.analyzer.AnalyzeBatch(context.Background(), urls)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !IsInputError(err) {
				t.Errorf("expected an input error, got %v", err)
			}
			if f.url.calls != 0 {
				t.Errorf("classifier ran %d times on a rejected batch", f.url.calls)
			}
		})
	}
}

func TestAnalyzeBatch_FullBatchOneClassifierCall(t *testing.T) {
	f := newFixture(t, "<form></form>", 0.75)

	urls := make([]string, MaxBatchSize)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://site%d.example.com/path?id=%d", i, i)
	}

	out, err := f.analyzer.AnalyzeBatch(context.Background(), urls)
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}
	if out.Count != MaxBatchSize || len(out.Results) != MaxBatchSize {
		t.Fatalf("expected %d results, got count=%d len=%d", MaxBatchSize, out.Count, len(out.Results))
	}
	if f.url.calls != 1 || f.url.rows != MaxBatchSize {
		t.Errorf("expected one classifier call over %d rows, got %d calls and %d rows", MaxBatchSize, f.url.calls, f.url.rows)
	}
	if f.fetcher.calls.Load() != 0 || f.page.calls != 0 {
		t.Errorf("batch must stay URL-only: fetch=%d page=%d", f.fetcher.calls.Load(), f.page.calls)
	}

	for i, r := range out.Results {
		if r.URL != urls[i] {
			t.Fatalf("result %d out of order: %s", i, r.URL)
		}
		if r.HeuristicScore != 0 || r.CombinedRiskScore != 75 || r.RiskLevel != scoring.LevelHigh {
			t.Errorf("result %d: unexpected scores %+v", i, r)
		}
		if r.Reasons != nil || r.Features != nil {
			t.Errorf("result %d: batch results carry no reasons or features", i)
		}
	}
	if out.Summary.HighRisk != MaxBatchSize {
		t.Errorf("expected summary of %d high risk, got %+v", MaxBatchSize, out.Summary)
	}
}

func TestAnalyzeBatch_EmptyEntryRejectsBatch(t *testing.T) {
	f := newFixture(t, "", 0.5)

	_, err := f.analyzer.AnalyzeBatch(context.Background(), []string{"http://a.com", "http://b.com", "http://c.com", "  "})
	var ie *InputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if ie.Index != 3 || !errors.Is(err, features.ErrEmptyURL) {
		t.Errorf("unexpected input error: %v", ie)
	}
	if f.url.calls != 0 {
		t.Errorf("classifier ran on a rejected batch")
	}
}

func TestAnalyzeBatch_UnparsableEntryRejectsBatch(t *testing.T) {
	f := newFixture(t, "", 0.5)

	_, err := f.analyzer.AnalyzeBatch(context.Background(), []string{"http://a.com", "http://[::1"})
	var ie *InputError
	if !errors.As(err, &ie) || ie.Index != 1 {
		t.Fatalf("expected InputError at index 1, got %v", err)
	}
}

func TestAnalyzeBatch_MalformedEscapeIsScored(t *testing.T) {
	f := newFixture(t, "", 0.5)

	urls := make([]string, MaxBatchSize)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://site%d.example.com/", i)
	}
	urls[137] = "http://promo.xyz/100%off"

	out, err := f.analyzer.AnalyzeBatch(context.Background(), urls)
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}
	if out.Count != MaxBatchSize {
		t.Fatalf("expected %d results, got %d", MaxBatchSize, out.Count)
	}
	if r := out.Results[137]; r.URL != urls[137] || r.Failed() || r.CombinedRiskScore != 50 {
		t.Errorf("unexpected result for malformed escape: %+v", r)
	}
}

func TestAnalyzeURL_MalformedEscapeIsScored(t *testing.T) {
	f := newFixture(t, "<html></html>", 0.1)

	res, err := f.analyzer.AnalyzeURL(context.Background(), "http://evil.com/100%zz")
	if err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}
	if res.Failed() || res.Features == nil || res.Features.Domain != "evil.com" {
		t.Errorf("expected a scored result for evil.com, got %+v", res)
	}
}

func TestAnalyzer_RecordsHistory(t *testing.T) {
	rec := &memoryRecorder{}
	f := newFixture(t, `<input type="password">`, 0.2, WithHistory(rec), WithBatchWorkers(2))

	if _, err := f.analyzer.AnalyzeURL(context.Background(), "https://login.evil.xyz"); err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}
	if _, err := f.analyzer.AnalyzeBatch(context.Background(), []string{"http://a.com", "http://b.org"}); err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}

	if len(rec.recs) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(rec.recs))
	}
	first := rec.recs[0]
	if first.Mode != ModeSingle || first.Domain != "evil.xyz" || first.RiskLevel == "" {
		t.Errorf("unexpected single-scan row: %+v", first)
	}
	if len(first.Reasons) == 0 {
		t.Error("single-scan row should keep its reasons")
	}
	if rec.recs[1].Mode != ModeBatch || rec.recs[2].Domain != "b.org" {
		t.Errorf("unexpected batch rows: %+v", rec.recs[1:])
	}
}

func TestAnalyzer_FailedScanNotRecorded(t *testing.T) {
	rec := &memoryRecorder{}
	f := newFixture(t, "", 0.2, WithHistory(rec))

	if _, err := f.analyzer.AnalyzeURL(context.Background(), ""); err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}
	if len(rec.recs) != 0 {
		t.Errorf("expected no history for an error-shaped result, got %d rows", len(rec.recs))
	}
}
