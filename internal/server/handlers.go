package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"phishguard/internal/analysis"
	"phishguard/internal/logger"
	"phishguard/internal/repository"
)

// Error codes of errorResponse.
const (
	codeBadRequest      = "bad_request"
	codeUnauthorized    = "unauthorized"
	codeTooLarge        = "request_too_large"
	codeTooManyURLs     = "too_many_urls"
	codeNotFound        = "not_found"
	codeHistoryDisabled = "history_disabled"
	codeInternal        = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type scanRequest struct {
	URL string `json:"url"`
}

type batchRequest struct {
	URLs []string `json:"urls"`
}

type historyResponse struct {
	Count int                     `json:"count"`
	Scans []repository.ScanRecord `json:"scans"`
}

type topDomainsResponse struct {
	MinScore float64                  `json:"min_score"`
	Domains  []repository.DomainCount `json:"domains"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScanQuery handles GET /scan?url=...
func (s *Server) handleScanQuery(w http.ResponseWriter, r *http.Request) {
	s.scan(w, r, r.URL.Query().Get("url"))
}

// handleScanBody handles POST /scan.
func (s *Server) handleScanBody(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.scan(w, r, req.URL)
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request, url string) {
	res, err := s.scanner.AnalyzeURL(r.Context(), url)
	if err != nil {
		logger.FromContext(r.Context()).Error("scan failed", zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	if res.Failed() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleScanBatch handles POST /scan_batch.
func (s *Server) handleScanBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := s.scanner.AnalyzeBatch(r.Context(), req.URLs)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, analysis.ErrTooManyURLs):
		writeError(w, http.StatusRequestEntityTooLarge, codeTooManyURLs, err.Error())
	case analysis.IsInputError(err):
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	default:
		logger.FromContext(r.Context()).Error("batch scan failed", zap.Int("count", len(req.URLs)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// handleRecentScans handles GET /history.
func (s *Server) handleRecentScans(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	limit, ok := intParam(w, r, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	scans, err := s.history.RecentScans(limit)
	if err != nil {
		s.internalError(w, r, "listing scans", err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Count: len(scans), Scans: scans})
}

// handleGetScan handles GET /history/{id}.
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	rec, err := s.history.GetScan(chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "scan not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "getting scan", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleTopDomains handles GET /stats/top-domains.
func (s *Server) handleTopDomains(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	minScore := 60.0
	if v := r.URL.Query().Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "min_score must be a number between 0 and 100")
			return
		}
		minScore = f
	}
	limit, ok := intParam(w, r, "limit", 10)
	if !ok {
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	domains, err := s.history.TopRiskyDomains(minScore, limit)
	if err != nil {
		s.internalError(w, r, "aggregating domains", err)
		return
	}
	writeJSON(w, http.StatusOK, topDomainsResponse{MinScore: minScore, Domains: domains})
}

func (s *Server) historyEnabled(w http.ResponseWriter) bool {
	if s.history == nil {
		writeError(w, http.StatusNotFound, codeHistoryDisabled, "scan history is disabled")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.FromContext(r.Context()).Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
