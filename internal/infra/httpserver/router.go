package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appai "github.com/bryanwahyu/repoguard/internal/application/ai"
	appscans "github.com/bryanwahyu/repoguard/internal/application/scans"
	domai "github.com/bryanwahyu/repoguard/internal/domain/ai"
	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/middleware"
)

type Router struct {
	scansSvc *appscans.Service
	aiSvc    *appai.Service
}

func NewRouter(scansSvc *appscans.Service, aiSvc *appai.Service) http.Handler {
	r := &Router{scansSvc: scansSvc, aiSvc: aiSvc}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/scans/repository", r.wrap(r.handleTriggerScan))
		rt.Get("/scans/latest", r.wrap(r.handleLatest))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Get("/scans/session/{session}/errors", r.wrap(r.handleSessionErrors))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Post("/ai/analyze", r.wrap(r.handleAIAnalyze))
		rt.Get("/ai/analyze", r.wrap(r.handleAIAnalyzeList))
		rt.Get("/ai/analyze/{id}", r.wrap(r.handleAIAnalyzeLatest))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type httpError struct {
	code int
	msg  string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &httpError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var he *httpError
			if errors.As(err, &he) {
				http.Error(w, he.msg, he.code)
				return
			}
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/{tenant}/scans/repository
// Body: {"repo_url": "...", "branch": "main", "github_token": "...",
//
//	"scan_types": ["sast","sca","dast"], "dast_url": "..."}
//
// The scan runs in the background; the response only acknowledges the queue.
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		return badRequest("%v", err)
	}

	var body struct {
		RepoURL     string   `json:"repo_url"`
		Branch      string   `json:"branch"`
		GithubToken string   `json:"github_token"`
		ScanTypes   []string `json:"scan_types"`
		DASTURL     string   `json:"dast_url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}

	if err := middleware.ValidateRepoURL(body.RepoURL); err != nil {
		return badRequest("%v", err)
	}
	if err := middleware.ValidateBranch(body.Branch); err != nil {
		return badRequest("%v", err)
	}
	if err := middleware.ValidateDASTURL(body.DASTURL); err != nil {
		return badRequest("%v", err)
	}

	sel := selectionFromTypes(body.ScanTypes)
	sel.DASTURL = body.DASTURL
	if !sel.SAST && !sel.SCA && !sel.DAST {
		return badRequest("scan_types must include at least one of sast, sca, dast")
	}

	cmd := appscans.ScanRepositoryCommand{
		TenantID:  tenant,
		RepoURL:   body.RepoURL,
		Branch:    body.Branch,
		Token:     body.GithubToken,
		Selection: sel,
	}

	// 🚀 Jalankan di background, biar jalan sampai selesai
	go func() {
		middleware.IncrementScans()
		middleware.IncrementScansRunning()
		defer middleware.DecrementScansRunning()

		result, err := r.scansSvc.RunUntilDone(cmd)
		if err != nil {
			log.Printf("background scan error tenant=%s repo=%s: %v", tenant, cmd.RepoURL, err)
			middleware.IncrementScansFailed()
			return
		}
		log.Printf("scan finished tenant=%s repo=%s types=%d", tenant, cmd.RepoURL, len(result.Scans))
	}()

	// 🔙 langsung balikin respons ke client
	resp := map[string]any{
		"status":     "queued",
		"tenant":     tenant,
		"repository": body.RepoURL,
		"branch":     body.Branch,
		"scan_types": body.ScanTypes,
		"message":    "scan started in background",
		"queuedAt":   time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

func selectionFromTypes(types []string) domain.Selection {
	var sel domain.Selection
	if len(types) == 0 {
		// default: full static coverage, no dynamic scan
		sel.SAST = true
		sel.SCA = true
		return sel
	}
	for _, t := range types {
		switch t {
		case "sast":
			sel.SAST = true
		case "sca":
			sel.SCA = true
		case "dast":
			sel.DAST = true
		}
	}
	return sel
}

// GET /v1/{tenant}/scans/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)

	list, err := r.scansSvc.Latest(req.Context(), tenant, limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return badRequest("%v", err)
	}

	scan, err := r.scansSvc.Get(req.Context(), tenant, domain.ScanID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(scan)
}

// GET /v1/{tenant}/scans/session/{session}/errors?limit=20
func (r *Router) handleSessionErrors(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	session := chi.URLParam(req, "session")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)

	list, err := r.scansSvc.ListErrors(req.Context(), tenant, session, limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	days = middleware.ValidateDays(days)

	summary, err := r.scansSvc.Summary(req.Context(), tenant, days)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}

// POST /v1/{tenant}/ai/analyze
// Body: {"scan_id": "<id>"}
// The server fetches the scan's artifact_url and runs the analysis on it.
func (r *Router) handleAIAnalyze(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return &httpError{code: http.StatusServiceUnavailable, msg: "ai analysis not configured"}
	}
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		ScanID string `json:"scan_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	if err := middleware.ValidateScanID(body.ScanID); err != nil {
		return badRequest("%v", err)
	}

	// Lookup scan to get artifact URL
	scan, err := r.scansSvc.Get(req.Context(), tenant, domain.ScanID(body.ScanID))
	if err != nil {
		return err
	}
	if scan == nil || scan.ArtifactURL == "" {
		return badRequest("artifact_url not found for scan_id: %s", body.ScanID)
	}

	a, err := r.aiSvc.AnalyzeAndStore(req.Context(), tenant, body.ScanID, scan.ArtifactURL)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(a)
}

// GET /v1/{tenant}/ai/analyze?page=&page_size=
func (r *Router) handleAIAnalyzeList(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return &httpError{code: http.StatusServiceUnavailable, msg: "ai analysis not configured"}
	}
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.aiSvc.ListAnalyses(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/ai/analyze/{id}
func (r *Router) handleAIAnalyzeLatest(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return &httpError{code: http.StatusServiceUnavailable, msg: "ai analysis not configured"}
	}
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return badRequest("%v", err)
	}

	a, err := r.aiSvc.LatestByScan(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	if a == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(a)
}
