package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"rentflow-backend/internal/jobs"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/scheduler"

	"github.com/gorilla/mux"
)

// SweepScheduler is the part of the scheduler the ops endpoints need
type SweepScheduler interface {
	Trigger(ctx context.Context, name jobs.SweepName) (jobs.SweepReport, error)
	Entries() []scheduler.EntryInfo
	IsRunning() bool
}

// SweepHandler exposes manual sweep triggers and scheduler health
type SweepHandler struct {
	scheduler SweepScheduler
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(s SweepScheduler) *SweepHandler {
	return &SweepHandler{scheduler: s}
}

type sweepResponse struct {
	Sweep      jobs.SweepName `json:"sweep"`
	RunID      string         `json:"run_id,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	Candidates int            `json:"candidates"`
	Applied    int            `json:"applied"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

type healthResponse struct {
	Status           string                `json:"status"`
	SchedulerRunning bool                  `json:"scheduler_running"`
	Sweeps           []scheduler.EntryInfo `json:"sweeps"`
}

func newSweepResponse(report jobs.SweepReport, err error) sweepResponse {
	resp := sweepResponse{
		Sweep:      report.Sweep,
		RunID:      report.RunID,
		Candidates: report.Candidates,
		Applied:    report.Applied,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		DurationMS: report.Duration.Milliseconds(),
	}
	if !report.StartedAt.IsZero() {
		started := report.StartedAt
		resp.StartedAt = &started
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// HandleTrigger runs the sweep named in the URL and returns its report
func (h *SweepHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	name, err := jobs.ParseSweepName(mux.Vars(r)["sweep"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	report, err := h.scheduler.Trigger(r.Context(), name)
	status := http.StatusOK
	switch {
	case errors.Is(err, scheduler.ErrSweepInProgress):
		status = http.StatusConflict
	case errors.Is(err, jobs.ErrUnknownSweep):
		status = http.StatusNotFound
	case err != nil:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, newSweepResponse(report, err))
}

// HandleHealth reports whether the scheduler is running and when each sweep fires next
func (h *SweepHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "ok",
		SchedulerRunning: h.scheduler.IsRunning(),
		Sweeps:           h.scheduler.Entries(),
	}
	status := http.StatusOK
	if !resp.SchedulerRunning {
		resp.Status = "stopped"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// loggingMiddleware logs every ops request with its status and latency
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("Ops request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// NewRouter registers the ops HTTP endpoints
func NewRouter(s SweepScheduler) *mux.Router {
	handler := NewSweepHandler(s)
	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.HandleFunc("/ops/sweeps/{sweep}", handler.HandleTrigger).Methods(http.MethodPost)
	router.HandleFunc("/healthz", handler.HandleHealth).Methods(http.MethodGet)
	return router
}
