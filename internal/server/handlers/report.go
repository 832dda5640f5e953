// internal/server/handlers/report.go

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trendscope/internal/adapter/storage"
	"trendscope/internal/domain/trend"
)

// Runner starts a collection run in the background
type Runner interface {
	Trigger() error
}

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	store  trend.ReportStore
	runner Runner
}

// NewReportHandler creates a new report handler
func NewReportHandler(store trend.ReportStore, runner Runner) *ReportHandler {
	return &ReportHandler{
		store:  store,
		runner: runner,
	}
}

type tableView struct {
	Index   []string              `json:"index"`
	Columns []string              `json:"columns"`
	Values  map[string][]*float64 `json:"values"`
}

type reportView struct {
	trend.Summary
	Artifacts trend.Artifacts `json:"artifacts"`
	Table     tableView       `json:"table"`
}

func newReportView(r *trend.Report) reportView {
	view := reportView{
		Summary:   r.Summarize(),
		Artifacts: r.Artifacts,
		Table: tableView{
			Values: make(map[string][]*float64),
		},
	}

	if r.Table != nil {
		view.Table.Columns = r.Table.Columns
		for _, ts := range r.Table.Index {
			view.Table.Index = append(view.Table.Index, ts.Format(time.DateOnly))
		}
		for _, col := range r.Table.Columns {
			values := make([]*float64, 0, len(r.Table.Index))
			for _, v := range r.Table.Values[col] {
				values = append(values, nullable(v))
			}
			view.Table.Values[col] = values
		}
	}

	return view
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ListReports returns the most recent report summaries
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20 // Default limit
	}

	summaries, err := h.store.ListReports(r.Context(), limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list reports", err)
		return
	}
	if summaries == nil {
		summaries = []trend.Summary{}
	}

	respondWithJSON(w, http.StatusOK, summaries)
}

// GetLatestReport returns the most recent report
func (h *ReportHandler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.LatestReport(r.Context())
	if err != nil {
		h.reportError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newReportView(report))
}

// GetReport returns a specific report by ID
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.lookup(w, r)
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, newReportView(report))
}

// GetReportCSV returns the monthly table of a report as CSV
func (h *ReportHandler) GetReportCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.ID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := storage.WriteCSV(w, report.Table); err != nil {
		slog.Error("failed to write csv response", "report", report.ID, "error", err)
	}
}

// TriggerRun schedules a new collection run
func (h *ReportHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Trigger(); err != nil {
		respondWithError(w, http.StatusConflict, err.Error(), nil)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (h *ReportHandler) lookup(w http.ResponseWriter, r *http.Request) (*trend.Report, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing report ID", nil)
		return nil, false
	}

	report, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		h.reportError(w, err)
		return nil, false
	}
	return report, true
}

func (h *ReportHandler) reportError(w http.ResponseWriter, err error) {
	if errors.Is(err, trend.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Report not found", nil)
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Failed to get report", err)
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	if err != nil && code >= 500 {
		slog.Error("HTTP error", "code", code, "message", message, "error", err)
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
