package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/history"
	"github.com/spherical/article-analyzer/internal/observability"
	"github.com/spherical/article-analyzer/internal/service"
)

const (
	defaultMaxUploadBytes = 100 << 20
	maxJSONBodyBytes      = 20 << 20
)

// Handler serves the analysis endpoints.
type Handler struct {
	logger    *observability.Logger
	svc       *service.Service
	store     *history.Store
	maxUpload int64
}

// NewHandler creates a new analysis handler.
func NewHandler(logger *observability.Logger, svc *service.Service, store *history.Store, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Handler{
		logger:    logger,
		svc:       svc,
		store:     store,
		maxUpload: maxUpload,
	}
}

// StepDTO represents one catalog step.
type StepDTO struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Instruction string `json:"instruction"`
}

// AnalysisRequestDTO is the JSON body of POST /analyses.
type AnalysisRequestDTO struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// StepResultDTO represents one step outcome.
type StepResultDTO struct {
	StepID string `json:"step_id"`
	Label  string `json:"label"`
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
}

// AnalysisDTO represents a finished run.
type AnalysisDTO struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Model       string          `json:"model"`
	CreatedAt   string          `json:"created_at"`
	FailedSteps int             `json:"failed_steps"`
	Usage       domain.Usage    `json:"usage"`
	Results     []StepResultDTO `json:"results"`
}

// RunSummaryDTO represents a stored run without its results.
type RunSummaryDTO struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Model       string `json:"model"`
	CreatedAt   string `json:"created_at"`
	DurationMS  int64  `json:"duration_ms"`
	StepCount   int    `json:"step_count"`
	FailedSteps int    `json:"failed_steps"`
}

// ListSteps handles GET /steps.
func (h *Handler) ListSteps(w http.ResponseWriter, r *http.Request) {
	steps := h.svc.Catalog().Steps()
	out := make([]StepDTO, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepDTO{ID: s.ID, Label: s.Label, Instruction: s.Instruction})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"steps": out})
}

// CreateAnalysis handles POST /analyses. It accepts either a JSON body with
// the article text or a multipart upload with the PDF in field "file".
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var source, text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		source, text, err = h.extractUpload(w, r)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
	} else {
		var req AnalysisRequestDTO
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		source, text = req.Source, req.Text
	}

	h.logger.Info().
		Str("source", source).
		Int("text_length", len(text)).
		Msg("Starting analysis")

	run, err := h.svc.AnalyzeText(ctx, source, text, nil)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if ctx.Err() != nil {
		// The timeout middleware answers 504; the run stays in history.
		h.logger.Warn().
			Str("run_id", run.ID).
			Bool("recorded", run.Recorded).
			Err(ctx.Err()).
			Msg("Request ended before analysis finished")
		return
	}

	h.writeJSON(w, http.StatusOK, toAnalysisDTO(run))
}

// extractUpload stores the uploaded PDF in a temporary file and extracts its text.
func (h *Handler) extractUpload(w http.ResponseWriter, r *http.Request) (string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", domain.InvalidInputError("multipart field \"file\" is required", err)
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "article-*.pdf")
	if err != nil {
		return "", "", domain.IOError("failed to create temporary file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return "", "", domain.InvalidInputError("failed to read upload", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", domain.IOError("failed to write temporary file", err)
	}

	text, err := h.svc.ExtractText(r.Context(), tmp.Name())
	if err != nil {
		return "", "", err
	}
	return header.Filename, text, nil
}

// ListAnalyses handles GET /analyses.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusNotFound, "history is disabled", "")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	runs, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]RunSummaryDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunSummaryDTO{
			ID:          run.ID,
			Source:      run.Source,
			Model:       run.Model,
			CreatedAt:   run.CreatedAt.Format(time.RFC3339),
			DurationMS:  run.Duration.Milliseconds(),
			StepCount:   run.StepCount,
			FailedSteps: run.FailedCount,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"analyses": out})
}

// GetAnalysis handles GET /analyses/{id}.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toAnalysisDTO(service.FromHistory(run)))
}

// GetReport handles GET /analyses/{id}/report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, h.svc.RenderStored(run))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*history.Run, bool) {
	if h.store == nil {
		h.writeError(w, http.StatusNotFound, "history is disabled", "")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	run, err := h.store.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "analysis not found", id)
		return nil, false
	}
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return run, true
}

func toAnalysisDTO(run *service.Run) AnalysisDTO {
	entries := run.Results.Entries()
	results := make([]StepResultDTO, 0, len(entries))
	for _, e := range entries {
		results = append(results, StepResultDTO{
			StepID: e.StepID,
			Label:  e.Label,
			Text:   e.Text,
			Failed: e.Failed,
		})
	}
	return AnalysisDTO{
		ID:          run.ID,
		Source:      run.Source,
		Model:       run.Model,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		FailedSteps: run.Results.FailedCount(),
		Usage:       run.Results.TotalUsage(),
		Results:     results,
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsType(err, domain.ErrorTypeInvalidInput), domain.IsType(err, domain.ErrorTypeValidation):
		status = http.StatusBadRequest
	case domain.IsType(err, domain.ErrorTypeExtraction):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Request failed")
	}
	h.writeError(w, status, domain.FailureMessage(err), "")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}
