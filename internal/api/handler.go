package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trend-reel/internal/history"
	"trend-reel/internal/platform/metrics"
)

// Handler exposes the HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/groups/{group}", func(r chi.Router) {
		r.Post("/updates", h.PostUpdate)
		r.Get("/snapshot", h.GetSnapshot)
		r.Post("/renders", h.PostRender)
	})
	r.Get("/jobs/{job_id}", h.GetJob)
}

// PostUpdate handles POST /groups/{group}/updates.
// Body: { "date": "2024-01-07", "items": [{ "title": "A", "views": 100 }] }.
func (h *Handler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid update body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	dates, err := h.svc.Update(r.Context(), group, req.Date, req.Items)
	if err != nil {
		h.writeError(w, "update failed", group, err)
		return
	}

	h.log.Info("history updated",
		slog.String("group", group),
		slog.String("date", req.Date),
		slog.Int("items", len(req.Items)))
	writeJSON(w, http.StatusOK, UpdateResponse{Group: group, Dates: dates})
}

// GetSnapshot handles GET /groups/{group}/snapshot.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	sum, err := h.svc.Summary(group)
	if err != nil {
		h.writeError(w, "snapshot failed", group, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// PostRender handles POST /groups/{group}/renders. Body: { "date": "2024-01-07" }.
// The render runs in the background; the response carries its job id.
func (h *Handler) PostRender(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid render body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	job, err := h.svc.StartRender(group, req.Date)
	if err != nil {
		h.writeError(w, "render request failed", group, err)
		return
	}

	h.log.Info("render queued", slog.String("group", group), slog.String("job_id", string(job.ID)))
	h.metrics.IncRenderJobs(group)
	writeJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /jobs/{job_id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.svc.Job(JobID(chi.URLParam(r, "job_id")))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) writeError(w http.ResponseWriter, msg, group string, err error) {
	switch {
	case errors.Is(err, ErrUnknownGroup):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrInvalidDate), errors.Is(err, history.ErrInvalidItem):
		w.WriteHeader(http.StatusBadRequest)
	default:
		h.log.Error(msg, slog.String("group", group), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
