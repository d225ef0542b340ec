package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/services/api/internal/config"
	"jobgrid/services/api/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Lister is the read side of the job posting store.
type Lister interface {
	List(ctx context.Context, skip, limit int) ([]models.JobPosting, error)
}

// StatsReader is the aggregation side of the job posting store.
type StatsReader interface {
	Overview(ctx context.Context) (models.StatsOverview, error)
	Counts(ctx context.Context, dim store.Dimension, limit int) ([]models.Count, error)
}

type Handler struct {
	logger *zap.Logger
	config *config.Config
	store  Lister
	stats  StatsReader
}

type detail struct {
	Detail string `json:"detail"`
}

func NewHandler(logger *zap.Logger, config *config.Config, lister Lister, stats StatsReader) *Handler {
	return &Handler{
		logger: logger,
		config: config,
		store:  lister,
		stats:  stats,
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/overview", h.StatsOverview).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/{dimension}", h.StatsCounts).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	return r
}

// GET /api/?skip=&limit=
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	skip, ok := h.queryInt(w, r, "skip", 0)
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit", h.config.DefaultLimit)
	if !ok {
		return
	}
	if limit == 0 || (h.config.MaxLimit > 0 && limit > h.config.MaxLimit) {
		h.writeJSON(w, http.StatusBadRequest, detail{Detail: "limit out of range"})
		return
	}

	jobs, err := h.store.List(r.Context(), skip, limit)
	if err != nil {
		h.logger.Error("failed to list job postings", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, detail{Detail: "failed to list job postings"})
		return
	}
	if len(jobs) == 0 {
		h.writeJSON(w, http.StatusNotFound, detail{Detail: "No jobs found"})
		return
	}

	h.writeJSON(w, http.StatusOK, jobs)
}

// GET /api/stats/overview
func (h *Handler) StatsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.stats.Overview(r.Context())
	if err != nil {
		h.logger.Error("failed to compute statistics overview", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, detail{Detail: "failed to compute statistics"})
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}

// GET /api/stats/{dimension}?limit=
func (h *Handler) StatsCounts(w http.ResponseWriter, r *http.Request) {
	dim := store.Dimension(mux.Vars(r)["dimension"])
	if !dim.Valid() {
		h.writeJSON(w, http.StatusNotFound, detail{Detail: "Unknown statistic"})
		return
	}
	limit, ok := h.queryInt(w, r, "limit", h.config.StatsLimit)
	if !ok {
		return
	}
	if limit == 0 || (h.config.MaxLimit > 0 && limit > h.config.MaxLimit) {
		h.writeJSON(w, http.StatusBadRequest, detail{Detail: "limit out of range"})
		return
	}

	counts, err := h.stats.Counts(r.Context(), dim, limit)
	if err != nil {
		h.logger.Error("failed to compute statistics",
			zap.String("dimension", string(dim)),
			zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrTypeInvalidInput) {
			status = http.StatusBadRequest
		}
		h.writeJSON(w, status, detail{Detail: "failed to compute statistics"})
		return
	}

	h.writeJSON(w, http.StatusOK, counts)
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.writeJSON(w, http.StatusBadRequest, detail{Detail: "invalid " + key})
		return 0, false
	}
	return n, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}
