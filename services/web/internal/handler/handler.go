package handler

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"jobgrid/services/web/internal/client"
	"jobgrid/services/web/internal/config"
	"jobgrid/services/web/internal/grid"
	"jobgrid/services/web/internal/htmlgrid"
	"jobgrid/services/web/internal/page"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultLimit = 100
	gridPath     = "/jobs/grid"
)

//go:embed templates static
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "templates/grid.html"))

type Handler struct {
	logger *zap.Logger
	config *config.Config
	jobs   client.JobPostingClient
	source grid.Source
}

func NewHandler(logger *zap.Logger, config *config.Config, jobs client.JobPostingClient, source grid.Source) *Handler {
	return &Handler{
		logger: logger,
		config: config,
		jobs:   jobs,
		source: source,
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/jobs/data", h.JobData).Methods(http.MethodGet)
	r.HandleFunc(gridPath, h.JobGrid).Methods(http.MethodGet)
	r.HandleFunc("/jobs/stats", h.JobStats).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.FileServer(http.FS(assets))).Methods(http.MethodGet)
	return r
}

// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to " + h.config.AppName})
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// GET /jobs/data?skip=&limit=
func (h *Handler) JobData(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		http.Error(w, "invalid skip", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit == 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	postings, err := h.jobs.ListJobPostings(r.Context(), skip, limit)
	if err != nil {
		h.logger.Error("failed to list job postings",
			zap.Int("skip", skip),
			zap.Int("limit", limit),
			zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, postings)
}

// GET /jobs/grid
func (h *Handler) JobGrid(w http.ResponseWriter, r *http.Request) {
	doc := page.New(grid.ContainerID)
	view := htmlgrid.ParseView(gridPath, r.URL.Query())

	grid.NewPresenter(h.logger, h.source, htmlgrid.New(view)).Mount(r.Context(), doc)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTemplate.Execute(w, struct {
		Title       string
		ContainerID string
		Grid        template.HTML
	}{
		Title:       h.config.AppName,
		ContainerID: grid.ContainerID,
		Grid:        doc.HTML(grid.ContainerID),
	})
	if err != nil {
		h.logger.Error("failed to render grid page", zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
