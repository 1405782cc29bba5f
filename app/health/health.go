package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// Handler provides health check endpoints
type Handler struct {
	startTime time.Time
	version   string
	ready     atomic.Bool
	gatherer  prometheus.Gatherer
}

// NewHandler creates a new health check handler. gatherer backs /metrics.
func NewHandler(version string, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		startTime: time.Now(),
		version:   version,
		gatherer:  gatherer,
	}
}

// SetReady flips /ready. The bot sets it once the gateway session reports Ready.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Health returns the health status of the application
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	writeJSON(w, http.StatusOK, response)
}

// Ready returns 503 until the Discord session is ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Routes builds the mux serving /health, /ready and /metrics.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ready", h.Ready)
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Server runs the health listener until its context is canceled.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

func NewServer(addr string, h *Handler, logger *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      h.Routes(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listener failures other than a normal shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Health server listening", attr.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Health server failed", attr.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
