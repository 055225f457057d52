package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"statekv/internal/config"
	"statekv/internal/logging"
)

// StatsProvider supplies engine-level statistics for the stats endpoint.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// Server exposes executor and engine counters over HTTP for operators.
// This is observability only; state access itself has no wire protocol.
type Server struct {
	server  *http.Server
	metrics *ExecutorMetrics
	engine  StatsProvider
	logger  *logging.Logger
	started time.Time
}

func NewServer(cfg config.MonitoringConfig, metrics *ExecutorMetrics, engine StatsProvider, logger *logging.Logger) *Server {
	s := &Server{
		metrics: metrics,
		engine:  engine,
		logger:  logger,
		started: time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc(cfg.Path, s.handleStats).Methods("GET")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start serves until Stop is called. Blocking; run it on its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("Monitoring endpoint listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	return s.server.Close()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"uptime_seconds": time.Since(s.started).Seconds(),
		"executor":       s.metrics.Snapshot(),
	}
	if s.engine != nil {
		payload["engine"] = s.engine.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode stats response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
