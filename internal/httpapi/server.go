// Package httpapi exposes the coordinator's control surface over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/networkbuster/aidefense/internal/coordinator"
)

var startTime = time.Now()

type Server struct {
	coordinator *coordinator.Coordinator
	httpServer  *http.Server // Store server instance for graceful shutdown
}

type healthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

type manualResponseRequest struct {
	AlertID string `json:"alert_id"`
	Action  string `json:"action"`
}

func NewServer(c *coordinator.Coordinator) *Server {
	return &Server{coordinator: c}
}

// Handler returns the full route tree with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.routes())
}

func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Printf("HTTP Server listening on: %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	log.Printf("Stopping HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	log.Printf("HTTP server stopped successfully")
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/configuration", s.handleConfiguration)
	mux.HandleFunc("/manual-response", s.handleManualResponse)
	mux.HandleFunc("/activate-defense", s.handleActivate)
	mux.HandleFunc("/deactivate-defense", s.handleDeactivate)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, &healthResponse{
		Status:        "healthy",
		Service:       "aidefense",
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Timestamp:     time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.coordinator.GetStatus())
}

// handleAlerts serves the alert history. The window defaults to 24 hours
// and is adjustable via ?hours=N.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid hours parameter", http.StatusBadRequest)
			return
		}
		hours = parsed
	}

	alerts := s.coordinator.GetAlertHistory(time.Duration(hours) * time.Hour)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window_hours": hours,
		"count":        len(alerts),
		"alerts":       alerts,
	})
}

func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	configuration := s.coordinator.UpdateConfiguration(patch)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "updated",
		"configuration": configuration,
	})
}

func (s *Server) handleManualResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	var req manualResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AlertID == "" || req.Action == "" {
		http.Error(w, "alert_id and action are required", http.StatusBadRequest)
		return
	}

	record, err := s.coordinator.ManualResponse(r.Context(), req.AlertID, req.Action)
	if err != nil {
		if errors.Is(err, coordinator.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	if err := s.coordinator.Activate(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": s.coordinator.State()})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	if err := s.coordinator.Deactivate(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": s.coordinator.State()})
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
