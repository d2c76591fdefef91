package httpserver

import (
	"encoding/json"
	"net/http"
	"time"
)

type componentStatus struct {
	Healthy      bool      `json:"healthy"`
	LastRun      time.Time `json:"lastRun"`
	LastError    string    `json:"lastError,omitempty"`
	LastLatency  string    `json:"lastLatency"`
	SuccessCount uint64    `json:"successCount"`
	ErrorCount   uint64    `json:"errorCount"`
}

type statusResponse struct {
	State      string                     `json:"state"`
	Uptime     string                     `json:"uptime"`
	StartTime  time.Time                  `json:"startTime"`
	UptimeSec  float64                    `json:"uptimeSeconds"`
	Components map[string]componentStatus `json:"components"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.appState.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.appState.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := s.appState.GetState()
	uptime := s.appState.GetUptime()
	startTime := s.appState.GetStartTime()

	components := make(map[string]componentStatus)
	for name, stats := range s.appState.GetAllStats() {
		components[name] = componentStatus{
			Healthy:      stats.Healthy,
			LastRun:      stats.LastRun,
			LastError:    stats.LastError,
			LastLatency:  stats.LastLatency.String(),
			SuccessCount: stats.SuccessCount,
			ErrorCount:   stats.ErrorCount,
		}
	}

	response := statusResponse{
		State:      string(state),
		Uptime:     uptime.String(),
		StartTime:  startTime,
		UptimeSec:  uptime.Seconds(),
		Components: components,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.ErrorContext(ctx, "failed to encode status response",
			"error", err,
		)
	}
}
