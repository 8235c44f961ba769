package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	dto "github.com/prometheus/client_model/go"

	"github.com/sawpanic/stresslens/internal/persistence"
)

// ErrorResponse is the standardized error envelope.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Database  *persistence.HealthCheck `json:"database,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	if s.health != nil {
		check := s.health.Health(r.Context())
		resp.Database = &check
		if !check.Healthy {
			resp.Status = "degraded"
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"Score persistence is not configured")
		return
	}

	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	records, err := s.scores.Latest(r.Context(), ticker)
	if errors.Is(err, persistence.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "ticker_not_scored",
			"No persisted scores for "+ticker)
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"scores": records,
	})
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"Score persistence is not configured")
		return
	}

	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, http.StatusBadRequest, "invalid_limit",
				"limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := s.scores.History(r.Context(), ticker, limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"history": records,
	})
}

// snapshotMetric is one labeled sample inside a family.
type snapshotMetric struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	Count  *uint64           `json:"count,omitempty"`
}

// snapshotFamily is one metric family in the JSON snapshot.
type snapshotFamily struct {
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Help    string           `json:"help,omitempty"`
	Metrics []snapshotMetric `json:"metrics"`
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "metrics_disabled",
			"Metrics registry is not configured")
		return
	}

	families, err := s.metrics.Snapshot()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "gather_failed", err.Error())
		return
	}

	out := make([]snapshotFamily, 0, len(families))
	for _, family := range families {
		sf := snapshotFamily{
			Name: family.GetName(),
			Type: family.GetType().String(),
			Help: family.GetHelp(),
		}
		for _, metric := range family.GetMetric() {
			sm := snapshotMetric{}
			if labels := metric.GetLabel(); len(labels) > 0 {
				sm.Labels = make(map[string]string, len(labels))
				for _, label := range labels {
					sm.Labels[label.GetName()] = label.GetValue()
				}
			}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				sm.Value = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				sm.Value = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				sm.Value = metric.GetHistogram().GetSampleSum()
				count := metric.GetHistogram().GetSampleCount()
				sm.Count = &count
			case dto.MetricType_SUMMARY:
				sm.Value = metric.GetSummary().GetSampleSum()
				count := metric.GetSummary().GetSampleCount()
				sm.Count = &count
			default:
				sm.Value = metric.GetUntyped().GetValue()
			}
			sf.Metrics = append(sf.Metrics, sm)
		}
		out = append(out, sf)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"families":  out,
	})
}
