package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/frontier/internal/utils"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	CPUUsage  float64           `json:"cpu_percent"`
	MemUsage  float64           `json:"memory_percent"`
	Databases map[string]string `json:"databases"`
}

// handleHealth reports process health. A database that fails its ping turns
// the status to "degraded" and the response to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	cpuPct, memPct := s.systemHandlers.systemStats()
	resp := HealthResponse{
		Status:    "healthy",
		Service:   "frontier",
		CPUUsage:  cpuPct,
		MemUsage:  memPct,
		Databases: make(map[string]string, len(s.databases)),
	}

	status := http.StatusOK
	for _, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check ping failed")
			resp.Databases[db.Name()] = "unreachable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Databases[db.Name()] = "ok"
	}

	utils.WriteJSON(w, status, resp, s.log)
}
