package server

import (
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/aristath/frontier/internal/utils"
)

// SystemHandlers serves process, database and job information
type SystemHandlers struct {
	log       zerolog.Logger
	databases []*database.DB
	scheduler *scheduler.Scheduler
	jobs      map[string]scheduler.Job
	startedAt time.Time
}

// NewSystemHandlers creates system handlers. jobs are reachable by name for
// manual triggering.
func NewSystemHandlers(log zerolog.Logger, databases []*database.DB, sched *scheduler.Scheduler, jobs []scheduler.Job) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name()] = j
	}
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		databases: databases,
		scheduler: sched,
		jobs:      byName,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	CPUUsage      float64 `json:"cpu_percent"`
	MemoryUsage   float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	ScheduledJobs int     `json:"scheduled_jobs"`
	LastChecked   string  `json:"last_checked"`
}

// DatabaseStatsResponse is the body of GET /api/system/database/stats
type DatabaseStatsResponse struct {
	Databases   map[string]*database.Stats `json:"databases"`
	TotalSizeMB float64                    `json:"total_size_mb"`
	LastChecked string                     `json:"last_checked"`
}

// HandleSystemStatus returns process and host usage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.systemStats()
	resp := SystemStatusResponse{
		CPUUsage:      cpuPct,
		MemoryUsage:   memPct,
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		LastChecked:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.scheduler != nil {
		resp.ScheduledJobs = h.scheduler.Entries()
	}
	utils.WriteData(w, http.StatusOK, resp, h.log)
}

// HandleDatabaseStats returns size and page statistics of every database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	resp := DatabaseStatsResponse{
		Databases:   make(map[string]*database.Stats, len(h.databases)),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
	var total int64
	for _, db := range h.databases {
		stats, err := db.GetStats(r.Context())
		if err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			utils.WriteError(w, err, h.log)
			return
		}
		resp.Databases[db.Name()] = stats
		total += stats.SizeBytes + stats.WALSizeBytes
	}
	resp.TotalSizeMB = float64(total) / 1024 / 1024
	utils.WriteData(w, http.StatusOK, resp, h.log)
}

// HandleListJobs returns the names of manually triggerable jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	utils.WriteData(w, http.StatusOK, map[string]interface{}{"jobs": names}, h.log)
}

// HandleTriggerJob runs a job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse{Error: utils.ErrorBody{
			Kind:    "not_found",
			Message: "unknown job " + name,
		}}, h.log)
		return
	}

	run := job.Run
	if h.scheduler != nil {
		run = func() error { return h.scheduler.RunNow(job) }
	}
	if err := run(); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]string{"job": name, "status": "completed"}, h.log)
}

// systemStats samples CPU over a short window so the call stays fast
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuAvg := 0.0
	if pct, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(pct) > 0 {
		cpuAvg = pct[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, vm.UsedPercent
}
