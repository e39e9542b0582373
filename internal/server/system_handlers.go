package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/brickvault/internal/database"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves health and host status
type SystemHandlers struct {
	databases []*database.DB
	dataDir   string
	startedAt time.Time
	log       zerolog.Logger

	// host probes, replaced in tests
	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
	diskFreeGB func(path string) (float64, error)
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(databases []*database.DB, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		databases:  databases,
		dataDir:    dataDir,
		startedAt:  time.Now(),
		log:        log.With().Str("handler", "system").Logger(),
		cpuPercent: hostCPUPercent,
		memPercent: hostMemPercent,
		diskFreeGB: hostDiskFreeGB,
	}
}

// SystemStatusResponse represents the host and database status
type SystemStatusResponse struct {
	Status        string   `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64    `json:"uptime_seconds"`
	GoVersion     string   `json:"go_version"`
	Goroutines    int      `json:"goroutines"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	DiskFreeGB    float64  `json:"disk_free_gb,omitempty"`
	Databases     []DBInfo `json:"databases"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	Healthy       bool   `json:"healthy"`
	SizeBytes     int64  `json:"size_bytes"`
	WALSizeBytes  int64  `json:"wal_size_bytes"`
	PageCount     int64  `json:"page_count"`
	FreelistCount int64  `json:"freelist_count"`
	Error         string `json:"error,omitempty"`
}

// HandleHealth pings every database. It returns 503 if any is unreachable.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.databases))
	status := http.StatusOK
	for _, db := range h.databases {
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			checks[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[db.Name()] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	utils.WriteJSON(w, status, map[string]interface{}{
		"status":    overall,
		"databases": checks,
	}, h.log)
}

// HandleSystemStatus returns host resource usage and database stats
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		Databases:     make([]DBInfo, 0, len(h.databases)),
	}

	if cpuPct, err := h.cpuPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		response.CPUPercent = cpuPct
	}
	if memPct, err := h.memPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.MemoryPercent = memPct
	}
	if h.dataDir != "" {
		if free, err := h.diskFreeGB(h.dataDir); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get disk usage")
		} else {
			response.DiskFreeGB = free
		}
	}

	for _, db := range h.databases {
		info := DBInfo{Name: db.Name(), Path: db.Path(), Healthy: true}
		if err := db.QuickCheck(r.Context()); err != nil {
			info.Healthy = false
			info.Error = err.Error()
			response.Status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			info.SizeBytes = stats.SizeBytes
			info.WALSizeBytes = stats.WALSizeBytes
			info.PageCount = stats.PageCount
			info.FreelistCount = stats.FreelistCount
		} else if info.Error == "" {
			info.Error = err.Error()
		}
		response.Databases = append(response.Databases, info)
	}

	utils.WriteData(w, http.StatusOK, response, h.log)
}

// hostCPUPercent samples over 100ms to keep the endpoint fast
func hostCPUPercent() (float64, error) {
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func hostMemPercent() (float64, error) {
	memStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return memStat.UsedPercent, nil
}

func hostDiskFreeGB(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return float64(usage.Free) / 1e9, nil
}
