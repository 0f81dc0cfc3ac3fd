package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tradecal/internal/modules/calendar"
)

// SystemHandlers serves process and host status
type SystemHandlers struct {
	log       zerolog.Logger
	store     *calendar.Store
	startedAt time.Time
	stats     func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(store *calendar.Store, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		store:     store,
		startedAt: time.Now(),
	}
	h.stats = h.getSystemStats
	return h
}

// SnapshotStatus describes the registry currently being served
type SnapshotStatus struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	LoadedAt string `json:"loaded_at"`
	Records  int    `json:"records"`
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	Snapshot      SnapshotStatus `json:"snapshot"`
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
func (h *SystemHandlers) GetSystemStatusSnapshot() SystemStatusResponse {
	cpuPercent, memPercent := h.stats()

	reg := h.store.Current()
	return SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Snapshot: SnapshotStatus{
			ID:       reg.ID().String(),
			Source:   reg.Source(),
			LoadedAt: reg.LoadedAt().Format(time.RFC3339),
			Records:  reg.Len(),
		},
	}
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.GetSystemStatusSnapshot()); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// The 100ms CPU sample keeps the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
