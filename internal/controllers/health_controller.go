package controllers

import (
	"fmt"
	"jamsync/internal/services"
	"jamsync/internal/session/interfaces"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
)

type HealthController struct {
	service   services.SessionServiceInterface
	scheduler interfaces.SchedulerInterface
	clock     clockwork.Clock
	startTime time.Time
}

type healthResponse struct {
	Status              string  `json:"status"`
	Uptime              string  `json:"uptime"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
	Entries             int     `json:"entries"`
	PendingOps          int     `json:"pending_ops"`
	Stale               bool    `json:"stale"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastSyncSeconds     float64 `json:"last_sync_seconds"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	now := hc.clock.Now()
	uptime := now.Sub(hc.startTime)

	// A stale sync is degraded, not dead: the daemon keeps serving the
	// last reconciled state.
	status := "ok"
	if hc.scheduler.Stale() {
		status = "stale"
	}

	lastSyncSeconds := -1.0
	if last := hc.scheduler.LastSync(); !last.IsZero() {
		lastSyncSeconds = now.Sub(last).Seconds()
	}

	resp := healthResponse{
		Status:              status,
		Uptime:              formatDuration(uptime),
		UptimeSeconds:       uptime.Seconds(),
		Entries:             hc.service.EntryCount(),
		PendingOps:          hc.service.PendingOps(),
		Stale:               hc.scheduler.Stale(),
		ConsecutiveFailures: hc.scheduler.ConsecutiveFailures(),
		LastSyncSeconds:     lastSyncSeconds,
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.SessionServiceInterface, scheduler interfaces.SchedulerInterface, clock clockwork.Clock) *HealthController {
	return &HealthController{
		service:   service,
		scheduler: scheduler,
		clock:     clock,
		startTime: clock.Now(),
	}
}
