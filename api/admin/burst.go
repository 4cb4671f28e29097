package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/api"
	"github.com/mirrorgate/mirrorgate/database/alerts"
)

// DownloadBurst re-scans the recent event log for bursting addresses.
// window and cooldown are seconds; unset parameters fall back to the
// configured live values. Alerts fired by the scan share the live
// monitor's cooldown state, so an inspection never double-alerts.
func (h *Handlers) DownloadBurst(c *gin.Context) {
	window := time.Duration(api.QueryInt(c, "window", int(h.Cfg.BurstWindow/time.Second))) * time.Second
	threshold := api.QueryInt(c, "threshold", h.Cfg.BurstThreshold)
	cooldown := time.Duration(api.QueryInt(c, "cooldown", int(h.Cfg.BurstCooldown/time.Second))) * time.Second
	if window <= 0 || threshold < 1 || cooldown <= 0 {
		api.RespondError(c, http.StatusBadRequest, "window, threshold and cooldown must be positive")
		return
	}

	events, err := h.Events.ReadSince(time.Now().Add(-window), 10000)
	if err != nil {
		slog.Error("event log read failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "event log unavailable")
		return
	}
	report := h.Monitor.Scan(events, window, threshold, cooldown)
	api.RespondSuccess(c, report)
}

// AlertHistory lists recently fired alerts.
func (h *Handlers) AlertHistory(c *gin.Context) {
	limit := api.QueryInt(c, "limit", 100)
	rows, err := alerts.Recent(limit)
	if err != nil {
		slog.Error("alert history read failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "alert history unavailable")
		return
	}
	api.RespondSuccess(c, gin.H{"alerts": rows, "count": len(rows)})
}
