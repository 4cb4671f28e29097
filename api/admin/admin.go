package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/api"
	"github.com/mirrorgate/mirrorgate/blocklist"
	"github.com/mirrorgate/mirrorgate/burst"
	"github.com/mirrorgate/mirrorgate/config"
	"github.com/mirrorgate/mirrorgate/eventlog"
	"github.com/mirrorgate/mirrorgate/geoip"
	"github.com/mirrorgate/mirrorgate/ws"
)

// Handlers carries the injected state behind the operator endpoints.
type Handlers struct {
	Cfg     config.Config
	Store   *blocklist.Store
	Events  *eventlog.Log
	Monitor *burst.Monitor
	Geo     *geoip.Resolver
	Feed    *ws.Feed
}

// Routes registers the operator-gated admin endpoints on r.
func (h *Handlers) Routes(r *gin.Engine) {
	grp := r.Group("/api/admin")
	grp.Use(api.RequireOperator(h.Cfg.AdminToken))
	grp.POST("/blocklist", h.AddToBlocklist)
	grp.DELETE("/blocklist", h.RemoveFromBlocklist)
	grp.GET("/alerts/download-burst", h.DownloadBurst)
	grp.GET("/alerts/history", h.AlertHistory)
	grp.GET("/events/recent", h.RecentEvents)
	grp.GET("/ws/events", h.EventsFeed)
}
