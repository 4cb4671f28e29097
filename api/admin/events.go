package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/api"
)

// RecentEvents lists downloads from the event log. since is unix
// seconds (default: one hour ago); limit caps the scan.
func (h *Handlers) RecentEvents(c *gin.Context) {
	since := time.Now().Add(-time.Hour)
	if v := api.QueryInt(c, "since", 0); v > 0 {
		since = time.Unix(int64(v), 0)
	}
	limit := api.QueryInt(c, "limit", 200)
	if limit < 1 || limit > 10000 {
		limit = 200
	}

	events, err := h.Events.ReadSince(since, limit)
	if err != nil {
		slog.Error("event log read failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "event log unavailable")
		return
	}

	out := make([]gin.H, 0, len(events))
	for _, ev := range events {
		out = append(out, gin.H{
			"id":       ev.ID,
			"ts":       ev.Timestamp.Unix(),
			"ip":       ev.IP,
			"file":     ev.File,
			"location": h.Geo.Lookup(ev.IP),
		})
	}
	api.RespondSuccess(c, gin.H{"events": out, "count": len(out)})
}

// EventsFeed upgrades to a websocket and streams live downloads.
func (h *Handlers) EventsFeed(c *gin.Context) {
	if err := h.Feed.Subscribe(c.Writer, c.Request); err != nil {
		// the upgrader has already written its error response
		slog.Warn("websocket upgrade failed", "error", err)
	}
}
