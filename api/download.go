package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/eventlog"
)

// Download is the gate in front of every protected file. It verifies
// the signed URL, consults the blocklist, records the event, and only
// then releases the file.
func (s *Server) Download(c *gin.Context) {
	file := c.Param("file")
	observedIP := c.ClientIP()

	decision := s.Verifier.Verify(file, c.Query("exp"), c.Query("sig"), c.Query("ip"), observedIP)
	if !decision.Allowed() {
		slog.Info("download denied",
			"file", file, "ip", observedIP,
			"reason", string(decision.Reason), "detail", decision.Message)
		switch status := decision.Status(); status {
		case http.StatusBadRequest:
			RespondError(c, status, decision.Message)
		case http.StatusGone:
			RespondError(c, status, "download link expired")
		default:
			// forbidden reasons are indistinguishable to the caller
			RespondError(c, status, "forbidden")
		}
		return
	}

	// A failed append must never fail the download itself.
	ev := eventlog.NewEvent(observedIP, file, time.Now())
	if err := s.Events.Append(ev); err != nil {
		slog.Warn("event append failed", "file", file, "ip", observedIP, "error", err)
	}
	s.Monitor.Observe(ev.IP, ev.Timestamp)
	if s.Feed != nil {
		s.Feed.Broadcast(gin.H{
			"type":     "download",
			"ip":       ev.IP,
			"file":     ev.File,
			"ts":       ev.Timestamp.Unix(),
			"location": s.Geo.Lookup(ev.IP),
		})
	}

	path := filepath.Join(s.Cfg.DownloadsDir, file)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			RespondError(c, http.StatusNotFound, "file not found")
			return
		}
		slog.Error("file stat failed", "path", path, "error", err)
		RespondError(c, http.StatusInternalServerError, "could not read file")
		return
	}
	c.FileAttachment(path, file)
}

// ListBlocklist is the public, read-only blocklist view.
func (s *Server) ListBlocklist(c *gin.Context) {
	ips, err := s.Blocklist.List()
	if err != nil {
		slog.Error("blocklist read failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "blocklist unavailable")
		return
	}
	RespondSuccess(c, gin.H{"ips": ips, "count": len(ips)})
}
