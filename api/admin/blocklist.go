package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/api"
)

type blocklistRequest struct {
	IP  string   `json:"ip"`
	IPs []string `json:"ips"`
}

func (r *blocklistRequest) addresses() []string {
	out := make([]string, 0, len(r.IPs)+1)
	if strings.TrimSpace(r.IP) != "" {
		out = append(out, r.IP)
	}
	out = append(out, r.IPs...)
	return out
}

// AddToBlocklist bans one or more addresses.
func (h *Handlers) AddToBlocklist(c *gin.Context) {
	var req blocklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	addrs := req.addresses()
	if len(addrs) == 0 {
		api.RespondError(c, http.StatusBadRequest, "ip or ips is required")
		return
	}
	res, err := h.Store.Add(addrs)
	if err != nil {
		slog.Error("blocklist add failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "blocklist write failed")
		return
	}
	ips, err := h.Store.List()
	if err != nil {
		slog.Error("blocklist read failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "blocklist read failed")
		return
	}
	api.RespondSuccess(c, gin.H{
		"added":           res.Added,
		"already_present": res.AlreadyPresent,
		"invalid":         res.Invalid,
		"count":           len(ips),
		"ips":             ips,
	})
}

// RemoveFromBlocklist lifts the ban for one or more addresses.
func (h *Handlers) RemoveFromBlocklist(c *gin.Context) {
	var req blocklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	addrs := req.addresses()
	if len(addrs) == 0 {
		api.RespondError(c, http.StatusBadRequest, "ip or ips is required")
		return
	}
	res, err := h.Store.Remove(addrs)
	if err != nil {
		slog.Error("blocklist remove failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "blocklist write failed")
		return
	}
	ips, err := h.Store.List()
	if err != nil {
		slog.Error("blocklist read failed", "error", err)
		api.RespondError(c, http.StatusInternalServerError, "blocklist read failed")
		return
	}
	api.RespondSuccess(c, gin.H{
		"removed": res.Removed,
		"invalid": res.Invalid,
		"count":   len(ips),
		"ips":     ips,
	})
}
