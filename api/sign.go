package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/token"
)

type signRequest struct {
	File string `json:"file" binding:"required"`
	TTL  int64  `json:"ttl"` // seconds; 0 selects the default
	IP   string `json:"ip"`
}

// SignDownload mints a signed download URL for operators.
func (s *Server) SignDownload(c *gin.Context) {
	if s.Issuer == nil {
		RespondError(c, http.StatusInternalServerError, "signing secret is not configured")
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body: file is required")
		return
	}

	signed, err := s.Issuer.Issue(req.File, time.Duration(req.TTL)*time.Second, req.IP)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrBadFilename):
			RespondError(c, http.StatusBadRequest, "invalid file name")
		case errors.Is(err, token.ErrMissingClientIP):
			RespondError(c, http.StatusBadRequest, "ip is required when binding is enabled")
		default:
			slog.Error("token issuance failed", "file", req.File, "error", err)
			RespondError(c, http.StatusInternalServerError, "could not issue token")
		}
		return
	}
	RespondSuccess(c, signed)
}
