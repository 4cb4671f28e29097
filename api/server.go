package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mirrorgate/mirrorgate/blocklist"
	"github.com/mirrorgate/mirrorgate/burst"
	"github.com/mirrorgate/mirrorgate/config"
	"github.com/mirrorgate/mirrorgate/eventlog"
	"github.com/mirrorgate/mirrorgate/geoip"
	"github.com/mirrorgate/mirrorgate/token"
	"github.com/mirrorgate/mirrorgate/utils"
	"github.com/mirrorgate/mirrorgate/ws"
)

// Server bundles the public request-path components. Everything is
// injected; the api package owns no globals.
type Server struct {
	Cfg       config.Config
	Issuer    *token.Issuer
	Verifier  *token.Verifier
	Blocklist *blocklist.Store
	Events    *eventlog.Log
	Monitor   *burst.Monitor
	Geo       *geoip.Resolver
	Feed      *ws.Feed
}

// Routes registers the public and token-minting endpoints on r.
func (s *Server) Routes(r *gin.Engine) {
	public := r.Group("/")
	if s.Cfg.PublicRatePerMin > 0 {
		public.Use(RateLimit(s.Cfg.PublicRatePerMin))
	}
	public.GET("/downloads/:file", s.Download)
	public.GET("/api/blocklist", s.ListBlocklist)
	public.GET("/api/version", s.GetVersion)

	operator := r.Group("/api")
	operator.Use(RequireOperator(s.Cfg.AdminToken))
	operator.POST("/sign-download", s.SignDownload)
}

// GetVersion is a liveness probe with build info.
func (s *Server) GetVersion(c *gin.Context) {
	RespondSuccess(c, gin.H{"name": "mirrorgate", "version": utils.CurrentVersion, "hash": utils.VersionHash})
}
