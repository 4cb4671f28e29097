package ws

import (
	"net/http"
	"net/url"
	"os"
	"strings"
)

// CheckOrigin permits same-host origins. Set
// MIRRORGATE_WS_ANY_ORIGIN=true to accept all origins behind proxies
// that rewrite the Host header.
func CheckOrigin(r *http.Request) bool {
	if strings.EqualFold(os.Getenv("MIRRORGATE_WS_ANY_ORIGIN"), "true") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return originURL.Host == r.Host
}
