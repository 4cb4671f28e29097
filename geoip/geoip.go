package geoip

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

// Resolver looks up coarse location data for client addresses from a
// local MaxMind database. Without a configured database every lookup
// returns an empty result; the feature is strictly additive.
type Resolver struct {
	mu     sync.RWMutex
	reader *maxminddb.Reader
}

type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// Open loads the .mmdb at path. An empty path yields a disabled
// resolver and no error.
func Open(path string) (*Resolver, error) {
	r := &Resolver{}
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	r.reader = reader
	return r, nil
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}

// Lookup returns the location for ip, or an empty Location when the
// resolver is disabled or the address is unknown.
func (r *Resolver) Lookup(ip string) Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return Location{}
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Location{}
	}
	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
	}
	if err := r.reader.Lookup(parsed, &record); err != nil {
		return Location{}
	}
	return Location{
		Country: record.Country.ISOCode,
		City:    record.City.Names["en"],
	}
}

// Describe renders "ip" or "ip (CC, City)" for alert text.
func (r *Resolver) Describe(ip string) string {
	loc := r.Lookup(ip)
	switch {
	case loc.Country == "" && loc.City == "":
		return ip
	case loc.City == "":
		return fmt.Sprintf("%s (%s)", ip, loc.Country)
	default:
		return fmt.Sprintf("%s (%s, %s)", ip, loc.Country, loc.City)
	}
}
