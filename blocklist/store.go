package blocklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const snapshotKey = "snapshot"

// Store is a file-backed set of banned client addresses. Mutations are
// published by writing a temp file and renaming it over the canonical
// path, so concurrent readers never observe a partial write. Writers
// are not mutually excluded across processes; last writer wins.
type Store struct {
	path  string
	mu    sync.Mutex // serializes in-process mutations
	cache *gocache.Cache
}

// New creates a store backed by <dataDir>/blocklist.json. A missing
// backing file reads as an empty set.
func New(dataDir string) *Store {
	return &Store{
		path:  filepath.Join(dataDir, "blocklist.json"),
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

// AddResult reports what happened to each submitted address.
type AddResult struct {
	Added          []string `json:"added"`
	AlreadyPresent []string `json:"already_present"`
	Invalid        []string `json:"invalid"`
}

// RemoveResult reports the outcome of a removal.
type RemoveResult struct {
	Removed []string `json:"removed"`
	Invalid []string `json:"invalid"`
}

// List returns the persisted set, sorted. A missing file is an empty
// set, not an error.
func (s *Store) List() ([]string, error) {
	set, err := s.load()
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(set))
	for ip := range set {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips, nil
}

// Contains reports membership using a cached snapshot so the gate path
// does not read the disk on every request.
func (s *Store) Contains(ip string) bool {
	ip = canonical(ip)
	if ip == "" {
		return false
	}
	if v, ok := s.cache.Get(snapshotKey); ok {
		_, hit := v.(map[string]struct{})[ip]
		return hit
	}
	set, err := s.load()
	if err != nil {
		slog.Error("blocklist read failed, treating as empty", "path", s.path, "error", err)
		return false
	}
	s.cache.SetDefault(snapshotKey, set)
	_, hit := set[ip]
	return hit
}

// Refresh drops the cached snapshot; the next Contains reloads it.
func (s *Store) Refresh() {
	s.cache.Delete(snapshotKey)
}

// Add validates and inserts the given addresses. Syntactically invalid
// literals are reported, never stored. Adding a present address is a
// no-op counted in AlreadyPresent.
func (s *Store) Add(ips []string) (*AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load()
	if err != nil {
		return nil, err
	}
	res := &AddResult{Added: []string{}, AlreadyPresent: []string{}, Invalid: []string{}}
	for _, raw := range ips {
		ip := canonical(raw)
		if ip == "" {
			res.Invalid = append(res.Invalid, strings.TrimSpace(raw))
			continue
		}
		if _, ok := set[ip]; ok {
			res.AlreadyPresent = append(res.AlreadyPresent, ip)
			continue
		}
		set[ip] = struct{}{}
		res.Added = append(res.Added, ip)
	}
	if len(res.Added) > 0 {
		if err := s.save(set); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Remove deletes the given addresses from the set.
func (s *Store) Remove(ips []string) (*RemoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load()
	if err != nil {
		return nil, err
	}
	res := &RemoveResult{Removed: []string{}, Invalid: []string{}}
	for _, raw := range ips {
		ip := canonical(raw)
		if ip == "" {
			res.Invalid = append(res.Invalid, strings.TrimSpace(raw))
			continue
		}
		if _, ok := set[ip]; ok {
			delete(set, ip)
			res.Removed = append(res.Removed, ip)
		}
	}
	if len(res.Removed) > 0 {
		if err := s.save(set); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *Store) load() (map[string]struct{}, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("blocklist: read %s: %w", s.path, err)
	}
	var ips []string
	if err := json.Unmarshal(b, &ips); err != nil {
		return nil, fmt.Errorf("blocklist: parse %s: %w", s.path, err)
	}
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if c := canonical(ip); c != "" {
			set[c] = struct{}{}
		}
	}
	return set, nil
}

// save writes the set to a temp file in the same directory and renames
// it over the canonical path.
func (s *Store) save(set map[string]struct{}) error {
	ips := make([]string, 0, len(set))
	for ip := range set {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	b, err := json.MarshalIndent(ips, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("blocklist: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".blocklist-*.json")
	if err != nil {
		return fmt.Errorf("blocklist: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("blocklist: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blocklist: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blocklist: replace %s: %w", s.path, err)
	}
	s.cache.Delete(snapshotKey)
	return nil
}

// canonical parses and normalizes an IP literal, returning "" when the
// input is not a valid IPv4/IPv6 address.
func canonical(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
