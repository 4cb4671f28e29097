package burst

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mirrorgate/mirrorgate/eventlog"
)

// Alerter is the notification surface the monitor needs.
type Alerter interface {
	Enabled() bool
	Send(message string) bool
}

// Describer renders an address for alert text (optionally with geo
// enrichment).
type Describer interface {
	Describe(ip string) string
}

// Options configure a Monitor. The persistence hooks may be nil, in
// which case cooldown state is memory-only.
type Options struct {
	Window    time.Duration
	Threshold int
	Cooldown  time.Duration
	Now       func() time.Time

	LoadCooldowns func() (map[string]int64, error)
	SaveCooldown  func(ip string, at time.Time) error
	RecordAlert   func(ip string, count int, window time.Duration, message string, delivered bool) error
}

// Monitor keeps a sliding window of download events per client address
// and raises at most one alert per address per cooldown interval. It
// is an explicitly constructed singleton with a bounded lifecycle:
// build it at startup, Sweep it periodically, drop it at shutdown.
// It only ever adds friction; it never blocks or fails a download.
type Monitor struct {
	opts     Options
	alerter  Alerter
	describe Describer

	mu       sync.Mutex
	windows  map[string][]time.Time
	cooldown map[string]int64 // ip -> unix seconds of last alert
}

// maxWindowEntries bounds the per-address ring so a flood cannot grow
// memory without limit.
const maxWindowEntries = 4096

func NewMonitor(alerter Alerter, describe Describer, opts Options) *Monitor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Threshold < 1 {
		opts.Threshold = 1
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 10 * time.Minute
	}
	m := &Monitor{
		opts:     opts,
		alerter:  alerter,
		describe: describe,
		windows:  make(map[string][]time.Time),
		cooldown: make(map[string]int64),
	}
	if opts.LoadCooldowns != nil {
		stamps, err := opts.LoadCooldowns()
		if err != nil {
			slog.Warn("could not load persisted alert cooldowns", "error", err)
		} else {
			m.cooldown = stamps
		}
	}
	return m
}

// Observe records one allowed download for ip and, when the trailing
// window crosses the threshold, fires an alert subject to the
// cooldown. The alert delivery itself is detached; Observe never
// blocks on the notification channel.
func (m *Monitor) Observe(ip string, at time.Time) {
	if ip == "" {
		return
	}
	m.mu.Lock()
	win := m.prune(ip, at)
	win = append(win, at)
	if len(win) > maxWindowEntries {
		win = win[len(win)-maxWindowEntries:]
	}
	m.windows[ip] = win
	count := len(win)

	fire := false
	if count >= m.opts.Threshold {
		fire = m.armLocked(ip, at, m.opts.Cooldown)
	}
	m.mu.Unlock()

	if fire {
		msg := m.alertMessage(ip, count, m.opts.Window)
		m.dispatchAsync(ip, count, msg)
	}
}

// prune drops entries older than the window for ip; callers hold mu.
func (m *Monitor) prune(ip string, now time.Time) []time.Time {
	win := m.windows[ip]
	cutoff := now.Add(-m.opts.Window)
	idx := 0
	for idx < len(win) && !win[idx].After(cutoff) {
		idx++
	}
	return win[idx:]
}

// armLocked stamps the cooldown for ip if it has elapsed, returning
// true when an alert should fire. The stamp is written before any
// delivery is attempted so concurrent threshold crossings cannot
// double-send; callers hold mu.
func (m *Monitor) armLocked(ip string, now time.Time, cooldown time.Duration) bool {
	last := m.cooldown[ip]
	if last > 0 && now.Unix()-last < int64(cooldown/time.Second) {
		return false
	}
	m.cooldown[ip] = now.Unix()
	if m.opts.SaveCooldown != nil {
		if err := m.opts.SaveCooldown(ip, now); err != nil {
			slog.Warn("could not persist alert cooldown", "ip", ip, "error", err)
		}
	}
	return true
}

func (m *Monitor) alertMessage(ip string, count int, window time.Duration) string {
	who := ip
	if m.describe != nil {
		who = m.describe.Describe(ip)
	}
	return fmt.Sprintf("Download burst: %s fetched %d files within %s", who, count, window)
}

func (m *Monitor) dispatchAsync(ip string, count int, msg string) {
	go func() {
		delivered := false
		if m.alerter != nil && m.alerter.Enabled() {
			delivered = m.alerter.Send(msg)
		}
		m.record(ip, count, m.opts.Window, msg, delivered)
	}()
}

func (m *Monitor) record(ip string, count int, window time.Duration, msg string, delivered bool) {
	if m.opts.RecordAlert == nil {
		return
	}
	if err := m.opts.RecordAlert(ip, count, window, msg, delivered); err != nil {
		slog.Warn("could not record alert history", "ip", ip, "error", err)
	}
}

// Offender is one address over the threshold in a report.
type Offender struct {
	IP            string `json:"ip"`
	Count         int    `json:"count"`
	NextAllowedAt *int64 `json:"next_allowed_at,omitempty"`
}

// Report is the operator-facing view of one burst scan.
type Report struct {
	Offenders []Offender `json:"offenders"`
	Alerted   []string   `json:"alerted"`
	Sent      int        `json:"sent"`
}

// Scan recounts the given events per address with ad-hoc parameters
// and fires alerts for addresses over the threshold, sharing the
// monitor's cooldown state. Delivery here is synchronous (the caller
// is an operator endpoint and wants the sent count); the dispatcher's
// own timeout bounds it.
func (m *Monitor) Scan(events []eventlog.DownloadEvent, window time.Duration, threshold int, cooldown time.Duration) Report {
	if window <= 0 {
		window = m.opts.Window
	}
	if threshold < 1 {
		threshold = m.opts.Threshold
	}
	if cooldown <= 0 {
		cooldown = m.opts.Cooldown
	}

	now := m.opts.Now()
	cutoff := now.Add(-window)
	counts := make(map[string]int)
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		counts[ev.IP]++
	}

	ips := make([]string, 0, len(counts))
	for ip, n := range counts {
		if n >= threshold {
			ips = append(ips, ip)
		}
	}
	sort.Strings(ips)

	rep := Report{Offenders: []Offender{}, Alerted: []string{}}
	for _, ip := range ips {
		count := counts[ip]
		m.mu.Lock()
		last := m.cooldown[ip]
		fire := m.armLocked(ip, now, cooldown)
		m.mu.Unlock()

		if fire {
			msg := m.alertMessage(ip, count, window)
			delivered := false
			if m.alerter != nil && m.alerter.Enabled() {
				delivered = m.alerter.Send(msg)
			}
			m.record(ip, count, window, msg, delivered)
			rep.Alerted = append(rep.Alerted, ip)
			rep.Sent++
			next := now.Add(cooldown).Unix()
			rep.Offenders = append(rep.Offenders, Offender{IP: ip, Count: count, NextAllowedAt: &next})
			continue
		}
		next := last + int64(cooldown/time.Second)
		rep.Offenders = append(rep.Offenders, Offender{IP: ip, Count: count, NextAllowedAt: &next})
	}
	return rep
}

// Sweep evicts window entries outside the trailing window and drops
// addresses that went quiet, along with cooldown stamps old enough to
// be irrelevant. Intended to run on a schedule.
func (m *Monitor) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ip := range m.windows {
		win := m.prune(ip, now)
		if len(win) == 0 {
			delete(m.windows, ip)
			continue
		}
		m.windows[ip] = win
	}
	stale := now.Add(-2 * m.opts.Cooldown).Unix()
	for ip, last := range m.cooldown {
		if last < stale {
			delete(m.cooldown, ip)
		}
	}
}

// Close releases the in-memory state.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = make(map[string][]time.Time)
	m.cooldown = make(map[string]int64)
}
