package burst

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorgate/mirrorgate/eventlog"
)

type fakeAlerter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAlerter) Enabled() bool { return true }

func (f *fakeAlerter) Send(msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fireCounter counts cooldown stamps, which are written synchronously
// the moment an alert is armed.
type fireCounter struct {
	mu     sync.Mutex
	stamps map[string]int
}

func newFireCounter() *fireCounter {
	return &fireCounter{stamps: map[string]int{}}
}

func (f *fireCounter) save(ip string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamps[ip]++
	return nil
}

func (f *fireCounter) fired(ip string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stamps[ip]
}

func testOptions(now time.Time, fc *fireCounter) Options {
	return Options{
		Window:       time.Minute,
		Threshold:    5,
		Cooldown:     10 * time.Minute,
		Now:          func() time.Time { return now },
		SaveCooldown: fc.save,
	}
}

func TestObserveFiresExactlyOnceAtThreshold(t *testing.T) {
	alerter := &fakeAlerter{}
	fc := newFireCounter()
	base := time.Unix(1700000000, 0)
	m := NewMonitor(alerter, nil, testOptions(base, fc))

	for i := 0; i < 4; i++ {
		m.Observe("203.0.113.9", base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 0, fc.fired("203.0.113.9"))

	m.Observe("203.0.113.9", base.Add(4*time.Second))
	assert.Equal(t, 1, fc.fired("203.0.113.9"))

	// further events within the cooldown never double-send
	for i := 5; i < 20; i++ {
		m.Observe("203.0.113.9", base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 1, fc.fired("203.0.113.9"))

	assert.Eventually(t, func() bool { return alerter.count() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Contains(t, alerter.sent[0], "203.0.113.9")
}

func TestObserveBelowThresholdStaysQuiet(t *testing.T) {
	fc := newFireCounter()
	base := time.Unix(1700000000, 0)
	m := NewMonitor(&fakeAlerter{}, nil, testOptions(base, fc))

	for i := 0; i < 4; i++ {
		m.Observe("203.0.113.9", base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 0, fc.fired("203.0.113.9"))
}

func TestObserveWindowSlides(t *testing.T) {
	fc := newFireCounter()
	base := time.Unix(1700000000, 0)
	m := NewMonitor(&fakeAlerter{}, nil, testOptions(base, fc))

	// four events, then a long pause: the old events fall out of the
	// trailing window, so the fifth does not cross the threshold
	for i := 0; i < 4; i++ {
		m.Observe("203.0.113.9", base.Add(time.Duration(i)*time.Second))
	}
	m.Observe("203.0.113.9", base.Add(2*time.Minute))
	assert.Equal(t, 0, fc.fired("203.0.113.9"))
}

func TestCooldownRearm(t *testing.T) {
	fc := newFireCounter()
	base := time.Unix(1700000000, 0)
	m := NewMonitor(&fakeAlerter{}, nil, testOptions(base, fc))

	burst := func(start time.Time) {
		for i := 0; i < 5; i++ {
			m.Observe("203.0.113.9", start.Add(time.Duration(i)*time.Second))
		}
	}

	burst(base)
	assert.Equal(t, 1, fc.fired("203.0.113.9"))

	// second burst within the cooldown: suppressed
	burst(base.Add(5 * time.Minute))
	assert.Equal(t, 1, fc.fired("203.0.113.9"))

	// after the cooldown has elapsed: fires again
	burst(base.Add(11 * time.Minute))
	assert.Equal(t, 2, fc.fired("203.0.113.9"))
}

func TestConcurrentObserveSingleAlert(t *testing.T) {
	alerter := &fakeAlerter{}
	fc := newFireCounter()
	base := time.Unix(1700000000, 0)
	m := NewMonitor(alerter, nil, testOptions(base, fc))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Observe("203.0.113.9", base)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fc.fired("203.0.113.9"))
	assert.Eventually(t, func() bool { return alerter.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestPersistedCooldownSurvivesRestart(t *testing.T) {
	base := time.Unix(1700000000, 0)
	fc := newFireCounter()
	opts := testOptions(base, fc)
	opts.LoadCooldowns = func() (map[string]int64, error) {
		return map[string]int64{"203.0.113.9": base.Add(-time.Minute).Unix()}, nil
	}
	m := NewMonitor(&fakeAlerter{}, nil, opts)

	// a fresh process must not alert again inside the cooldown
	for i := 0; i < 5; i++ {
		m.Observe("203.0.113.9", base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 0, fc.fired("203.0.113.9"))
}

func makeEvents(ip string, start time.Time, n int, gap time.Duration) []eventlog.DownloadEvent {
	events := make([]eventlog.DownloadEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, eventlog.NewEvent(ip, "setup.exe", start.Add(time.Duration(i)*gap)))
	}
	return events
}

func TestScanEndToEnd(t *testing.T) {
	alerter := &fakeAlerter{}
	fc := newFireCounter()
	now := time.Unix(1700000000, 0)
	opts := testOptions(now, fc)
	m := NewMonitor(alerter, nil, opts)

	// five events within ten seconds: one alert
	events := makeEvents("203.0.113.9", now.Add(-10*time.Second), 5, 2*time.Second)
	rep := m.Scan(events, time.Minute, 5, 10*time.Minute)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, []string{"203.0.113.9"}, rep.Alerted)
	require.Len(t, rep.Offenders, 1)
	assert.Equal(t, "203.0.113.9", rep.Offenders[0].IP)
	assert.Equal(t, 5, rep.Offenders[0].Count)
	assert.Equal(t, 1, alerter.count())

	// a sixth event five seconds later: no new alert, the offender is
	// listed with the moment the next alert becomes eligible
	later := now.Add(5 * time.Second)
	opts.Now = func() time.Time { return later }
	m.opts.Now = opts.Now
	events = append(events, eventlog.NewEvent("203.0.113.9", "setup.exe", later))
	rep = m.Scan(events, time.Minute, 5, 10*time.Minute)
	assert.Equal(t, 0, rep.Sent)
	assert.Empty(t, rep.Alerted)
	require.Len(t, rep.Offenders, 1)
	require.NotNil(t, rep.Offenders[0].NextAllowedAt)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), *rep.Offenders[0].NextAllowedAt)
	assert.Equal(t, int64(595), *rep.Offenders[0].NextAllowedAt-later.Unix())
	assert.Equal(t, 1, alerter.count())
}

func TestScanBelowThreshold(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := NewMonitor(&fakeAlerter{}, nil, testOptions(now, newFireCounter()))

	events := makeEvents("203.0.113.9", now.Add(-10*time.Second), 4, time.Second)
	rep := m.Scan(events, time.Minute, 5, 10*time.Minute)
	assert.Equal(t, 0, rep.Sent)
	assert.Empty(t, rep.Alerted)
	assert.Empty(t, rep.Offenders)
}

func TestScanIgnoresEventsOutsideWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := NewMonitor(&fakeAlerter{}, nil, testOptions(now, newFireCounter()))

	old := makeEvents("203.0.113.9", now.Add(-2*time.Hour), 10, time.Second)
	rep := m.Scan(old, time.Minute, 5, 10*time.Minute)
	assert.Empty(t, rep.Offenders)
}

func TestSweepEvictsIdleAddresses(t *testing.T) {
	base := time.Unix(1700000000, 0)
	m := NewMonitor(&fakeAlerter{}, nil, testOptions(base, newFireCounter()))

	m.Observe("203.0.113.9", base)
	m.Observe("198.51.100.1", base.Add(90*time.Second))

	m.Sweep(base.Add(2 * time.Minute))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.windows, "203.0.113.9")
	assert.Contains(t, m.windows, "198.51.100.1")
}
