package app

import (
	"sync/atomic"
	"time"

	"github.com/Jasonic/vlc/internal/module"
)

// Metrics counts module bank activity.
type Metrics struct {
	needs    atomic.Uint64
	misses   atomic.Uint64
	releases atomic.Uint64

	registered   atomic.Uint64
	loadFailures atomic.Uint64
	evictions    atomic.Uint64
	unloads      atomic.Uint64
	faults       atomic.Uint64
	invariants   atomic.Uint64

	sweeps atomic.Uint64
	resets atomic.Uint64

	needTotalNs atomic.Int64
	needMaxNs   atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Observe counts a bank event. It is a module.EventHandler.
func (m *Metrics) Observe(e module.Event) {
	switch e.Type {
	case module.EventRegistered:
		m.registered.Add(1)
	case module.EventLoadFailed:
		m.loadFailures.Add(1)
	case module.EventReleased:
		m.releases.Add(1)
	case module.EventEvicted:
		m.evictions.Add(1)
	case module.EventUnloaded:
		m.unloads.Add(1)
	case module.EventFaulty:
		m.faults.Add(1)
	case module.EventInvariant:
		m.invariants.Add(1)
	}
}

// RecordNeed records one Need call and how long it took.
func (m *Metrics) RecordNeed(d time.Duration, err error) {
	if err != nil {
		m.misses.Add(1)
	} else {
		m.needs.Add(1)
	}

	ns := d.Nanoseconds()
	m.needTotalNs.Add(ns)
	for {
		old := m.needMaxNs.Load()
		if ns <= old || m.needMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordSweep records one idle sweep.
func (m *Metrics) RecordSweep() {
	m.sweeps.Add(1)
}

// RecordReset records one bank reset.
func (m *Metrics) RecordReset() {
	m.resets.Add(1)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Needs    uint64
	Misses   uint64
	Releases uint64

	Registered   uint64
	LoadFailures uint64
	Evictions    uint64
	Unloads      uint64
	Faults       uint64
	Invariants   uint64

	Sweeps uint64
	Resets uint64

	NeedAvg time.Duration
	NeedMax time.Duration

	Uptime time.Duration
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Needs:        m.needs.Load(),
		Misses:       m.misses.Load(),
		Releases:     m.releases.Load(),
		Registered:   m.registered.Load(),
		LoadFailures: m.loadFailures.Load(),
		Evictions:    m.evictions.Load(),
		Unloads:      m.unloads.Load(),
		Faults:       m.faults.Load(),
		Invariants:   m.invariants.Load(),
		Sweeps:       m.sweeps.Load(),
		Resets:       m.resets.Load(),
		NeedMax:      time.Duration(m.needMaxNs.Load()),
		Uptime:       time.Since(m.startTime),
	}
	if calls := s.Needs + s.Misses; calls > 0 {
		s.NeedAvg = time.Duration(m.needTotalNs.Load() / int64(calls))
	}
	return s
}

// HitRate returns the fraction of Need calls that found a module.
func (s MetricsSnapshot) HitRate() float64 {
	calls := s.Needs + s.Misses
	if calls == 0 {
		return 0
	}
	return float64(s.Needs) / float64(calls)
}

// Outstanding returns handles handed out and not yet released.
func (s MetricsSnapshot) Outstanding() int64 {
	return int64(s.Needs) - int64(s.Releases)
}
