package voicepipe

import (
	"context"
	"sync"
	"time"

	"github.com/clearcomm/voicepipe/dsp"
	"github.com/sirupsen/logrus"
)

// Monitor runs the scheduled sampling loop.
//
// Each tick it pulls time-domain and frequency-domain snapshots from
// the analyzer tap, computes a Metrics snapshot, invokes the observer
// callback, and applies the adaptive tuner. The loop runs on its own
// goroutine at a fixed cadence, independent of the real-time block
// path, and may allocate freely.
//
// Start and Stop are idempotent. Start replaces any previously
// registered callback; Stop halts ticking, clears the callback, and
// returns only after the loop goroutine has exited, so no callback
// runs after any Stop call returns, including concurrent ones.
type Monitor struct {
	interval time.Duration
	analyzer *dsp.Analyzer
	engine   *Engine
	tuner    *Tuner

	mu      sync.Mutex
	running bool
	cb      MetricsCallback
	cancel  context.CancelFunc
	done    chan struct{}

	lastMu sync.RWMutex
	last   Metrics
}

// NewMonitor creates a monitoring loop over the given tap and tuner.
// The tuner may be nil, in which case ticks only report metrics.
func NewMonitor(interval time.Duration, analyzer *dsp.Analyzer, engine *Engine, tuner *Tuner) *Monitor {
	logrus.WithFields(logrus.Fields{
		"function": "NewMonitor",
		"interval": interval,
	}).Info("Monitor loop created")

	return &Monitor{
		interval: interval,
		analyzer: analyzer,
		engine:   engine,
		tuner:    tuner,
		last: Metrics{
			AverageLevelDb: LevelFloorDb,
			PeakLevelDb:    LevelFloorDb,
		},
	}
}

// Start begins or resumes ticking with the given observer callback.
//
// If the loop is already running only the callback is replaced. A nil
// callback is allowed; ticks still feed the tuner and the Current
// snapshot.
func (m *Monitor) Start(cb MetricsCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cb = cb
	if m.running {
		logrus.WithFields(logrus.Fields{
			"function":     "Monitor.Start",
			"has_callback": cb != nil,
		}).Debug("Monitor already running, callback replaced")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running = true
	go m.run(ctx, done)

	logrus.WithFields(logrus.Fields{
		"function":     "Monitor.Start",
		"interval":     m.interval,
		"has_callback": cb != nil,
	}).Info("Monitor loop started")
}

// Stop halts ticking and clears the callback.
//
// Safe to call concurrently with an in-flight tick and safe to call
// repeatedly. Every Stop call, including one racing another Stop,
// waits for the loop goroutine to exit before returning, so no
// callback invocation can outlive any Stop return.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.cb = nil
	done := m.done
	var cancel context.CancelFunc
	if m.running {
		m.running = false
		cancel = m.cancel
		m.cancel = nil
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	<-done

	if cancel != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Monitor.Stop",
		}).Info("Monitor loop stopped")
	}
}

// IsRunning reports whether the loop is currently ticking.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Current returns the most recent metrics snapshot.
func (m *Monitor) Current() Metrics {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return m.last
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick performs one sampling pass: snapshot, metrics, callback, tuner.
func (m *Monitor) tick() {
	timeData := m.analyzer.TimeDomain()
	freqData := m.analyzer.FrequencyDomain()
	metrics := m.engine.ComputeMetrics(timeData, freqData)

	m.lastMu.Lock()
	m.last = metrics
	m.lastMu.Unlock()

	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()

	if cb != nil {
		m.invokeCallback(cb, metrics)
	}
	if m.tuner != nil {
		m.tuner.Apply(metrics)
	}
}

// invokeCallback runs the observer callback with panic containment.
// A failing observer must never take down the monitor tick.
func (m *Monitor) invokeCallback(cb MetricsCallback, metrics Metrics) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Monitor.invokeCallback",
				"panic":    r,
			}).Error("Metrics callback panicked, monitoring continues")
		}
	}()
	cb(metrics)
}
