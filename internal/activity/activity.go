// Package activity derives an approximate "someone is speaking" signal from
// input loudness. It does not attribute speech to a role.
package activity

import (
	"sync"
	"time"
)

const (
	DefaultThreshold = 0.05
	DefaultHold      = 2 * time.Second
	DefaultInterval  = 50 * time.Millisecond
)

// Detector raises on loud input and clears after Hold of continuous silence.
type Detector struct {
	Threshold float64
	Hold      time.Duration

	speaking bool
	lastLoud time.Time
}

// NewDetector returns a detector with defaults applied to zero values.
func NewDetector(threshold float64, hold time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Detector{Threshold: threshold, Hold: hold}
}

// Observe feeds one level sample taken at now and returns the speaking signal.
func (d *Detector) Observe(level float64, now time.Time) bool {
	if level > d.Threshold {
		d.lastLoud = now
		d.speaking = true
		return true
	}
	if d.speaking && now.Sub(d.lastLoud) >= d.Hold {
		d.speaking = false
	}
	return d.speaking
}

// Speaking returns the current signal.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Reset clears the signal.
func (d *Detector) Reset() {
	d.speaking = false
	d.lastLoud = time.Time{}
}

// LevelSource reports the latest normalized loudness in [0,1]. Capture reports
// time-domain RMS, not frequency-band energy.
type LevelSource interface {
	Level() float64
}

// Sink receives the derived signal.
type Sink interface {
	SetSpeaking(bool)
	SetLevel(float64)
}

// Monitor polls a level source at a fixed render rate, independent of chunk timing.
type Monitor struct {
	source   LevelSource
	sink     Sink
	detector *Detector
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewMonitor builds a monitor. A zero interval uses DefaultInterval.
func NewMonitor(source LevelSource, sink Sink, detector *Detector, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if detector == nil {
		detector = NewDetector(0, 0)
	}
	return &Monitor{
		source:   source,
		sink:     sink,
		detector: detector,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop once.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	go m.loop()
}

// Stop halts the loop and clears the signal. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	close(m.stopCh)
	m.mu.Unlock()

	if started {
		<-m.done
	}
	m.detector.Reset()
	if m.sink != nil {
		m.sink.SetLevel(0)
		m.sink.SetSpeaking(false)
	}
}

func (m *Monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	level := m.source.Level()
	speaking := m.detector.Observe(level, m.now())
	if m.sink != nil {
		m.sink.SetLevel(level)
		m.sink.SetSpeaking(speaking)
	}
}
