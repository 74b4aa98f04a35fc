// Package capture runs continuous recording for one practice session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/activity"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/audio"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/chunk"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("capture already started")

// Recorder is a running capture stream.
type Recorder interface {
	Seal() []byte
	Level() float64
	Pause()
	Resume()
	Halt()
	Close() error
	BytesCaptured() int64
}

// Acquirer opens a recorder on the best available source.
type Acquirer func(ctx context.Context) (Recorder, audio.Selection, error)

// PulseAcquirer selects a Pulse source, preferring input and falling back to fallback.
func PulseAcquirer(input, fallback string) Acquirer {
	return func(ctx context.Context) (Recorder, audio.Selection, error) {
		selection, err := audio.SelectDevice(ctx, input, fallback)
		if err != nil {
			return nil, audio.Selection{}, err
		}
		c, err := audio.StartCapture(ctx, selection.Device)
		if err != nil {
			return nil, selection, err
		}
		return c, selection, nil
	}
}

// Config tunes the scheduler and the speaking monitor.
type Config struct {
	Chunk         chunk.Config
	LevelInterval time.Duration
	Threshold     float64
	Hold          time.Duration
}

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

// Engine owns the recorder, the activity monitor, and the chunk scheduler.
type Engine struct {
	sessionID string
	acquire   Acquirer
	sink      chunk.Sink
	signal    activity.Sink
	cfg       Config
	logger    *slog.Logger

	mu        sync.Mutex
	state     engineState
	recorder  Recorder
	selection audio.Selection
	monitor   *activity.Monitor
	scheduler *chunk.Scheduler
}

// NewEngine wires an engine. signal receives the approximate speaking indicator.
func NewEngine(sessionID string, acquire Acquirer, sink chunk.Sink, signal activity.Sink, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		sessionID: sessionID,
		acquire:   acquire,
		sink:      sink,
		signal:    signal,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start acquires audio and begins recording. Acquisition failures are returned as is.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateIdle {
		return ErrAlreadyStarted
	}

	recorder, selection, err := e.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire audio: %w", err)
	}
	if selection.Warning != "" && e.logger != nil {
		e.logger.Warn(selection.Warning, "session_id", e.sessionID)
	}

	e.recorder = recorder
	e.selection = selection
	e.monitor = activity.NewMonitor(recorder, e.signal, activity.NewDetector(e.cfg.Threshold, e.cfg.Hold), e.cfg.LevelInterval)
	e.scheduler = chunk.NewScheduler(e.sessionID, recorder, e.sink, e.cfg.Chunk, e.logger)
	e.monitor.Start()
	e.scheduler.Start(ctx)
	e.state = stateRunning

	if e.logger != nil {
		e.logger.Info("capture started",
			"session_id", e.sessionID,
			"device", selection.Device.ID,
			"fallback", selection.Fallback,
		)
	}
	return nil
}

// Pause suspends recording without releasing the stream.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateRunning {
		e.recorder.Pause()
	}
}

// Resume continues a paused recording.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateRunning {
		e.recorder.Resume()
	}
}

// Stop tears capture down. When it returns the monitor is halted, the timer is
// cancelled, the trailing chunk has been submitted once, and the stream is
// released. Chunks already handed to the sink are not awaited.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRunning {
		e.state = stateStopped
		return nil
	}
	e.state = stateStopped

	e.monitor.Stop()
	e.recorder.Halt()
	flushErr := e.scheduler.Stop(ctx)
	closeErr := e.recorder.Close()

	if e.logger != nil {
		submitted, discarded := e.scheduler.Stats()
		e.logger.Info("capture stopped",
			"session_id", e.sessionID,
			"bytes_captured", e.recorder.BytesCaptured(),
			"chunks_submitted", submitted,
			"chunks_discarded", discarded,
		)
	}

	if flushErr != nil {
		flushErr = fmt.Errorf("flush trailing chunk: %w", flushErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("release capture: %w", closeErr)
	}
	return errors.Join(flushErr, closeErr)
}

// Selection reports the source chosen at Start.
func (e *Engine) Selection() audio.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Stats reports chunk counts. Zero before Start.
func (e *Engine) Stats() (submitted int, discarded int) {
	e.mu.Lock()
	scheduler := e.scheduler
	e.mu.Unlock()
	if scheduler == nil {
		return 0, 0
	}
	return scheduler.Stats()
}
