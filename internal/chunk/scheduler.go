// Package chunk slices continuous capture into fixed-interval audio chunks.
package chunk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultMinBytes = 1000
)

// Chunk is one sealed slice of session audio.
type Chunk struct {
	SessionID string
	Seq       int
	PCM       []byte
	SealedAt  time.Time
}

// Source hands out the PCM accumulated since the previous call.
type Source interface {
	Seal() []byte
}

// Sink accepts sealed chunks for processing. Submit must not wait for the
// chunk to be processed.
type Sink interface {
	Submit(context.Context, Chunk) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(context.Context, Chunk) error

func (f SinkFunc) Submit(ctx context.Context, c Chunk) error {
	return f(ctx, c)
}

// Config controls chunk timing and the discard threshold.
type Config struct {
	Interval time.Duration
	MinBytes int
}

// Scheduler seals audio on a fixed timer and flushes the remainder on Stop.
type Scheduler struct {
	sessionID string
	source    Source
	sink      Sink
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	sealMu    sync.Mutex
	seq       int
	carry     *Chunk // sealed but not accepted before its submit ctx ended
	submitted int
	discarded int

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewScheduler builds a scheduler. Zero config values use the defaults.
func NewScheduler(sessionID string, source Source, sink Sink, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	return &Scheduler{
		sessionID: sessionID,
		source:    source,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the interval timer. ctx bounds submissions made by the timer.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	// A tick blocked on a full sink must not hold Stop off the trailing seal.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.SealAndSubmit(ctx); err != nil {
				s.logError("submit chunk failed", err)
			}
		}
	}
}

// SealAndSubmit seals the pending audio and hands it to the sink unless it is
// below the minimum size. It reports the chunk and whether it was submitted.
// A chunk whose submit was cut short by ctx is resubmitted first on the next
// call, keeping its sequence number.
func (s *Scheduler) SealAndSubmit(ctx context.Context) (Chunk, bool, error) {
	s.sealMu.Lock()
	defer s.sealMu.Unlock()

	if s.carry != nil {
		c := *s.carry
		if err := s.sink.Submit(ctx, c); err != nil {
			return c, false, err
		}
		s.carry = nil
		s.submitted++
	}

	pcm := s.source.Seal()
	if len(pcm) < s.cfg.MinBytes {
		if len(pcm) > 0 {
			s.discarded++
			s.logDebug("chunk below minimum size discarded", "bytes", len(pcm))
		}
		return Chunk{}, false, nil
	}

	s.seq++
	c := Chunk{
		SessionID: s.sessionID,
		Seq:       s.seq,
		PCM:       pcm,
		SealedAt:  s.now(),
	}
	if err := s.sink.Submit(ctx, c); err != nil {
		if ctx.Err() != nil {
			s.carry = &c
		}
		return c, false, err
	}
	s.submitted++
	return c, true, nil
}

// Stop cancels the timer, then seals and submits the trailing chunk exactly
// once. Later calls are no-ops.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if started {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, _, err := s.SealAndSubmit(ctx); err != nil {
		return err
	}
	return nil
}

// Stats reports submitted and discarded chunk counts.
func (s *Scheduler) Stats() (submitted int, discarded int) {
	s.sealMu.Lock()
	defer s.sealMu.Unlock()
	return s.submitted, s.discarded
}

func (s *Scheduler) logError(msg string, err error) {
	if s.logger == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error(msg, "session_id", s.sessionID, "error", err.Error())
}

func (s *Scheduler) logDebug(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, append([]any{"session_id", s.sessionID}, args...)...)
}
