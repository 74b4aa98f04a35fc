package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Capture is the recording half of a live pipeline.
type Capture interface {
	Start(ctx context.Context) error
	Pause()
	Resume()
	Stop(ctx context.Context) error
}

// Live joins capture to the processing queue for one session.
type Live struct {
	capture Capture
	queue   *Queue
}

// NewLive returns a live pipeline. capture must submit its chunks to queue.
func NewLive(capture Capture, queue *Queue) *Live {
	return &Live{capture: capture, queue: queue}
}

// Start launches the workers, then recording. Workers outlive ctx so chunks
// in flight at stop can finish.
func (l *Live) Start(ctx context.Context) error {
	l.queue.Start(context.WithoutCancel(ctx))
	if err := l.capture.Start(ctx); err != nil {
		l.queue.Close()
		return err
	}
	return nil
}

func (l *Live) Pause()  { l.capture.Pause() }
func (l *Live) Resume() { l.capture.Resume() }

// Stop ends recording, flushing the trailing chunk into the queue, then closes
// the queue. It does not wait for queued chunks.
func (l *Live) Stop(ctx context.Context) error {
	err := l.capture.Stop(ctx)
	l.queue.Close()
	if err != nil && !errors.Is(err, ErrQueueClosed) {
		return fmt.Errorf("stop capture: %w", err)
	}
	return nil
}

// Drain waits for queued chunks to finish, bounded by ctx.
func (l *Live) Drain(ctx context.Context) error {
	return l.queue.Wait(ctx)
}
