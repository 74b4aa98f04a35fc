package session

import (
	"context"
	"errors"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/live"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

var (
	// ErrQuotaExceeded means the entitlement gate refused a new session.
	ErrQuotaExceeded = errors.New("practice quota exceeded")
	// ErrPipelineUnavailable means no pipeline factory was wired.
	ErrPipelineUnavailable = errors.New("capture pipeline not configured")
)

// Pipeline is the capture and processing machinery of one session.
type Pipeline interface {
	Start(context.Context) error
	Pause()
	Resume()
	// Stop ends capture and submits the trailing chunk. It does not wait for
	// chunks already in flight.
	Stop(context.Context) error
	// Drain waits for in-flight chunks, bounded by ctx.
	Drain(context.Context) error
}

// PipelineFactory builds the pipeline for a newly created session.
type PipelineFactory func(practice.Session, *live.State) (Pipeline, error)

func unavailablePipeline(practice.Session, *live.State) (Pipeline, error) {
	return nil, ErrPipelineUnavailable
}
