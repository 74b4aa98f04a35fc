// Package session drives one practice session from entitlement check to debrief.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/debrief"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/entitlement"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/fsm"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/live"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/logging"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
)

const (
	DefaultDrainTimeout = 30 * time.Second
	stopTimeout         = 10 * time.Second
)

type action int

const (
	actionPause action = iota + 1
	actionResume
	actionStop
	actionCancel
)

// Result is the outcome of one Run.
type Result struct {
	State      fsm.State
	Session    practice.Session
	Quota      entitlement.Decision
	Debrief    *debrief.Report
	Cancelled  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Indicator signals lifecycle transitions to the user.
type Indicator interface {
	ShowRecording(context.Context)
	ShowPaused(context.Context)
	ShowResumed(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowPaused(context.Context)        {}
func (noopIndicator) ShowResumed(context.Context)       {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) CueCancel(context.Context)         {}

// Store is the persistence the controller needs.
type Store interface {
	store.SessionStore
	store.EventStore
}

// Config is the static shape of the sessions this controller runs.
type Config struct {
	Mode         string
	Difficulty   string
	Question     string
	DrainTimeout time.Duration
	RubricScale  float64
}

// StatusData is the payload of a status response.
type StatusData struct {
	State          string    `json:"state"`
	SessionID      string    `json:"session_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	QuotaRemaining int       `json:"quota_remaining"`
}

// Controller owns the session state machine. Run drives it; Handle serves IPC.
type Controller struct {
	logger      *slog.Logger
	gate        entitlement.Gate
	store       Store
	newPipeline PipelineFactory
	live        *live.State
	indicator   Indicator
	cfg         Config
	now         func() time.Time

	mu        sync.RWMutex
	state     fsm.State
	sessionID string
	startedAt time.Time
	quota     entitlement.Decision

	actions chan action
}

// NewController wires a controller. Nil collaborators fall back to safe defaults,
// except st which is required.
func NewController(logger *slog.Logger, gate entitlement.Gate, st Store, factory PipelineFactory, state *live.State, indicator Indicator, cfg Config) *Controller {
	if gate == nil {
		gate = entitlement.Unlimited{}
	}
	if factory == nil {
		factory = unavailablePipeline
	}
	if state == nil {
		state = live.New()
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.RubricScale <= 0 {
		cfg.RubricScale = debrief.DefaultScale
	}
	return &Controller{
		logger:      logging.OrDiscard(logger),
		gate:        gate,
		store:       st,
		newPipeline: factory,
		live:        state,
		indicator:   indicator,
		cfg:         cfg,
		now:         time.Now,
		state:       fsm.StateIdle,
		actions:     make(chan action, 4),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Live exposes the session aggregator for renderers.
func (c *Controller) Live() *live.State {
	return c.live
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run executes one session from start until stop, cancel, or ctx ends.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: c.now()}
	finish := func() Result {
		result.State = c.State()
		result.FinishedAt = c.now()
		return result
	}

	decision, err := c.gate.Check(ctx)
	if err != nil {
		result.Err = fmt.Errorf("check entitlement: %w", err)
		return finish()
	}
	result.Quota = decision
	c.mu.Lock()
	c.quota = decision
	c.mu.Unlock()
	if !decision.Allowed {
		result.Err = fmt.Errorf("%w: %s", ErrQuotaExceeded, decision.Reason)
		return finish()
	}

	if err := c.transition(fsm.EventStart); err != nil {
		result.Err = err
		return finish()
	}

	sess := practice.Session{
		ID:         practice.NewID(),
		Mode:       c.cfg.Mode,
		Difficulty: c.cfg.Difficulty,
		Status:     practice.StatusInProgress,
		StartedAt:  c.now(),
	}
	log := c.logger.With("session_id", sess.ID)
	if err := c.store.CreateSession(ctx, sess); err != nil {
		c.toErrorAndReset()
		result.Err = fmt.Errorf("create session: %w", err)
		return finish()
	}
	result.Session = sess
	c.live.Reset(sess.ID)
	c.appendEvent(ctx, log, sess.ID, practice.PracticeEvent{Type: practice.EventSessionStart})
	if c.cfg.Question != "" {
		c.appendEvent(ctx, log, sess.ID, practice.PracticeEvent{Type: practice.EventQuestionAsked, TranscriptText: c.cfg.Question})
	}

	pipe, err := c.newPipeline(sess, c.live)
	if err == nil {
		err = pipe.Start(ctx)
	}
	if err != nil {
		log.Error("session start failed", "error", err.Error())
		c.indicator.ShowError(context.Background(), "Unable to start capture")
		result.Session = c.finishSession(context.Background(), log, sess, practice.StatusAbandoned)
		c.toErrorAndReset()
		result.Err = err
		return finish()
	}

	c.mu.Lock()
	c.sessionID = sess.ID
	c.startedAt = sess.StartedAt
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sessionID = ""
		c.startedAt = time.Time{}
		c.mu.Unlock()
	}()

	c.indicator.ShowRecording(ctx)
	log.Info("session started", "mode", sess.Mode, "difficulty", sess.Difficulty, "quota_remaining", decision.Remaining)

	for {
		select {
		case <-ctx.Done():
			c.teardown(log, pipe)
			result.Session = c.finishSession(context.Background(), log, sess, practice.StatusAbandoned)
			c.indicator.CueCancel(context.Background())
			_ = c.transition(fsm.EventCancel)
			result.Cancelled = true
			result.Err = ctx.Err()
			return finish()

		case a := <-c.actions:
			switch a {
			case actionPause:
				if err := c.transition(fsm.EventPause); err != nil {
					log.Debug("pause ignored", "error", err.Error())
					continue
				}
				pipe.Pause()
				c.indicator.ShowPaused(ctx)
				log.Info("session paused")

			case actionResume:
				if err := c.transition(fsm.EventResume); err != nil {
					log.Debug("resume ignored", "error", err.Error())
					continue
				}
				pipe.Resume()
				c.indicator.ShowResumed(ctx)
				log.Info("session resumed")

			case actionCancel:
				c.teardown(log, pipe)
				result.Session = c.finishSession(context.Background(), log, sess, practice.StatusAbandoned)
				c.indicator.CueCancel(context.Background())
				_ = c.transition(fsm.EventCancel)
				result.Cancelled = true
				log.Info("session cancelled")
				return finish()

			case actionStop:
				if err := c.transition(fsm.EventStop); err != nil {
					c.toErrorAndReset()
					result.Err = err
					return finish()
				}
				c.indicator.CueStop(context.Background())
				c.teardown(log, pipe)
				result.Session = c.finishSession(context.Background(), log, sess, practice.StatusCompleted)

				drainCtx, cancel := context.WithTimeout(context.Background(), c.cfg.DrainTimeout)
				if err := pipe.Drain(drainCtx); err != nil {
					log.Warn("chunks still in flight after drain timeout", "error", err.Error())
				}
				cancel()

				report, err := c.computeDebrief(context.Background(), sess.ID)
				if err != nil {
					log.Error("debrief failed", "error", err.Error())
				} else {
					result.Debrief = &report
					log.Info("session completed",
						"overall_score", report.OverallScore,
						"feedback_count", report.FeedbackCount,
						"duration_minutes", result.Session.DurationMinutes,
					)
				}

				c.indicator.CueComplete(context.Background())
				if err := c.transition(fsm.EventStopped); err != nil {
					result.Err = err
				}
				return finish()

			default:
				c.teardown(log, pipe)
				result.Session = c.finishSession(context.Background(), log, sess, practice.StatusAbandoned)
				c.toErrorAndReset()
				result.Err = fmt.Errorf("unknown action %d", a)
				return finish()
			}
		}
	}
}

// teardown stops capture with a fresh deadline so it runs even after ctx ends.
func (c *Controller) teardown(log *slog.Logger, pipe Pipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := pipe.Stop(ctx); err != nil {
		log.Error("stop capture failed", "error", err.Error())
	}
}

// finishSession marks the session and appends session_end. Failures are logged;
// the returned record reflects the intended final state either way.
func (c *Controller) finishSession(ctx context.Context, log *slog.Logger, sess practice.Session, status practice.SessionStatus) practice.Session {
	ended := c.now()
	minutes := int(math.Round(ended.Sub(sess.StartedAt).Minutes()))
	if err := c.store.FinishSession(ctx, sess.ID, status, ended, minutes); err != nil {
		log.Error("finish session failed", "status", string(status), "error", err.Error())
	}
	c.appendEvent(ctx, log, sess.ID, practice.PracticeEvent{Type: practice.EventSessionEnd})

	sess.Status = status
	sess.EndedAt = &ended
	sess.DurationMinutes = minutes
	return sess
}

func (c *Controller) computeDebrief(ctx context.Context, sessionID string) (debrief.Report, error) {
	events, err := c.store.ListAIFeedback(ctx, sessionID)
	if err != nil {
		return debrief.Report{}, fmt.Errorf("list feedback: %w", err)
	}
	return debrief.Compute(sessionID, events, c.cfg.RubricScale), nil
}

func (c *Controller) appendEvent(ctx context.Context, log *slog.Logger, sessionID string, ev practice.PracticeEvent) {
	if _, err := c.store.AppendEvent(ctx, sessionID, ev); err != nil {
		log.Error("persist event failed", "event_type", string(ev.Type), "error", err.Error())
	}
}

// Handle serves IPC commands for the running session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.status()
	case ipc.CommandSnapshot:
		resp := c.response()
		resp.OK = true
		return ipc.WithData(resp, c.live.Snapshot())
	case ipc.CommandPause:
		return c.request(actionPause, "pause", fsm.StateRecording)
	case ipc.CommandResume:
		return c.request(actionResume, "resume", fsm.StatePaused)
	case ipc.CommandStop:
		return c.request(actionStop, "stop", fsm.StateRecording, fsm.StatePaused)
	case ipc.CommandCancel:
		return c.request(actionCancel, "cancel", fsm.StateRecording, fsm.StatePaused)
	default:
		resp := c.response()
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}
}

func (c *Controller) response() ipc.Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ipc.Response{State: string(c.state), SessionID: c.sessionID}
}

func (c *Controller) status() ipc.Response {
	c.mu.RLock()
	data := StatusData{
		State:          string(c.state),
		SessionID:      c.sessionID,
		StartedAt:      c.startedAt,
		QuotaRemaining: c.quota.Remaining,
	}
	c.mu.RUnlock()

	resp := c.response()
	resp.OK = true
	resp.Message = "status"
	return ipc.WithData(resp, data)
}

// request enqueues a for Run when the current state allows it.
func (c *Controller) request(a action, verb string, allowed ...fsm.State) ipc.Response {
	resp := c.response()
	state := fsm.State(resp.State)
	if state == fsm.StateStopping {
		resp.Error = "session is already stopping"
		return resp
	}

	permitted := false
	for _, s := range allowed {
		if s == state {
			permitted = true
			break
		}
	}
	if !permitted {
		resp.Error = fmt.Sprintf("cannot %s from state %s", verb, state)
		return resp
	}

	select {
	case c.actions <- a:
		resp.OK = true
		resp.Message = verb + " requested"
	default:
		resp.OK = true
		resp.Message = verb + " already pending"
	}
	return resp
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

// IsQuotaExceeded reports whether err came from a refused entitlement check.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
