// Package pipeline turns sealed chunks into transcript entries, coaching
// feedback, and persisted practice events.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/attribution"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/audio"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/blob"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/chunk"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/coach"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/live"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/logging"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/speech"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/transcribe"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/transcript"
)

// Defaults for Config zero values.
const (
	DefaultUploadTimeout     = 10 * time.Second
	DefaultTranscribeTimeout = 30 * time.Second
	DefaultCoachTimeout      = 30 * time.Second
	DefaultSpeakTimeout      = 20 * time.Second
	DefaultMinCandidateChars = 50
	DefaultMaxStrengths      = 2
	DefaultMaxImprovements   = 2
	DefaultMaxTips           = 1
)

// Interview is the static context sent with every coaching request.
type Interview struct {
	Mode         string
	Difficulty   string
	Question     string
	Competencies []string
}

// SessionContext is the per-session state every stage works against.
type SessionContext struct {
	SessionID string
	Interview Interview
	Speakers  *attribution.Map
	State     *live.State
}

// NewSessionContext returns a context with a fresh speaker map.
func NewSessionContext(sessionID string, interview Interview, state *live.State) *SessionContext {
	if state == nil {
		state = live.New()
	}
	return &SessionContext{
		SessionID: sessionID,
		Interview: interview,
		Speakers:  attribution.NewMap(),
		State:     state,
	}
}

// Config bounds external calls and caps derived suggestions.
type Config struct {
	UploadTimeout     time.Duration
	TranscribeTimeout time.Duration
	CoachTimeout      time.Duration
	SpeakTimeout      time.Duration
	MinCandidateChars int
	MaxStrengths      int
	MaxImprovements   int
	MaxTips           int
	SampleRate        int
	SpeakFeedback     bool
}

func (c Config) withDefaults() Config {
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = DefaultUploadTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if c.CoachTimeout <= 0 {
		c.CoachTimeout = DefaultCoachTimeout
	}
	if c.SpeakTimeout <= 0 {
		c.SpeakTimeout = DefaultSpeakTimeout
	}
	if c.MinCandidateChars <= 0 {
		c.MinCandidateChars = DefaultMinCandidateChars
	}
	if c.MaxStrengths <= 0 {
		c.MaxStrengths = DefaultMaxStrengths
	}
	if c.MaxImprovements <= 0 {
		c.MaxImprovements = DefaultMaxImprovements
	}
	switch {
	case c.MaxTips == 0:
		c.MaxTips = DefaultMaxTips
	case c.MaxTips < 0:
		c.MaxTips = 0
	}
	if c.SampleRate <= 0 {
		c.SampleRate = audio.SampleRate
	}
	return c
}

// Stage names where chunk processing ended.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageTranscribe Stage = "transcribe"
	StageNoSpeech   Stage = "no_speech"
	StageAttributed Stage = "attributed"
	StageCoach      Stage = "coach"
	StageCoached    Stage = "coached"
)

// Outcome describes what processing one chunk produced.
type Outcome struct {
	Seq           int
	Ref           blob.Ref
	Stage         Stage
	Entries       []practice.TranscriptEntry
	CandidateText string
	Feedback      *coach.Feedback
	Err           error
}

// Processor runs the per-chunk pipeline. Every failure is logged and folded
// into the Outcome; nothing propagates to the caller.
type Processor struct {
	blobs       blob.Store
	transcriber transcribe.Transcriber
	coach       coach.Coach
	events      store.EventStore
	speaker     speech.Speaker
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

// NewProcessor wires a processor. speaker may be nil when audible coaching is off.
func NewProcessor(blobs blob.Store, transcriber transcribe.Transcriber, c coach.Coach, events store.EventStore, speaker speech.Speaker, cfg Config, logger *slog.Logger) *Processor {
	if speaker == nil {
		speaker = speech.Silent{}
	}
	return &Processor{
		blobs:       blobs,
		transcriber: transcriber,
		coach:       c,
		events:      events,
		speaker:     speaker,
		cfg:         cfg.withDefaults(),
		logger:      logging.OrDiscard(logger),
		now:         time.Now,
	}
}

// Process handles one chunk end to end.
func (p *Processor) Process(ctx context.Context, sc *SessionContext, c chunk.Chunk) Outcome {
	out := Outcome{Seq: c.Seq, Stage: StageUpload}
	log := p.logger.With("session_id", sc.SessionID, "chunk_seq", c.Seq)

	wav := audio.EncodeWAV(c.PCM, p.cfg.SampleRate, 1)
	ref, err := p.upload(ctx, sc.SessionID, c.Seq, wav)
	if err != nil {
		log.Error("chunk upload failed", "error", err.Error())
		out.Err = err
		return out
	}
	out.Ref = ref

	out.Stage = StageTranscribe
	result, err := p.transcribe(ctx, transcribe.Request{SessionID: sc.SessionID, Seq: c.Seq, Ref: ref, Audio: wav})
	if err != nil {
		log.Error("chunk transcription failed", "error", err.Error())
		out.Err = err
		return out
	}

	text := transcript.Clean(result.Transcript)
	if text == "" && len(result.Segments) > 0 {
		parts := make([]string, 0, len(result.Segments))
		for _, seg := range result.Segments {
			parts = append(parts, seg.Text)
		}
		text = transcript.Assemble(parts)
	}
	if transcript.IsNoSpeech(text) {
		out.Stage = StageNoSpeech
		log.Debug("chunk has no speech", "chars", transcript.Length(text))
		return out
	}

	out.Stage = StageAttributed
	entries, candidate := p.attribute(sc, c.Seq, text, result.Segments)
	out.Entries = entries
	out.CandidateText = candidate
	sc.State.AppendEntries(entries...)
	p.persistTurn(ctx, log, sc, c.Seq, ref, text, entries)

	if transcript.Length(candidate) <= p.cfg.MinCandidateChars {
		log.Debug("candidate text below coaching threshold", "chars", transcript.Length(candidate))
		return out
	}

	out.Stage = StageCoach
	fb, err := p.coachAnswer(ctx, sc, candidate)
	if err != nil {
		log.Error("coaching failed", "error", err.Error())
		out.Err = err
		return out
	}
	out.Stage = StageCoached
	out.Feedback = &fb
	p.applyFeedback(sc, fb)
	p.persistFeedback(ctx, log, sc, c.Seq, fb)
	p.speak(ctx, log, fb)
	return out
}

func (p *Processor) upload(ctx context.Context, sessionID string, seq int, wav []byte) (blob.Ref, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.UploadTimeout)
	defer cancel()
	ref, err := p.blobs.Put(ctx, blob.ChunkPath(sessionID, seq), wav)
	if err != nil {
		return "", fmt.Errorf("upload chunk: %w", err)
	}
	return ref, nil
}

func (p *Processor) transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()
	result, err := p.transcriber.Transcribe(ctx, req)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("transcribe chunk: %w", err)
	}
	return result, nil
}

// attribute resolves a role per segment. Without segmentation, including an
// empty segment list, the whole transcript is one segment and the question
// flag comes from a text heuristic.
func (p *Processor) attribute(sc *SessionContext, seq int, text string, segments []transcribe.Segment) ([]practice.TranscriptEntry, string) {
	if len(segments) == 0 {
		segments = []transcribe.Segment{{
			SpeakerLabel: attribution.UnlabeledSpeaker,
			Text:         text,
			IsQuestion:   transcript.LooksLikeQuestion(text),
		}}
	}

	now := p.now()
	entries := make([]practice.TranscriptEntry, 0, len(segments))
	var candidate []string
	for _, seg := range segments {
		segText := transcript.Clean(seg.Text)
		if segText == "" || transcript.IsMarker(segText) {
			continue
		}
		label := strings.TrimSpace(seg.SpeakerLabel)
		if label == "" {
			label = attribution.UnlabeledSpeaker
		}

		decision := sc.Speakers.Resolve(label, seg.IsQuestion)
		entries = append(entries, practice.TranscriptEntry{
			ID:        practice.NewID(),
			Speaker:   decision.Role,
			Text:      segText,
			Timestamp: now,
			ChunkSeq:  seq,
		})
		if decision.Role == practice.RoleCandidate {
			candidate = append(candidate, segText)
		}
	}
	return entries, strings.Join(candidate, " ")
}

func (p *Processor) persistTurn(ctx context.Context, log *slog.Logger, sc *SessionContext, seq int, ref blob.Ref, text string, entries []practice.TranscriptEntry) {
	p.appendEvent(ctx, log, sc.SessionID, practice.PracticeEvent{
		Type:           practice.EventUserResponse,
		TranscriptText: text,
		AudioRef:       string(ref),
		ChunkSeq:       seq,
	})
	for _, entry := range entries {
		if entry.Speaker != practice.RoleInterviewer {
			continue
		}
		p.appendEvent(ctx, log, sc.SessionID, practice.PracticeEvent{
			Type:           practice.EventQuestionAsked,
			TranscriptText: entry.Text,
			ChunkSeq:       seq,
		})
	}
}

func (p *Processor) coachAnswer(ctx context.Context, sc *SessionContext, candidate string) (coach.Feedback, error) {
	question := sc.State.LastQuestion()
	if question == "" {
		question = sc.Interview.Question
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CoachTimeout)
	defer cancel()
	return p.coach.Coach(ctx, coach.Request{
		Transcript:      candidate,
		QuestionContext: question,
		Competencies:    sc.Interview.Competencies,
		Difficulty:      sc.Interview.Difficulty,
	})
}

func (p *Processor) applyFeedback(sc *SessionContext, fb coach.Feedback) {
	now := p.now()
	var suggestions []practice.CoachingSuggestion
	add := func(items []string, limit int, kind practice.SuggestionKind) {
		for i, text := range items {
			if i >= limit {
				return
			}
			suggestions = append(suggestions, practice.CoachingSuggestion{
				ID:        practice.NewID(),
				Text:      text,
				Kind:      kind,
				Timestamp: now,
			})
		}
	}
	add(fb.Strengths, p.cfg.MaxStrengths, practice.SuggestionStrength)
	add(fb.Improvements, p.cfg.MaxImprovements, practice.SuggestionImprovement)
	add(fb.Tips, p.cfg.MaxTips, practice.SuggestionTip)

	sc.State.AppendSuggestions(suggestions...)
	sc.State.ReplaceRubric(fb.Rubric)
	if fb.StructuringHints != nil {
		if draft := fb.StructuringHints.Draft(); draft != "" {
			sc.State.SetAnswerDraft(draft)
		}
	}
}

func (p *Processor) persistFeedback(ctx context.Context, log *slog.Logger, sc *SessionContext, seq int, fb coach.Feedback) {
	p.appendEvent(ctx, log, sc.SessionID, practice.PracticeEvent{
		Type: practice.EventAIFeedback,
		Feedback: &practice.Feedback{
			Overall:      fb.OverallFeedback,
			Strengths:    fb.Strengths,
			Improvements: fb.Improvements,
			Spoken:       fb.SpokenFeedback,
		},
		Rubric:   fb.RubricMap(),
		ChunkSeq: seq,
	})
}

func (p *Processor) speak(ctx context.Context, log *slog.Logger, fb coach.Feedback) {
	if !p.cfg.SpeakFeedback || fb.SpokenFeedback == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.SpeakTimeout)
	defer cancel()
	if err := p.speaker.Speak(ctx, fb.SpokenFeedback); err != nil {
		log.Warn("spoken feedback failed", "error", err.Error())
	}
}

// appendEvent is best effort: a failed write is logged and live state is kept.
func (p *Processor) appendEvent(ctx context.Context, log *slog.Logger, sessionID string, ev practice.PracticeEvent) {
	if p.events == nil {
		return
	}
	if _, err := p.events.AppendEvent(ctx, sessionID, ev); err != nil {
		log.Error("persist event failed", "event_type", string(ev.Type), "error", err.Error())
	}
}
