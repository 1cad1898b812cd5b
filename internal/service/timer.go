package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/clock"
	"github.com/keshav323/digital-clock-application/internal/storage"
)

var validate = validator.New()

// Planned-duration policy: one minute to one hour.
const (
	MinPlannedSeconds = 60
	MaxPlannedSeconds = 3600
)

type StartRequest struct {
	Kind           internal.SessionKind `json:"kind" validate:"required,oneof=work short_break long_break custom_focus"`
	PlannedSeconds int                  `json:"planned_seconds" validate:"required"`
	Task           string               `json:"task" validate:"omitempty,max=200"`
	AmbientSound   string               `json:"ambient_sound" validate:"omitempty,max=50"`
}

type PauseRequest struct {
	DeltaSeconds int `json:"delta_seconds" validate:"gte=0"`
}

type CompleteRequest struct {
	ProductivityRating *int   `json:"productivity_rating" validate:"omitempty,gte=1,lte=5"`
	Notes              string `json:"notes" validate:"omitempty,max=1000"`
}

type StopRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

// SessionStatus is the read-only projection of the active session.
type SessionStatus struct {
	Session          internal.Session `json:"session"`
	ElapsedSeconds   int              `json:"elapsed_seconds"`
	RemainingSeconds int              `json:"remaining_seconds"`
}

// CompletionResult pairs the terminal session record with the derived duration.
type CompletionResult struct {
	Session       internal.Session `json:"session"`
	ActualSeconds int              `json:"actual_seconds"`
}

// TimerEngine is the session lifecycle state machine. It holds no in-memory
// session state: every operation reads the persisted record, applies the
// transition against the current clock reading, and writes back atomically.
type TimerEngine struct {
	sessions storage.SessionRepository
	stats    *StatsAggregator
	clock    clock.Clock
	logger   internal.Logger
}

func NewTimerEngine(sessions storage.SessionRepository, stats *StatsAggregator, clk clock.Clock, logger internal.Logger) *TimerEngine {
	return &TimerEngine{sessions: sessions, stats: stats, clock: clk, logger: logger}
}

// Start creates a new active session for the user. It fails with
// internal.ErrSessionConflict when an active session already exists and with
// internal.ErrInvalidDuration when the planned duration is out of policy.
// The store's uniqueness constraint backs the pre-check, so a concurrent
// double-start still yields exactly one winner.
func (e *TimerEngine) Start(ctx context.Context, userID string, req *StartRequest) (*internal.Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.PlannedSeconds < MinPlannedSeconds || req.PlannedSeconds > MaxPlannedSeconds {
		return nil, internal.ErrInvalidDuration
	}

	active, err := e.sessions.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, internal.ErrSessionConflict
	}

	now := e.clock.Now()
	s := &internal.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           req.Kind,
		StartedAt:      now,
		PlannedSeconds: req.PlannedSeconds,
		PausedSeconds:  0,
		Task:           req.Task,
		AmbientSound:   req.AmbientSound,
		CreatedAt:      now,
	}
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	e.logger.Infof("session %s started for user %s (%s, %ds planned)", s.ID, userID, s.Kind, s.PlannedSeconds)
	return s, nil
}

// Pause adds caller-reported pause time to the active session and returns the
// cumulative paused seconds. The engine only accumulates the count; it has no
// timer of its own to suspend. The accumulator is clamped so it never exceeds
// wall-clock time elapsed since start.
func (e *TimerEngine) Pause(ctx context.Context, userID string, req *PauseRequest) (int, error) {
	if err := validate.Struct(req); err != nil {
		return 0, err
	}

	s, err := e.sessions.FindActive(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, internal.ErrNoActiveSession
	}

	paused := s.PausedSeconds + req.DeltaSeconds
	if wall := int(e.clock.Now().Sub(s.StartedAt).Seconds()); paused > wall {
		paused = wall
	}
	s.PausedSeconds = paused
	if err := e.sessions.Update(ctx, s); err != nil {
		return 0, err
	}
	return s.PausedSeconds, nil
}

// Complete ends the active session, deriving the worked duration from the
// current clock reading. The store write is conditional on the record still
// being active, so when two terminal transitions race only one commits and
// the loser surfaces internal.ErrNoActiveSession before stats are touched.
func (e *TimerEngine) Complete(ctx context.Context, userID string, req *CompleteRequest) (*CompletionResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	s, err := e.sessions.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, internal.ErrNoActiveSession
	}

	now := e.clock.Now()
	actual := s.ActualSeconds(now)
	s.EndedAt = &now
	s.Completed = true
	s.Interrupted = false
	if req.ProductivityRating != nil {
		r := *req.ProductivityRating
		s.ProductivityRating = &r
	}
	if req.Notes != "" {
		s.Notes = req.Notes
	}
	if err := e.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	e.logger.Infof("session %s completed for user %s (%ds actual)", s.ID, userID, actual)

	if _, err := e.stats.RecordCompletion(ctx, userID, actual, s.Kind == internal.KindWork); err != nil {
		return nil, err
	}
	return &CompletionResult{Session: *s, ActualSeconds: actual}, nil
}

// Stop ends the active session as interrupted. Statistics are not updated.
func (e *TimerEngine) Stop(ctx context.Context, userID string, req *StopRequest) (*CompletionResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	s, err := e.sessions.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, internal.ErrNoActiveSession
	}

	now := e.clock.Now()
	actual := s.ActualSeconds(now)
	s.EndedAt = &now
	s.Completed = false
	s.Interrupted = true
	reason := req.Reason
	if reason == "" {
		reason = "user_cancelled"
	}
	s.InterruptionReason = reason
	if err := e.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	e.logger.Infof("session %s stopped for user %s (%s)", s.ID, userID, reason)
	return &CompletionResult{Session: *s, ActualSeconds: actual}, nil
}

// Current returns the read-only projection of the active session: elapsed
// worked time and time remaining against the plan, both derived, never stored.
func (e *TimerEngine) Current(ctx context.Context, userID string) (*SessionStatus, error) {
	s, err := e.sessions.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, internal.ErrNoActiveSession
	}

	elapsed := s.ActualSeconds(e.clock.Now())
	remaining := s.PlannedSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return &SessionStatus{Session: *s, ElapsedSeconds: elapsed, RemainingSeconds: remaining}, nil
}

// HistoryPage is one page of a user's past sessions.
type HistoryPage struct {
	Sessions []internal.Session `json:"sessions"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// History lists the user's sessions, newest first, optionally filtered by
// kind and started-at range.
func (e *TimerEngine) History(ctx context.Context, userID string, kind *internal.SessionKind, from, to *time.Time, limit, offset int) (*HistoryPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if kind != nil && !kind.Valid() {
		return nil, validate.Var(string(*kind), "oneof=work short_break long_break custom_focus")
	}
	sessions, total, err := e.sessions.Query(ctx, userID, storage.SessionFilter{
		Kind:   kind,
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Sessions: sessions, Total: total, Limit: limit, Offset: offset}, nil
}
