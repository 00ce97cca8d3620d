package app

import (
	"context"
	"errors"
	"log"
	"time"

	"constitution-quest-service/internal/domain"
	"constitution-quest-service/internal/points"
	"constitution-quest-service/internal/rewards"
)

// SessionRepository abstracts how active sessions are tracked (in-memory,
// Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ContentRepository loads quiz content (from cache/backing store).
type ContentRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ProfileStore persists user profiles. The service reads then writes; it has
// no opinion on the storage format.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (domain.UserProfile, error)
	Put(ctx context.Context, profile domain.UserProfile) error
}

// CompletionStatus classifies the outcome of a completion submission.
type CompletionStatus string

const (
	// CompletionApplied means rewards were computed and persisted.
	CompletionApplied CompletionStatus = "applied"
	// CompletionBlocked means a completion for this session is already in
	// flight; the duplicate did nothing.
	CompletionBlocked CompletionStatus = "blocked"
	// CompletionAlreadyComplete means the session was finalized earlier.
	CompletionAlreadyComplete CompletionStatus = "already_complete"
	// CompletionRejected means the event failed validation; nothing changed.
	CompletionRejected CompletionStatus = "rejected"
	// CompletionSaveFailed means rewards were computed and the session is
	// finalized, but the profile write failed; RetrySave can re-publish it.
	CompletionSaveFailed CompletionStatus = "save_failed"
)

// CompletionEvent is the UI's "activity finished" signal.
type CompletionEvent struct {
	SessionID   string             `json:"sessionId"`
	Performance domain.Performance `json:"performance"`
}

// CompletionOutcome is what one submission produced. Err is set for
// validation failures and for persistence failures; duplicates are reported
// through Status alone.
type CompletionOutcome struct {
	Status CompletionStatus     `json:"status"`
	Result *domain.RewardResult `json:"result,omitempty"`
	Err    error                `json:"-"`
}

// AnswerEvent is one answer submission within a quiz session.
type AnswerEvent struct {
	SessionID     string `json:"sessionId"`
	QuestionIndex int    `json:"questionIndex"`
	AnswerIndex   int    `json:"answerIndex"`
}

// Service wires the completion guard, point calculator, and reward engine
// over the session, content, and profile stores.
type Service struct {
	sessions   SessionRepository
	content    ContentRepository
	profiles   ProfileStore
	calculator *points.Calculator
	engine     *rewards.Engine
	now        func() time.Time

	defaultDailyLimit int
}

// NewService builds a service with default scoring config and unlock rules.
func NewService(sessions SessionRepository, content ContentRepository, profiles ProfileStore) *Service {
	return NewServiceWithClock(sessions, content, profiles, time.Now)
}

// NewServiceWithClock is test-only for deterministic date keys.
func NewServiceWithClock(sessions SessionRepository, content ContentRepository, profiles ProfileStore, now func() time.Time) *Service {
	return &Service{
		sessions:          sessions,
		content:           content,
		profiles:          profiles,
		calculator:        points.NewCalculator(points.DefaultConfig()),
		engine:            rewards.NewEngine(),
		now:               now,
		defaultDailyLimit: domain.DefaultDailyCoinLimit,
	}
}

// SetCalculator overrides the scoring config (used when config supplies
// non-default constants).
func (s *Service) SetCalculator(c *points.Calculator) { s.calculator = c }

// SetDefaultDailyLimit overrides the daily coin cap applied to profiles
// created on first completion.
func (s *Service) SetDefaultDailyLimit(limit int) {
	if limit > 0 {
		s.defaultDailyLimit = limit
	}
}

// StartSession registers a new attempt. Quiz sessions preload their content
// so answers can be validated; users cannot start sessions on unknown
// quizzes.
func (s *Service) StartSession(ctx context.Context, sessionID, userID string, kind domain.ActivityKind, quizID string) (*Session, error) {
	if existing, ok := s.sessions.Get(sessionID); ok {
		return existing, nil
	}

	var quiz domain.Quiz
	if kind == domain.ActivityQuiz {
		loaded, err := s.content.GetQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}
		quiz = loaded
	}

	session := newSessionWithClock(sessionID, userID, kind, quiz, s.now)
	s.sessions.Put(session)
	return session, nil
}

// SubmitAnswer records an answer for the session's current question.
// Duplicate and out-of-order submissions are rejected with a reason, never
// an error; only a missing session is an error.
func (s *Service) SubmitAnswer(_ context.Context, event AnswerEvent) (AnswerOutcome, error) {
	session, ok := s.sessions.Get(event.SessionID)
	if !ok {
		return AnswerOutcome{}, domain.ErrSessionNotFound
	}
	outcome := session.recordAnswer(event.QuestionIndex, event.AnswerIndex)
	if !outcome.Accepted {
		log.Printf("answer rejected for session %s index %d: %s", event.SessionID, event.QuestionIndex, outcome.Reason)
	}
	return outcome, nil
}

// SubmitCompletion processes a session's completion exactly once. The
// processing lock is held across the profile-store write, so a duplicate
// event arriving before persistence resolves is blocked, not queued. The
// session is finalized even when the write fails; the computed result and
// updated profile are retained for RetrySave.
func (s *Service) SubmitCompletion(ctx context.Context, event CompletionEvent) CompletionOutcome {
	if err := event.Performance.Validate(); err != nil {
		return CompletionOutcome{Status: CompletionRejected, Err: err}
	}

	session, ok := s.sessions.Get(event.SessionID)
	if !ok {
		return CompletionOutcome{Status: CompletionRejected, Err: domain.ErrSessionNotFound}
	}

	switch prev, result := session.beginProcessing(); prev {
	case StateProcessing:
		log.Printf("duplicate completion for session %s ignored: already processing", event.SessionID)
		return CompletionOutcome{Status: CompletionBlocked}
	case StateComplete:
		return CompletionOutcome{Status: CompletionAlreadyComplete, Result: result}
	}

	perfect := isPerfect(event.Performance)

	profile, err := s.profiles.Get(ctx, session.UserID())
	if errors.Is(err, domain.ErrProfileNotFound) {
		profile, err = domain.NewUserProfile(session.UserID(), ""), nil
		profile.DailyCoinLimit = s.defaultDailyLimit
	}
	if err != nil {
		// Complete is terminal even on failure: exactly-once side effects
		// win over eventual correctness here.
		session.finalize(nil, nil, perfect)
		return CompletionOutcome{Status: CompletionSaveFailed, Err: err}
	}

	pts := s.calculator.Calculate(event.Performance, profile.CurrentStreak)
	updated, result := s.engine.ProcessCompletion(profile, pts, rewards.ActivityContext{
		Kind:    event.Performance.Kind,
		Perfect: perfect,
	}, s.todayKey())

	if err := s.profiles.Put(ctx, updated); err != nil {
		session.finalize(&result, &updated, perfect)
		return CompletionOutcome{Status: CompletionSaveFailed, Result: &result, Err: err}
	}

	session.finalize(&result, nil, perfect)
	return CompletionOutcome{Status: CompletionApplied, Result: &result}
}

// RetrySave re-publishes the profile retained after a failed completion
// write. Safe to call repeatedly; the pending profile is consumed only on
// success.
func (s *Service) RetrySave(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	pending, ok := session.takePendingSave()
	if !ok {
		return nil
	}
	if err := s.profiles.Put(ctx, *pending); err != nil {
		session.restorePendingSave(pending)
		return err
	}
	return nil
}

// Abandon terminates an in-progress session without awarding completion
// rewards. Partial progress is logged best-effort; an in-flight or finished
// completion is left alone.
func (s *Service) Abandon(_ context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !session.abandon() {
		return domain.ErrSessionComplete
	}
	answered, correct := session.Progress()
	log.Printf("session %s abandoned with %d answers recorded (%d correct)", sessionID, answered, correct)
	s.sessions.Delete(sessionID)
	return nil
}

// Subscribe returns a channel that receives the session's celebration event.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Service) Subscribe(_ context.Context, sessionID string) (<-chan Celebration, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Profile returns the stored profile for display surfaces. Callers must not
// write reward-controlled fields back through ProfileStore.Put themselves.
func (s *Service) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.profiles.Get(ctx, userID)
}

func (s *Service) todayKey() string {
	// UTC-normalized date keys: client-local dates are exploitable via
	// clock manipulation.
	return s.now().UTC().Format("2006-01-02")
}

func isPerfect(p domain.Performance) bool {
	switch p.Kind {
	case domain.ActivityQuiz:
		return p.Quiz.PerfectScore
	case domain.ActivityGame:
		return p.Game.PerfectGame
	}
	return false
}
