package app

import (
	"sync"
	"time"

	"constitution-quest-service/internal/domain"
)

// SessionState is the completion-guard state machine: idle -> processing ->
// complete. Complete is terminal; a session is never reprocessed once
// finalized, even if reward processing failed.
type SessionState int

const (
	StateIdle SessionState = iota
	StateProcessing
	StateComplete
)

// Answer rejection reasons. These are expected outcomes, not errors.
const (
	ReasonAlreadyAnswered = "already_answered"
	ReasonOutOfOrder      = "out_of_order"
	ReasonInvalidOption   = "invalid_option"
	ReasonSessionComplete = "session_complete"
)

// AnswerOutcome reports whether an answer submission was recorded.
type AnswerOutcome struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Correct  bool   `json:"correct"`
}

// Celebration is the payload the UI renders reward modals from.
type Celebration struct {
	SessionID            string   `json:"sessionId"`
	AchievementsUnlocked []string `json:"achievementsUnlocked"`
	BadgesEarned         []string `json:"badgesEarned"`
	LevelUp              bool     `json:"levelUp"`
	PerfectScore         bool     `json:"perfectScore"`
}

// Session tracks one attempt at a quiz or game. It owns the per-question
// answer ledger and the completion lock; all access goes through its mutex
// because duplicate UI events can interleave with an in-flight completion.
type Session struct {
	id        string
	userID    string
	kind      domain.ActivityKind
	quiz      domain.Quiz
	createdAt time.Time
	now       func() time.Time

	mu          sync.Mutex
	state       SessionState
	nextIndex   int
	correct     int
	perfect     bool
	result      *domain.RewardResult
	pendingSave *domain.UserProfile
	subscribers map[chan Celebration]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, userID string, kind domain.ActivityKind, quiz domain.Quiz) *Session {
	return newSessionWithClock(id, userID, kind, quiz, time.Now)
}

func newSessionWithClock(id, userID string, kind domain.ActivityKind, quiz domain.Quiz, now func() time.Time) *Session {
	return &Session{
		id:          id,
		userID:      userID,
		kind:        kind,
		quiz:        quiz,
		createdAt:   now(),
		now:         now,
		subscribers: make(map[chan Celebration]struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// State returns the current guard state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AnswersRecorded returns how many answers have been accepted so far.
func (s *Session) AnswersRecorded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextIndex
}

// Progress returns the answered and correct counts, used for best-effort
// partial-progress reporting when a session is abandoned.
func (s *Session) Progress() (answered, correct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextIndex, s.correct
}

// recordAnswer accepts an answer only for the exact next question index.
// Re-submitting an answered index and skipping ahead are both rejected;
// neither is an error.
func (s *Session) recordAnswer(questionIndex, answerIndex int) AnswerOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return AnswerOutcome{Reason: ReasonSessionComplete}
	}
	if questionIndex < s.nextIndex {
		return AnswerOutcome{Reason: ReasonAlreadyAnswered}
	}
	if questionIndex > s.nextIndex {
		return AnswerOutcome{Reason: ReasonOutOfOrder}
	}
	if questionIndex >= len(s.quiz.Questions) {
		return AnswerOutcome{Reason: ReasonInvalidOption}
	}
	question := s.quiz.Questions[questionIndex]
	if answerIndex < 0 || answerIndex >= len(question.Options) {
		return AnswerOutcome{Reason: ReasonInvalidOption}
	}

	s.nextIndex++
	correct := answerIndex == question.Answer
	if correct {
		s.correct++
	}
	return AnswerOutcome{Accepted: true, Correct: correct}
}

// beginProcessing attempts the idle -> processing transition. The returned
// state is the one observed under the lock, so callers can distinguish an
// in-flight duplicate (processing) from a finalized session (complete).
func (s *Session) beginProcessing() (SessionState, *domain.RewardResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		s.state = StateProcessing
		return StateIdle, nil
	case StateProcessing:
		return StateProcessing, nil
	default:
		return StateComplete, s.result
	}
}

// finalize marks the session complete and publishes the celebration. Called
// once the reward engine and persistence have returned, success or failure.
func (s *Session) finalize(result *domain.RewardResult, pending *domain.UserProfile, perfect bool) {
	s.mu.Lock()
	s.state = StateComplete
	s.result = result
	s.pendingSave = pending
	s.perfect = perfect

	var celebration *Celebration
	if result != nil {
		celebration = &Celebration{
			SessionID:            s.id,
			AchievementsUnlocked: result.AchievementsUnlocked,
			BadgesEarned:         result.BadgesEarned,
			LevelUp:              result.LevelUp,
			PerfectScore:         perfect,
		}
	}
	subscribers := make([]chan Celebration, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subscribers = append(subscribers, ch)
		delete(s.subscribers, ch)
	}
	s.mu.Unlock()

	for _, ch := range subscribers {
		if celebration != nil {
			ch <- *celebration
		}
		close(ch)
	}
}

// abandon terminates an idle session without rewards. No-op on any other
// state so an in-flight completion is never interrupted.
func (s *Session) abandon() bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	s.state = StateComplete
	subscribers := make([]chan Celebration, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subscribers = append(subscribers, ch)
		delete(s.subscribers, ch)
	}
	s.mu.Unlock()

	for _, ch := range subscribers {
		close(ch)
	}
	return true
}

// takePendingSave returns and clears the profile retained after a failed
// persistence write.
func (s *Session) takePendingSave() (*domain.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingSave
	s.pendingSave = nil
	return pending, pending != nil
}

func (s *Session) restorePendingSave(p *domain.UserProfile) {
	s.mu.Lock()
	s.pendingSave = p
	s.mu.Unlock()
}

// subscribe registers for the session's celebration event. The channel is
// closed after at most one payload; the caller must invoke cancel to avoid
// leaks if it stops listening early.
func (s *Session) subscribe() (<-chan Celebration, func()) {
	ch := make(chan Celebration, 1)

	s.mu.Lock()
	if s.state == StateComplete {
		if s.result != nil {
			ch <- Celebration{
				SessionID:            s.id,
				AchievementsUnlocked: s.result.AchievementsUnlocked,
				BadgesEarned:         s.result.BadgesEarned,
				LevelUp:              s.result.LevelUp,
				PerfectScore:         s.perfect,
			}
		}
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
