package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"constitution-quest-service/internal/app"
	"constitution-quest-service/internal/domain"
	"constitution-quest-service/internal/infra/memory"
)

func TestAnswerOrderEnforcement(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	mustStart(t, service, "s1", "u1")

	// Skipping ahead is rejected.
	outcome, err := service.SubmitAnswer(ctx, app.AnswerEvent{SessionID: "s1", QuestionIndex: 2, AnswerIndex: 0})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Accepted || outcome.Reason != app.ReasonOutOfOrder {
		t.Fatalf("expected out_of_order rejection, got %+v", outcome)
	}

	// In-order answer is accepted and scored.
	outcome, _ = service.SubmitAnswer(ctx, app.AnswerEvent{SessionID: "s1", QuestionIndex: 0, AnswerIndex: 1})
	if !outcome.Accepted || !outcome.Correct {
		t.Fatalf("expected accepted correct answer, got %+v", outcome)
	}

	// Re-submitting the same index is rejected.
	outcome, _ = service.SubmitAnswer(ctx, app.AnswerEvent{SessionID: "s1", QuestionIndex: 0, AnswerIndex: 1})
	if outcome.Accepted || outcome.Reason != app.ReasonAlreadyAnswered {
		t.Fatalf("expected already_answered rejection, got %+v", outcome)
	}
}

func TestAnswerRejectsInvalidOption(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	mustStart(t, service, "s1", "u1")

	outcome, err := service.SubmitAnswer(ctx, app.AnswerEvent{SessionID: "s1", QuestionIndex: 0, AnswerIndex: 9})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Accepted || outcome.Reason != app.ReasonInvalidOption {
		t.Fatalf("expected invalid_option rejection, got %+v", outcome)
	}
}

func TestAnswerUnknownSession(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.SubmitAnswer(context.Background(), app.AnswerEvent{SessionID: "nope", QuestionIndex: 0})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
}

func TestCompletionAppliesRewards(t *testing.T) {
	ctx := context.Background()
	service, profiles := newTestService(t)

	mustStart(t, service, "s1", "u1")

	outcome := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if outcome.Status != app.CompletionApplied {
		t.Fatalf("expected applied, got %s (err %v)", outcome.Status, outcome.Err)
	}
	if outcome.Result == nil || outcome.Result.CoinsEarned != 40 {
		t.Fatalf("expected 40 coins, got %+v", outcome.Result)
	}

	profile, err := profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.ConstitutionalCoins != 40 || profile.QuizzesCompleted != 1 {
		t.Fatalf("profile not updated: %+v", profile)
	}
}

func TestDuplicateCompletionIsBlockedWhileProcessing(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	content := newTestContent()
	store := &gatedProfileStore{inner: memory.NewProfileStore(), release: make(chan struct{})}
	service := app.NewService(sessions, content, store)

	mustStart(t, service, "s1", "u1")

	first := make(chan app.CompletionOutcome, 1)
	go func() {
		first <- service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	}()

	// Wait until the first call is parked inside the profile write, then
	// fire the duplicate: it must be blocked, not queued.
	store.waitForPut(t)
	dup := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if dup.Status != app.CompletionBlocked {
		t.Fatalf("expected blocked duplicate, got %s", dup.Status)
	}

	close(store.release)
	outcome := <-first
	if outcome.Status != app.CompletionApplied {
		t.Fatalf("expected first completion applied, got %s", outcome.Status)
	}
	if got := store.puts(); got != 1 {
		t.Fatalf("expected exactly one profile write, got %d", got)
	}
}

func TestCompletionAfterCompleteReturnsPriorResult(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	mustStart(t, service, "s1", "u1")

	first := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if first.Status != app.CompletionApplied {
		t.Fatalf("expected applied, got %s", first.Status)
	}

	second := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if second.Status != app.CompletionAlreadyComplete {
		t.Fatalf("expected already_complete, got %s", second.Status)
	}
	if second.Result == nil || second.Result.CoinsEarned != first.Result.CoinsEarned {
		t.Fatalf("expected prior result returned, got %+v", second.Result)
	}
}

func TestCompletionRejectsInvalidPerformance(t *testing.T) {
	ctx := context.Background()
	service, profiles := newTestService(t)

	mustStart(t, service, "s1", "u1")

	outcome := service.SubmitCompletion(ctx, app.CompletionEvent{
		SessionID: "s1",
		Performance: domain.Performance{
			Kind: domain.ActivityQuiz,
			Quiz: &domain.QuizPerformance{TotalQuestions: 5, CorrectAnswers: 9},
		},
	})
	if outcome.Status != app.CompletionRejected {
		t.Fatalf("expected rejected, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, domain.ErrInvalidPerformance) {
		t.Fatalf("expected validation error, got %v", outcome.Err)
	}

	// Nothing was mutated: the session can still complete normally.
	if _, err := profiles.Get(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("profile should not exist yet, got %v", err)
	}
	if next := service.SubmitCompletion(ctx, quizCompletion("s1", 8)); next.Status != app.CompletionApplied {
		t.Fatalf("expected session still completable, got %s", next.Status)
	}
}

func TestSaveFailureFinalizesSessionAndRetains(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	store := &failingProfileStore{inner: memory.NewProfileStore(), failPuts: 1}
	service := app.NewService(sessions, newTestContent(), store)

	mustStart(t, service, "s1", "u1")

	outcome := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if outcome.Status != app.CompletionSaveFailed {
		t.Fatalf("expected save_failed, got %s", outcome.Status)
	}
	if outcome.Result == nil || outcome.Result.CoinsEarned != 40 {
		t.Fatalf("expected computed result retained, got %+v", outcome.Result)
	}
	if outcome.Err == nil {
		t.Fatalf("expected surfaced persistence error")
	}

	// Session is terminal: no reprocessing, only the prior result.
	again := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if again.Status != app.CompletionAlreadyComplete {
		t.Fatalf("expected already_complete after failure, got %s", again.Status)
	}

	// Manual re-save publishes the retained profile.
	if err := service.RetrySave(ctx, "s1"); err != nil {
		t.Fatalf("retry save: %v", err)
	}
	profile, err := store.inner.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("profile after retry: %v", err)
	}
	if profile.ConstitutionalCoins != 40 {
		t.Fatalf("expected retried profile with 40 coins, got %+v", profile)
	}
}

func TestAbandonAwardsNothing(t *testing.T) {
	ctx := context.Background()
	service, profiles := newTestService(t)

	mustStart(t, service, "s1", "u1")
	_, _ = service.SubmitAnswer(ctx, app.AnswerEvent{SessionID: "s1", QuestionIndex: 0, AnswerIndex: 1})

	if err := service.Abandon(ctx, "s1"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := profiles.Get(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("abandon must not award rewards, got %v", err)
	}

	// The session is gone; a late completion event is rejected.
	outcome := service.SubmitCompletion(ctx, quizCompletion("s1", 8))
	if outcome.Status != app.CompletionRejected || !errors.Is(outcome.Err, domain.ErrSessionNotFound) {
		t.Fatalf("expected rejection for abandoned session, got %s / %v", outcome.Status, outcome.Err)
	}
}

func TestSubscribeReceivesCelebration(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	mustStart(t, service, "s1", "u1")
	ch, cancel, err := service.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	outcome := service.SubmitCompletion(ctx, app.CompletionEvent{
		SessionID: "s1",
		Performance: domain.Performance{
			Kind: domain.ActivityQuiz,
			Quiz: &domain.QuizPerformance{TotalQuestions: 3, CorrectAnswers: 3, PerfectScore: true, ResponseTimeMs: 5000},
		},
	})
	if outcome.Status != app.CompletionApplied {
		t.Fatalf("expected applied, got %s", outcome.Status)
	}

	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatalf("celebration channel closed without payload")
		}
		if !c.PerfectScore {
			t.Fatalf("expected perfect celebration, got %+v", c)
		}
		if len(c.AchievementsUnlocked) == 0 {
			t.Fatalf("expected first-quiz unlocks in celebration, got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for celebration")
	}
}

func TestGameSessionNeedsNoQuizContent(t *testing.T) {
	ctx := context.Background()
	service, profiles := newTestService(t)

	if _, err := service.StartSession(ctx, "g1", "u1", domain.ActivityGame, ""); err != nil {
		t.Fatalf("start game session: %v", err)
	}

	outcome := service.SubmitCompletion(ctx, app.CompletionEvent{
		SessionID: "g1",
		Performance: domain.Performance{
			Kind: domain.ActivityGame,
			Game: &domain.GamePerformance{Score: 0, Difficulty: domain.DifficultyMedium},
		},
	})
	if outcome.Status != app.CompletionApplied {
		t.Fatalf("expected applied, got %s (err %v)", outcome.Status, outcome.Err)
	}
	if outcome.Result.CoinsEarned != 25 || outcome.Result.ExperienceGained != 50 {
		t.Fatalf("expected completion floor 25/50, got %+v", outcome.Result)
	}

	profile, _ := profiles.Get(ctx, "u1")
	if profile.GamesCompleted != 1 {
		t.Fatalf("expected game counted, got %+v", profile)
	}
}

func TestStartSessionUnknownQuiz(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.StartSession(context.Background(), "s1", "u1", domain.ActivityQuiz, "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz error, got %v", err)
	}
}

// ── helpers ──

func newTestService(t *testing.T) (*app.Service, *memory.ProfileStore) {
	t.Helper()
	profiles := memory.NewProfileStore()
	service := app.NewService(memory.NewSessionStore(), newTestContent(), profiles)
	return service, profiles
}

func newTestContent() *memory.ContentRepository {
	return memory.NewContentRepository(memory.NewStaticContentLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{Prompt: "Pick the right option", Options: []string{"Wrong", "Right"}, Answer: 1},
				{Prompt: "Pick again", Options: []string{"Right", "Wrong"}, Answer: 0},
				{Prompt: "Once more", Options: []string{"Wrong", "Right", "Also wrong"}, Answer: 1},
			},
		},
	}), 5*time.Minute)
}

func mustStart(t *testing.T, service *app.Service, sessionID, userID string) {
	t.Helper()
	if _, err := service.StartSession(context.Background(), sessionID, userID, domain.ActivityQuiz, "quiz-1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
}

func quizCompletion(sessionID string, correct int) app.CompletionEvent {
	return app.CompletionEvent{
		SessionID: sessionID,
		Performance: domain.Performance{
			Kind: domain.ActivityQuiz,
			Quiz: &domain.QuizPerformance{
				TotalQuestions: 10,
				CorrectAnswers: correct,
				ResponseTimeMs: 40000,
			},
		},
	}
}

// gatedProfileStore parks Put until released so tests can observe the
// guard's processing window.
type gatedProfileStore struct {
	inner   *memory.ProfileStore
	release chan struct{}

	mu      sync.Mutex
	putSeen chan struct{}
	count   int
}

func (s *gatedProfileStore) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.inner.Get(ctx, userID)
}

func (s *gatedProfileStore) Put(ctx context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	s.count++
	if s.putSeen != nil {
		close(s.putSeen)
		s.putSeen = nil
	}
	s.mu.Unlock()
	<-s.release
	return s.inner.Put(ctx, profile)
}

func (s *gatedProfileStore) waitForPut(t *testing.T) {
	t.Helper()
	ch := make(chan struct{})
	s.mu.Lock()
	if s.count > 0 {
		s.mu.Unlock()
		return
	}
	s.putSeen = ch
	s.mu.Unlock()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for profile write to start")
	}
}

func (s *gatedProfileStore) puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// failingProfileStore fails the first N writes, then delegates.
type failingProfileStore struct {
	inner    *memory.ProfileStore
	mu       sync.Mutex
	failPuts int
}

func (s *failingProfileStore) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.inner.Get(ctx, userID)
}

func (s *failingProfileStore) Put(ctx context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	if s.failPuts > 0 {
		s.failPuts--
		s.mu.Unlock()
		return errors.New("store unavailable")
	}
	s.mu.Unlock()
	return s.inner.Put(ctx, profile)
}
