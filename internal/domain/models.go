package domain

// ActivityKind discriminates what kind of activity a session wraps.
type ActivityKind string

const (
	ActivityQuiz ActivityKind = "quiz"
	ActivityGame ActivityKind = "game"
)

// Difficulty grades a mini-game.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyAdaptive Difficulty = "adaptive"
)

// UserProfile is the persisted reward state for one learner.
// Reward-controlled fields (coins, XP, unlock lists) are single-writer:
// only the reward engine, while a completion is in flight, may change them.
type UserProfile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`

	ConstitutionalCoins int    `json:"constitutionalCoins"`
	DailyCoinsEarned    int    `json:"dailyCoinsEarned"`
	DailyCoinLimit      int    `json:"dailyCoinLimit"`
	LastDailyReset      string `json:"lastDailyReset"` // UTC date key, YYYY-MM-DD

	ExperiencePoints int `json:"experiencePoints"`
	ProfileLevel     int `json:"profileLevel"`

	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`

	QuizzesCompleted int `json:"quizzesCompleted"`
	GamesCompleted   int `json:"gamesCompleted"`
	PerfectQuizzes   int `json:"perfectQuizzes"`

	Achievements []string `json:"achievements"`
	Badges       []string `json:"badges"`
}

// DefaultDailyCoinLimit applies when a profile has no explicit cap.
const DefaultDailyCoinLimit = 500

// NewUserProfile returns a fresh level-1 profile with the default daily cap.
func NewUserProfile(userID, displayName string) UserProfile {
	return UserProfile{
		UserID:         userID,
		DisplayName:    displayName,
		DailyCoinLimit: DefaultDailyCoinLimit,
		ProfileLevel:   1,
	}
}

// Clone returns a deep copy so the reward engine can build the next profile
// without touching the published one.
func (p UserProfile) Clone() UserProfile {
	c := p
	c.Achievements = append([]string(nil), p.Achievements...)
	c.Badges = append([]string(nil), p.Badges...)
	return c
}

// HasAchievement reports whether the achievement id is already unlocked.
func (p UserProfile) HasAchievement(id string) bool {
	return contains(p.Achievements, id)
}

// HasBadge reports whether the badge id is already earned.
func (p UserProfile) HasBadge(id string) bool {
	return contains(p.Badges, id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// QuizPerformance captures how one quiz attempt went.
type QuizPerformance struct {
	TotalQuestions int   `json:"totalQuestions"`
	CorrectAnswers int   `json:"correctAnswers"`
	PerfectScore   bool  `json:"perfectScore"`
	ResponseTimeMs int64 `json:"responseTimeMs"`
}

// Validate rejects malformed input before any state is touched.
func (q QuizPerformance) Validate() error {
	switch {
	case q.TotalQuestions <= 0:
		return invalidPerformance("totalQuestions must be positive, got %d", q.TotalQuestions)
	case q.CorrectAnswers < 0:
		return invalidPerformance("correctAnswers must be non-negative, got %d", q.CorrectAnswers)
	case q.CorrectAnswers > q.TotalQuestions:
		return invalidPerformance("correctAnswers %d exceeds totalQuestions %d", q.CorrectAnswers, q.TotalQuestions)
	case q.ResponseTimeMs < 0:
		return invalidPerformance("responseTimeMs must be non-negative, got %d", q.ResponseTimeMs)
	}
	return nil
}

// GamePerformance captures how one mini-game attempt went.
// TimedBonus is set by game-specific callers that track a time limit; games
// without a time metric leave it false.
type GamePerformance struct {
	Score       int        `json:"score"` // 0-100
	PerfectGame bool       `json:"perfectGame"`
	Difficulty  Difficulty `json:"difficulty"`
	TimedBonus  bool       `json:"timedBonus"`
}

// Validate rejects malformed input before any state is touched.
func (g GamePerformance) Validate() error {
	if g.Score < 0 || g.Score > 100 {
		return invalidPerformance("score must be within 0-100, got %d", g.Score)
	}
	switch g.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyAdaptive:
		return nil
	default:
		return invalidPerformance("unknown difficulty %q", string(g.Difficulty))
	}
}

// Performance is the discriminated union carried by a completion event.
type Performance struct {
	Kind ActivityKind     `json:"kind"`
	Quiz *QuizPerformance `json:"quiz,omitempty"`
	Game *GamePerformance `json:"game,omitempty"`
}

// Validate checks the union is well-formed for its kind.
func (p Performance) Validate() error {
	switch p.Kind {
	case ActivityQuiz:
		if p.Quiz == nil {
			return invalidPerformance("quiz performance missing")
		}
		return p.Quiz.Validate()
	case ActivityGame:
		if p.Game == nil {
			return invalidPerformance("game performance missing")
		}
		return p.Game.Validate()
	default:
		return invalidPerformance("unknown activity kind %q", string(p.Kind))
	}
}

// RewardResult summarizes what one completion actually credited.
type RewardResult struct {
	CoinsEarned       int  `json:"coinsEarned"`    // after daily-cap truncation
	CoinsRequested    int  `json:"coinsRequested"` // pre-cap, for limit messaging
	ExperienceGained  int  `json:"experienceGained"`
	LevelUp           bool `json:"levelUp"`
	NewLevel          int  `json:"newLevel"`
	DailyLimitReached bool `json:"dailyLimitReached"`

	AchievementsUnlocked []string `json:"achievementsUnlocked"`
	BadgesEarned         []string `json:"badgesEarned"`
}

// Question is one indexed multiple-choice question; Answer is the index of
// the correct option.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// Quiz is the ordered question content one quiz session runs through.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}
