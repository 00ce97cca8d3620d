package rewards

import "constitution-quest-service/internal/domain"

// ActivityContext tells unlock predicates what just finished. Predicates see
// the profile snapshot taken after coins, XP, and counters were applied.
type ActivityContext struct {
	Kind    domain.ActivityKind
	Perfect bool
}

// UnlockRule is one achievement or badge predicate. Rules are a closed set
// evaluated against typed profile fields; already-unlocked ids are skipped,
// so firing a rule twice can never duplicate an entry.
type UnlockRule struct {
	ID        string
	Badge     bool
	Predicate func(p domain.UserProfile, ctx ActivityContext) bool
}

// DefaultRules returns the full unlock catalog.
func DefaultRules() []UnlockRule {
	return []UnlockRule{
		// Firsts
		{
			ID: "first_quiz",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.QuizzesCompleted >= 1
			},
		},
		{
			ID: "first_game",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.GamesCompleted >= 1
			},
		},
		{
			ID: "perfect_quiz",
			Predicate: func(p domain.UserProfile, ctx ActivityContext) bool {
				return ctx.Kind == domain.ActivityQuiz && ctx.Perfect
			},
		},

		// Volume
		{
			ID: "quiz_10",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.QuizzesCompleted >= 10
			},
		},
		{
			ID: "quiz_50",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.QuizzesCompleted >= 50
			},
		},
		{
			ID: "game_25",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.GamesCompleted >= 25
			},
		},

		// Streaks
		{
			ID: "streak_3",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.CurrentStreak >= 3
			},
		},
		{
			ID: "streak_7",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.CurrentStreak >= 7
			},
		},
		{
			ID: "streak_30",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.CurrentStreak >= 30
			},
		},

		// Wealth and progression
		{
			ID: "coins_1000",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.ConstitutionalCoins >= 1000
			},
		},
		{
			ID: "coins_10000",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.ConstitutionalCoins >= 10000
			},
		},
		{
			ID: "level_5",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.ProfileLevel >= 5
			},
		},
		{
			ID: "level_10",
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.ProfileLevel >= 10
			},
		},

		// Badges
		{
			ID: "civic_starter", Badge: true,
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.ProfileLevel >= 2
			},
		},
		{
			ID: "constitution_scholar", Badge: true,
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.ProfileLevel >= 5 && p.QuizzesCompleted >= 20
			},
		},
		{
			ID: "rights_champion", Badge: true,
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.PerfectQuizzes >= 3
			},
		},
		{
			ID: "daily_devotee", Badge: true,
			Predicate: func(p domain.UserProfile, _ ActivityContext) bool {
				return p.CurrentStreak >= 7 && p.ConstitutionalCoins >= 500
			},
		},
	}
}
