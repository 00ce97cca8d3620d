// Package rewards turns raw point totals into profile mutations that respect
// the daily coin cap, and detects level-ups and unlocks. The engine has no
// I/O: it builds a new profile copy and returns it whole, so callers treat
// one ProcessCompletion call as a single atomic unit.
package rewards

import (
	"constitution-quest-service/internal/domain"
	"constitution-quest-service/internal/points"
)

// Engine applies rewards to profiles.
type Engine struct {
	rules []UnlockRule
}

// NewEngine creates an engine with the default unlock catalog.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// NewEngineWithRules creates an engine with a custom rule set.
func NewEngineWithRules(rules []UnlockRule) *Engine {
	return &Engine{rules: rules}
}

// ResetDailyCountersIfNewDay zeroes the daily counter when the date key has
// moved on. Idempotent: calling twice with the same key is a no-op.
func ResetDailyCountersIfNewDay(p *domain.UserProfile, today string) {
	if p.LastDailyReset != today {
		p.DailyCoinsEarned = 0
		p.LastDailyReset = today
	}
}

// AwardCoinsWithLimit credits as many of the requested coins as today's
// remaining allowance permits and returns the amount actually awarded.
// Hitting the cap is normal policy, never an error; XP is never capped.
func AwardCoinsWithLimit(p *domain.UserProfile, requested int) int {
	limit := p.DailyCoinLimit
	if limit <= 0 {
		limit = domain.DefaultDailyCoinLimit
	}
	available := limit - p.DailyCoinsEarned
	if available < 0 {
		available = 0
	}
	actual := requested
	if actual > available {
		actual = available
	}
	p.DailyCoinsEarned += actual
	p.ConstitutionalCoins += actual
	return actual
}

// ApplyExperience adds XP, recomputes the level from the threshold table,
// and reports whether a level was gained.
func ApplyExperience(p *domain.UserProfile, xp int) bool {
	oldLevel := p.ProfileLevel
	p.ExperiencePoints += xp
	p.ProfileLevel = LevelForXP(p.ExperiencePoints)
	return p.ProfileLevel > oldLevel
}

// DetectUnlocks evaluates the rule set against the profile snapshot and
// appends newly satisfied ids, skipping any already present.
func (e *Engine) DetectUnlocks(p *domain.UserProfile, ctx ActivityContext) (achievements, badges []string) {
	for _, rule := range e.rules {
		if rule.Badge {
			if p.HasBadge(rule.ID) {
				continue
			}
		} else if p.HasAchievement(rule.ID) {
			continue
		}
		if rule.Predicate == nil || !rule.Predicate(*p, ctx) {
			continue
		}
		if rule.Badge {
			p.Badges = append(p.Badges, rule.ID)
			badges = append(badges, rule.ID)
		} else {
			p.Achievements = append(p.Achievements, rule.ID)
			achievements = append(achievements, rule.ID)
		}
	}
	return achievements, badges
}

// ProcessCompletion applies one completed activity to a profile copy.
// Order: daily reset check, XP (uncapped), coins (capped), activity
// counters, unlock detection. The input profile is never touched.
func (e *Engine) ProcessCompletion(profile domain.UserProfile, pts points.Points, ctx ActivityContext, today string) (domain.UserProfile, domain.RewardResult) {
	p := profile.Clone()

	ResetDailyCountersIfNewDay(&p, today)

	levelUp := ApplyExperience(&p, pts.XP)
	awarded := AwardCoinsWithLimit(&p, pts.Coins)

	switch ctx.Kind {
	case domain.ActivityGame:
		p.GamesCompleted++
	default:
		p.QuizzesCompleted++
		if ctx.Perfect {
			p.PerfectQuizzes++
		}
	}

	achievements, badges := e.DetectUnlocks(&p, ctx)

	result := domain.RewardResult{
		CoinsEarned:          awarded,
		CoinsRequested:       pts.Coins,
		ExperienceGained:     pts.XP,
		LevelUp:              levelUp,
		NewLevel:             p.ProfileLevel,
		DailyLimitReached:    awarded < pts.Coins,
		AchievementsUnlocked: achievements,
		BadgesEarned:         badges,
	}
	return p, result
}
