// Package points computes raw coin and XP totals for completed activities.
// Calculations are pure: no profile state, no side effects, and all ratio
// math truncates (each bonus compounds on the running total, so the order
// and the flooring both matter).
package points

import "constitution-quest-service/internal/domain"

// Points is a raw, uncapped reward amount. The daily cap is applied later
// by the reward engine; coins here are what the activity earned on merit.
type Points struct {
	Coins int
	XP    int
}

// Config holds the scoring constants (defaults match production behavior).
type Config struct {
	QuizCoinsPerCorrect int     // default: 5
	QuizXPPerCorrect    int     // default: 10
	SpeedMsPerQuestion  int64   // default: 3000 (avg ms per question to earn the speed bonus)
	SpeedBonusPct       float64 // default: 0.10 (of current coins)
	PerfectBonusPct     float64 // default: 0.50 (of current coins)
	GameMaxCoins        int     // default: 75 (coins at score 100 before multipliers)
	GameCompletionFloor int     // default: 25 (finishing a game is never worth less)
	MinCoins            int     // default: 1
	MinXP               int     // default: 5
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		QuizCoinsPerCorrect: 5,
		QuizXPPerCorrect:    10,
		SpeedMsPerQuestion:  3000,
		SpeedBonusPct:       0.10,
		PerfectBonusPct:     0.50,
		GameMaxCoins:        75,
		GameCompletionFloor: 25,
		MinCoins:            1,
		MinXP:               5,
	}
}

// Calculator computes rewards with a fixed config.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with the provided config.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// StreakMultiplier maps a consecutive-day streak to its reward multiplier.
// The table ceilings at 1.3x from day 4 on.
func StreakMultiplier(streak int) float64 {
	switch {
	case streak >= 4:
		return 1.3
	case streak == 3:
		return 1.2
	case streak == 2:
		return 1.1
	default:
		return 1.0
	}
}

// CalculateQuiz computes coins and XP for a completed quiz.
// Fixed order: base -> streak multiplier -> speed bonus -> perfect bonus ->
// XP floor correction -> minimum clamps. Input must already be validated.
func (c *Calculator) CalculateQuiz(p domain.QuizPerformance, streak int) Points {
	mult := StreakMultiplier(streak)
	coins := floorMult(p.CorrectAnswers*c.cfg.QuizCoinsPerCorrect, mult)
	xp := floorMult(p.CorrectAnswers*c.cfg.QuizXPPerCorrect, mult)

	if p.ResponseTimeMs <= int64(p.TotalQuestions)*c.cfg.SpeedMsPerQuestion {
		speedBonus := floorMult(coins, c.cfg.SpeedBonusPct)
		coins += speedBonus
		xp += speedBonus * 2 // XP share derives from the coin bonus, not base XP
	}

	if p.PerfectScore {
		perfectBonus := floorMult(coins, c.cfg.PerfectBonusPct)
		coins += perfectBonus
		xp += perfectBonus * 2
	}

	// Guarantee the 1 coin : 2 XP ratio is never undercut by bonus rounding.
	if floor := coins * 2; xp < floor {
		xp = floor
	}

	return c.clamp(Points{Coins: coins, XP: xp})
}

// CalculateGame computes coins and XP for a completed mini-game.
// Fixed order: completion-floored base -> difficulty multiplier -> streak
// multiplier -> perfect bonus -> optional timed bonus -> straight 2x XP
// conversion -> minimum clamps. Input must already be validated.
func (c *Calculator) CalculateGame(p domain.GamePerformance, streak int) Points {
	coins := p.Score * c.cfg.GameMaxCoins / 100
	if coins < c.cfg.GameCompletionFloor {
		coins = c.cfg.GameCompletionFloor
	}

	coins = floorMult(coins, difficultyMultiplier(p.Difficulty))
	coins = floorMult(coins, StreakMultiplier(streak))

	if p.PerfectGame {
		coins += floorMult(coins, c.cfg.PerfectBonusPct)
	}
	if p.TimedBonus {
		coins += floorMult(coins, c.cfg.SpeedBonusPct)
	}

	return c.clamp(Points{Coins: coins, XP: coins * 2})
}

// Calculate dispatches on the activity kind.
func (c *Calculator) Calculate(p domain.Performance, streak int) Points {
	if p.Kind == domain.ActivityGame {
		return c.CalculateGame(*p.Game, streak)
	}
	return c.CalculateQuiz(*p.Quiz, streak)
}

func difficultyMultiplier(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyEasy:
		return 0.8
	case domain.DifficultyHard:
		return 1.2
	default: // medium, adaptive
		return 1.0
	}
}

func (c *Calculator) clamp(p Points) Points {
	if p.Coins < c.cfg.MinCoins {
		p.Coins = c.cfg.MinCoins
	}
	if p.XP < c.cfg.MinXP {
		p.XP = c.cfg.MinXP
	}
	return p
}

// floorMult truncates n*mult toward zero; inputs are non-negative here, so
// the int conversion is a floor.
func floorMult(n int, mult float64) int {
	return int(float64(n) * mult)
}
