package rewards

// levelThresholds is the cumulative XP required to reach each level; index 0
// is level 1. Profile level is always recomputed from this table, never
// mutated independently.
var levelThresholds = []int{
	0,     // 1
	100,   // 2
	250,   // 3
	500,   // 4
	900,   // 5
	1400,  // 6
	2000,  // 7
	2800,  // 8
	3800,  // 9
	5000,  // 10
	6500,  // 11
	8300,  // 12
	10400, // 13
	12800, // 14
	15500, // 15
	18500, // 16
	22000, // 17
	26000, // 18
	30500, // 19
	35500, // 20
}

// MaxLevel is the top of the threshold table.
const MaxLevel = 20

// LevelForXP returns the profile level for an XP total.
func LevelForXP(xp int) int {
	level := 1
	for level < MaxLevel && xp >= levelThresholds[level] {
		level++
	}
	return level
}

// XPForLevel returns the cumulative XP required to reach a level.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelThresholds[level-1]
}

// XPToNextLevel returns the XP remaining until the next level, or 0 at cap.
func XPToNextLevel(xp int) int {
	level := LevelForXP(xp)
	if level >= MaxLevel {
		return 0
	}
	remaining := levelThresholds[level] - xp
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
