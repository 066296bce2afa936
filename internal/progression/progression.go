// Package progression implements the level and tier derivation for the
// rewards engine.
//
// Level is a strictly increasing step function of cumulative XP against
// fixed thresholds; tier is a step function of level. Both are pure — the
// stored level/tier columns are caches of these functions over xp_total and
// must be recomputed on every wallet mutation so they can never drift.
package progression

import (
	"github.com/shopspring/decimal"

	"github.com/roamly/rewards-engine/internal/model"
)

// levelThresholds[i] is the minimum cumulative XP required for level i+2.
// Below levelThresholds[0] a user is level 1. Beyond the last threshold,
// levels continue every ExtendedLevelStep XP.
var levelThresholds = []int64{500, 1500, 3000, 5000, 8000, 12000, 18000, 25000, 35000}

// ExtendedLevelStep is the XP required per level beyond level 10.
const ExtendedLevelStep int64 = 15000

// maxTableLevel is the highest level reachable via levelThresholds.
const maxTableLevel = 10

// LevelForXP returns the level for a cumulative XP total. Levels start at 1.
// Thresholds are inclusive on the upper side: xp == 500 is level 2.
func LevelForXP(xp int64) int {
	if xp < 0 {
		return 1
	}
	for i, threshold := range levelThresholds {
		if xp < threshold {
			return i + 1
		}
	}
	last := levelThresholds[len(levelThresholds)-1]
	return maxTableLevel + int((xp-last)/ExtendedLevelStep)
}

// TierForLevel returns the loyalty tier for a level.
func TierForLevel(level int) model.Tier {
	switch {
	case level < 3:
		return model.TierBronze
	case level < 6:
		return model.TierSilver
	case level < 10:
		return model.TierGold
	default:
		return model.TierPlatinum
	}
}

// XPForLevel returns the minimum cumulative XP at which the given level is
// reached. Level 1 (and below) requires 0 XP.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level <= maxTableLevel {
		return levelThresholds[level-2]
	}
	last := levelThresholds[len(levelThresholds)-1]
	return last + int64(level-maxTableLevel)*ExtendedLevelStep
}

// LevelProgress returns the percentage of the way from the current level's
// floor to the next level's floor, rounded to two decimal places.
func LevelProgress(xp int64) decimal.Decimal {
	if xp < 0 {
		xp = 0
	}
	level := LevelForXP(xp)
	floor := XPForLevel(level)
	ceil := XPForLevel(level + 1)

	span := decimal.NewFromInt(ceil - floor)
	into := decimal.NewFromInt(xp - floor)
	return into.Div(span).Mul(decimal.NewFromInt(100)).Round(2)
}
