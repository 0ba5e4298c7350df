// Package scoring holds the pure aura score and progress computations.
//
// Nothing here touches a store or reads the clock: callers pass in the
// activities and the current time. That keeps every rule (floors at zero,
// rounding, bucket boundaries) testable with fixed inputs, and lets the
// service layer decide what to load and what to persist.
package scoring

import (
	"math"
	"time"

	"github.com/sakif/aurashift/internal/model"
)

// Day is the length used for every "whole days" calculation. Days are fixed
// 24h spans from the reference instant, not calendar days.
const Day = 24 * time.Hour

// PointsPerLevel is how many aura points make up one level.
const PointsPerLevel = 100

// Sum adds up the points of the given activities without flooring.
func Sum(activities []model.Activity) int {
	total := 0
	for _, a := range activities {
		total += a.Points
	}
	return total
}

// AuraScore is the user's score over their full activity history: the sum of
// all points, floored at zero. Order does not matter.
func AuraScore(activities []model.Activity) int {
	return max(0, Sum(activities))
}

// Level maps a score to a level. Level 1 starts at zero points.
func Level(score int) int {
	return max(0, score)/PointsPerLevel + 1
}

// WholeDays counts complete days between from and to. A reference in the
// future yields 0.
func WholeDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / Day)
}

// RoundMoney rounds to cents, halves away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Savings is the cumulative progress stored on the user record.
type Savings struct {
	CigarettesAvoided int
	MoneySaved        float64
}

// SinceStart estimates what the user avoided since start.
//
// The expected consumption is CigarettesPerDay for every whole day since
// start, with at least one day counted so a fresh streak is not a zero
// window. consumed is the number of cigarette_consumed activities logged at
// or after start. Both results are floored at zero.
func SinceStart(p model.SmokingProfile, start, now time.Time, consumed int) Savings {
	days := max(1, WholeDays(start, now))
	expected := days * p.CigarettesPerDay

	expectedSpend := float64(expected) * p.CostPerCigarette
	actualSpend := float64(consumed) * p.CostPerCigarette

	return Savings{
		CigarettesAvoided: max(0, expected-consumed),
		MoneySaved:        RoundMoney(max(0, expectedSpend-actualSpend)),
	}
}
