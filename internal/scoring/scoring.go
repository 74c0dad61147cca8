// Package scoring holds the pure projection formulas. Every weight is an
// explicit input so the functions have no hidden state and backtests can
// vary the formula without touching the data layer.
package scoring

import "math"

// Weights are the matchup-score formula constants.
type Weights struct {
	// Class matchup deviation from neutral scaled by this factor, then
	// capped at +/- ClassAdjCap points.
	ClassAdjFactor float64
	ClassAdjCap    float64

	// Supporter elimination differential in points per 1.0 of difference,
	// capped at +/- ElimDiffCap points.
	ElimDiffFactor float64
	ElimDiffCap    float64

	// Flat penalty when the champion's class is PenaltyClass and its team
	// averages at least PenaltyDeposits deposits per game.
	DepositPenalty  float64
	PenaltyClass    string
	PenaltyDeposits float64
}

// DefaultWeights returns the calibrated production formula.
func DefaultWeights() Weights {
	return Weights{
		ClassAdjFactor:  0.4,
		ClassAdjCap:     10,
		ElimDiffFactor:  10,
		ElimDiffCap:     15,
		DepositPenalty:  3,
		PenaltyClass:    "Defender",
		PenaltyDeposits: 1.5,
	}
}

// MatchupInputs are the aggregates a matchup score is computed from. Rates
// are percentages in [0, 100].
type MatchupInputs struct {
	BaseWinRate    float64
	ClassMatchup   float64
	OwnAvgElims    float64
	OwnAvgDeposits float64
	OppAvgElims    float64
	OwnClass       string
}

// MatchupScore projects a 0-100 win-likelihood value for one side of a
// matchup. Each adjustment's contribution is individually capped so no
// single factor can dominate the base win rate.
func MatchupScore(in MatchupInputs, w Weights) float64 {
	score := in.BaseWinRate

	classAdj := (in.ClassMatchup - 50) * w.ClassAdjFactor
	score += clamp(classAdj, -w.ClassAdjCap, w.ClassAdjCap)

	elimAdj := (in.OwnAvgElims - in.OppAvgElims) * w.ElimDiffFactor
	score += clamp(elimAdj, -w.ElimDiffCap, w.ElimDiffCap)

	if in.OwnClass == w.PenaltyClass && in.OwnAvgDeposits >= w.PenaltyDeposits {
		score -= w.DepositPenalty
	}

	return clamp(score, 0, 100)
}

// PointWeights are the fantasy-point constants. Distance scores 45 points
// per 80 units.
type PointWeights struct {
	PerElimination  float64
	PerDeposit      float64
	PerDistanceUnit float64
	WinBonus        float64
}

func DefaultPointWeights() PointWeights {
	return PointWeights{
		PerElimination:  80,
		PerDeposit:      50,
		PerDistanceUnit: 0.5625,
		WinBonus:        300,
	}
}

// ProjectedPoints is the pre-game fantasy-point projection: the stat-weighted
// sum of career averages plus the win bonus scaled by win likelihood.
func ProjectedPoints(avgElims, avgDeps, avgDistance, matchupScore float64, w PointWeights) float64 {
	stats := avgElims*w.PerElimination + avgDeps*w.PerDeposit + avgDistance*w.PerDistanceUnit
	return Round1(stats + matchupScore/100*w.WinBonus)
}

// ActualPoints is the post-game fantasy-point total from a real stat line.
func ActualPoints(elims, deps, distance float64, won bool, w PointWeights) float64 {
	total := elims*w.PerElimination + deps*w.PerDeposit + distance*w.PerDistanceUnit
	if won {
		total += w.WinBonus
	}
	return Round1(total)
}

// EdgeLabel buckets a matchup score for display.
func EdgeLabel(score float64) string {
	switch {
	case score >= 60:
		return "Favorable"
	case score >= 40:
		return "Even"
	default:
		return "Tough"
	}
}

// Round1 rounds to one decimal place, matching the feed's published
// precision.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places, used for displayed career averages.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
