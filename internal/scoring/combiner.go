// Package scoring blends the classifier probability and the heuristic score
// into one risk percentage.
package scoring

import "math"

// Blend weights. They sum to 1 so a heuristic score of 100 with probability
// 1 gives 100.
const (
	WeightHeuristic = 0.4
	WeightML        = 0.6
)

// Risk band boundaries on the 0-100 combined score.
const (
	SuspiciousThreshold = 20.0
	HighRiskThreshold   = 60.0
)

// Level is a coarse risk band.
type Level string

const (
	LevelSafe       Level = "safe"
	LevelSuspicious Level = "suspicious"
	LevelHigh       Level = "high"
)

// Combine returns round((h/100)*0.4 + p*0.6) * 100 to two decimals.
func Combine(heuristicScore int, aiProbability float64) float64 {
	combined := float64(heuristicScore)/100*WeightHeuristic + aiProbability*WeightML
	return Round2(combined * 100)
}

// MLOnly is the batch score, where no heuristics are computed.
func MLOnly(aiProbability float64) float64 {
	return Round2(aiProbability * 100)
}

// LevelOf maps a combined score to its band.
func LevelOf(score float64) Level {
	switch {
	case score >= HighRiskThreshold:
		return LevelHigh
	case score >= SuspiciousThreshold:
		return LevelSuspicious
	default:
		return LevelSafe
	}
}

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
