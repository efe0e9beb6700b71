package pipeline

import "math"

// Heuristic point values for the contract risk score. These are contractual
// constants shared with downstream consumers; do not tune.
const (
	riskPoints         = 15.0
	protectionCredit   = 5.0
	missingClausePoint = 10.0
)

// Penalty subtracted from a metrics baseline per finding severity.
const (
	penaltyCritical = 10.0
	penaltyHigh     = 5.0
	penaltyMedium   = 2.0
)

// ScoreResult is the output of the scoring and aggregation stages.
type ScoreResult struct {
	TotalScore      float64            `json:"total_score"`
	ComponentScores map[string]float64 `json:"component_scores,omitempty"`
	ConfidenceLevel string             `json:"confidence_level"`
}

// WeightedScore pairs a normalized score with the weight it carries in the
// aggregate.
type WeightedScore struct {
	Score  float64
	Weight float64
}

// Contribution reduces one finding to its numeric scoring contribution:
// base category weight times severity multiplier times confidence.
func Contribution(f Finding, table WeightTable) float64 {
	return table.Weight(f.Category) * f.Severity.Multiplier() * clamp01(f.Confidence)
}

// FindingWeight is the denominator weight a finding carries in weighted
// averages: base category weight times severity multiplier.
func FindingWeight(f Finding, table WeightTable) float64 {
	return table.Weight(f.Category) * f.Severity.Multiplier()
}

// WeightedAverage combines scored items into one overall score on [0,100].
// An empty input returns the supplied default (100 for compliance-style
// aggregation where nothing found means nothing wrong, 0 for risk-style).
// A zero weight sum returns 0.
func WeightedAverage(items []WeightedScore, emptyDefault float64) float64 {
	if len(items) == 0 {
		return emptyDefault
	}
	var sum, weightSum float64
	for _, item := range items {
		if item.Weight <= 0 {
			continue
		}
		sum += item.Score * item.Weight
		weightSum += item.Weight
	}
	if weightSum <= 0 {
		return 0.0
	}
	return Clamp(sum/weightSum, 0, 100)
}

// RiskPoints applies the heuristic contract risk formula: 15 points per risk,
// minus 5 per protective clause, plus 10 per missing expected clause,
// clamped to [0,100]. No findings at all yields exactly 0.
func RiskPoints(risks, protections, missing int) float64 {
	score := float64(risks)*riskPoints - float64(protections)*protectionCredit + float64(missing)*missingClausePoint
	return Clamp(score, 0, 100)
}

// PenaltyScore subtracts per-finding severity penalties from a metrics
// baseline and clamps the result to [0,100].
func PenaltyScore(baseline float64, findings []Finding) float64 {
	score := baseline
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			score -= penaltyCritical
		case SeverityHigh:
			score -= penaltyHigh
		case SeverityMedium:
			score -= penaltyMedium
		}
	}
	return Clamp(score, 0, 100)
}

// EvidenceConfidence summarizes evidence strength on [0,100] from the volume
// of findings and their mean per-finding confidence. With no evidence the
// result sits mid-band at 50.
func EvidenceConfidence(findings []Finding) float64 {
	if len(findings) == 0 {
		return 50.0
	}
	var sum float64
	for _, f := range findings {
		sum += clamp01(f.Confidence)
	}
	mean := sum / float64(len(findings))
	coverage := float64(len(findings)) / 10.0
	if coverage > 1 {
		coverage = 1
	}
	return Clamp(mean*70+coverage*30, 0, 100)
}

// Clamp bounds value to [lo, hi]. NaN collapses to lo so aggregation stays
// total.
func Clamp(value, lo, hi float64) float64 {
	if math.IsNaN(value) {
		return lo
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func clamp01(value float64) float64 {
	return Clamp(value, 0, 1)
}
