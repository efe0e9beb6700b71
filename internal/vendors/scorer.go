// Package vendor scores supplier performance from delivery metrics and
// exclusion-registry findings.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/registry"
)

// Baseline metric weights. They sum to 1 so the baseline is itself on [0,100].
const (
	weightOnTimeDelivery = 0.25
	weightQuality        = 0.25
	weightResponseTime   = 0.15
	weightCostEfficiency = 0.15
	weightCompliance     = 0.20
)

// ErrInvalidMetric reports a performance metric outside [0,100].
var ErrInvalidMetric = errors.New("metric out of range")

// ErrMissingVendor rejects score requests without a vendor name.
var ErrMissingVendor = errors.New("vendor name is required")

// Metrics are the five performance inputs, each on [0,100].
type Metrics struct {
	OnTimeDelivery float64 `json:"on_time_delivery"`
	Quality        float64 `json:"quality"`
	ResponseTime   float64 `json:"response_time"`
	CostEfficiency float64 `json:"cost_efficiency"`
	Compliance     float64 `json:"compliance"`
}

// Validate rejects any metric outside [0,100].
func (m Metrics) Validate() error {
	fields := map[string]float64{
		"on_time_delivery": m.OnTimeDelivery,
		"quality":          m.Quality,
		"response_time":    m.ResponseTime,
		"cost_efficiency":  m.CostEfficiency,
		"compliance":       m.Compliance,
	}
	for name, value := range fields {
		if value < 0 || value > 100 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidMetric, name, value)
		}
	}
	return nil
}

// Baseline is the weighted combination of the five metrics before penalties.
func (m Metrics) Baseline() float64 {
	return m.OnTimeDelivery*weightOnTimeDelivery +
		m.Quality*weightQuality +
		m.ResponseTime*weightResponseTime +
		m.CostEfficiency*weightCostEfficiency +
		m.Compliance*weightCompliance
}

// Scorecard is the output of one vendor scoring run.
type Scorecard struct {
	Vendor          string                    `json:"vendor"`
	Metrics         Metrics                   `json:"metrics"`
	BaselineScore   float64                   `json:"baseline_score"`
	OverallScore    float64                   `json:"overall_score"`
	Grade           string                    `json:"grade"`
	RiskLevel       string                    `json:"risk_level"`
	Excluded        bool                      `json:"excluded"`
	ExclusionNotes  string                    `json:"exclusion_notes,omitempty"`
	Findings        []pipeline.Finding        `json:"findings"`
	Recommendations []pipeline.Recommendation `json:"recommendations"`
}

// ExclusionLookup is the registry surface the scorer needs.
type ExclusionLookup interface {
	Lookup(ctx context.Context, vendor string) (registry.LookupResult, error)
}

// Scorer combines performance metrics with exclusion lookups. The registry
// is optional; without it only the supplied findings apply.
type Scorer struct {
	registry ExclusionLookup
}

// NewScorer constructs a scorer. lookup may be nil.
func NewScorer(lookup ExclusionLookup) *Scorer {
	return &Scorer{registry: lookup}
}

// Score validates the metrics, applies severity penalties for the supplied
// findings and any exclusion-registry hits, and grades the result. A
// registry lookup failure is logged and skipped rather than failing the run.
func (s *Scorer) Score(ctx context.Context, name string, metrics Metrics, findings []pipeline.Finding) (Scorecard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Scorecard{}, ErrMissingVendor
	}
	if err := metrics.Validate(); err != nil {
		return Scorecard{}, err
	}

	card := Scorecard{
		Vendor:        name,
		Metrics:       metrics,
		BaselineScore: metrics.Baseline(),
	}

	all := append([]pipeline.Finding{}, findings...)
	if s.registry != nil {
		lookup, err := s.registry.Lookup(ctx, name)
		switch {
		case errors.Is(err, context.Canceled):
			return Scorecard{}, err
		case err != nil:
			logrus.WithError(err).WithField("vendor", name).Warn("exclusion lookup failed")
		case len(lookup.Exclusions) > 0:
			card.Excluded = true
			notes := make([]string, 0, len(lookup.Exclusions))
			for _, excl := range lookup.Exclusions {
				note := fmt.Sprintf("Excluded by %s (%s)", excl.Agency, excl.Classification)
				notes = append(notes, note)
				all = append(all, pipeline.Finding{
					Category:    pipeline.CategoryCompliance,
					Severity:    pipeline.SeverityCritical,
					Confidence:  1.0,
					Description: note,
					Mitigation:  "Do not award until the exclusion is resolved",
				})
			}
			card.ExclusionNotes = strings.Join(notes, "; ")
		}
	}

	riskScore := pipeline.RiskPoints(len(all), 0, 0)
	if card.Excluded {
		// An active exclusion is a critical risk regardless of how few
		// findings accompany it.
		riskScore = 100
	}
	card.RiskLevel = pipeline.RiskLevelBands.Classify(riskScore)

	card.OverallScore = pipeline.PenaltyScore(card.BaselineScore, all)
	card.Grade = pipeline.GradeBands.Classify(card.OverallScore)
	card.Findings = pipeline.TopFindings(all, pipeline.MaxIssues)
	card.Recommendations = pipeline.Derive(all, pipeline.MaxRecommendations)
	return card, nil
}
