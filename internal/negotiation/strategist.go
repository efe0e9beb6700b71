// Package negotiation derives a bargaining posture and ranked leverage
// points from contract findings, vendor performance, and market benchmarks.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"contract-risk-eval/backend/internal/market"
	"contract-risk-eval/backend/internal/pipeline"
)

// Postures a buyer can take into the negotiation.
const (
	PostureAggressive    = "AGGRESSIVE"
	PostureFirm          = "FIRM"
	PostureCollaborative = "COLLABORATIVE"
)

// MaxLeveragePoints caps the strategy list.
const MaxLeveragePoints = 5

// ErrNoInputs rejects requests carrying neither findings, vendor data,
// nor line items.
var ErrNoInputs = errors.New("nothing to build a strategy from")

// LineItem is a priced position to benchmark against the market index.
type LineItem struct {
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    float64 `json:"quantity"`
}

// Request carries everything known about the deal going in.
type Request struct {
	Vendor      string             `json:"vendor"`
	VendorGrade string             `json:"vendor_grade,omitempty"`
	RiskScore   float64            `json:"risk_score"`
	Findings    []pipeline.Finding `json:"findings,omitempty"`
	LineItems   []LineItem         `json:"line_items,omitempty"`
}

// LeveragePoint is one ranked argument to bring to the table.
type LeveragePoint struct {
	Rank      int     `json:"rank"`
	Topic     string  `json:"topic"`
	Argument  string  `json:"argument"`
	Weight    float64 `json:"weight"`
	Potential float64 `json:"potential_savings,omitempty"`
}

// Strategy is the derived negotiation plan.
type Strategy struct {
	Vendor           string          `json:"vendor"`
	Posture          string          `json:"posture"`
	LeveragePoints   []LeveragePoint `json:"leverage_points"`
	EstimatedSavings float64         `json:"estimated_savings"`
}

// Strategist builds strategies using an optional market index for price
// leverage.
type Strategist struct {
	index   *market.Index
	weights pipeline.WeightTable
}

// NewStrategist constructs a strategist. index may be nil.
func NewStrategist(index *market.Index, weights pipeline.WeightTable) *Strategist {
	if weights == nil {
		weights = pipeline.DefaultWeights()
	}
	return &Strategist{index: index, weights: weights}
}

// Build derives the posture and the top leverage points for a deal.
// Contract findings weigh in by severity and category, overpriced line
// items by the savings they could recover, and a weak vendor grade adds a
// performance argument.
func (s *Strategist) Build(ctx context.Context, req Request) (Strategy, error) {
	if len(req.Findings) == 0 && len(req.LineItems) == 0 && req.VendorGrade == "" {
		return Strategy{}, ErrNoInputs
	}
	if err := ctx.Err(); err != nil {
		return Strategy{}, err
	}

	var points []LeveragePoint
	for _, f := range pipeline.SortBySeverity(req.Findings) {
		if strings.TrimSpace(f.Description) == "" {
			continue
		}
		argument := f.Mitigation
		if argument == "" {
			argument = fmt.Sprintf("Negotiate revised terms: %s", f.Description)
		}
		points = append(points, LeveragePoint{
			Topic:    f.Category,
			Argument: argument,
			Weight:   pipeline.Contribution(f, s.weights),
		})
	}

	var savings float64
	if s.index != nil {
		for _, item := range req.LineItems {
			bench, ok := s.index.BestMatch(item.Description)
			if !ok || bench.UnitPrice <= 0 || item.UnitPrice <= bench.UnitPrice {
				continue
			}
			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			delta := (item.UnitPrice - bench.UnitPrice) * qty
			savings += delta
			points = append(points, LeveragePoint{
				Topic: "pricing",
				Argument: fmt.Sprintf("%s is priced %.0f%% above the %s benchmark of %.2f",
					item.Description, (item.UnitPrice/bench.UnitPrice-1)*100, bench.Source, bench.UnitPrice),
				Weight:    bench.Similarity * delta,
				Potential: delta,
			})
		}
	}

	if arg, weight, ok := gradeLeverage(req.VendorGrade); ok {
		points = append(points, LeveragePoint{Topic: "performance", Argument: arg, Weight: weight})
	}

	sortPoints(points)
	if len(points) > MaxLeveragePoints {
		points = points[:MaxLeveragePoints]
	}
	for i := range points {
		points[i].Rank = i + 1
	}

	return Strategy{
		Vendor:           req.Vendor,
		Posture:          posture(req.RiskScore, req.VendorGrade, savings),
		LeveragePoints:   points,
		EstimatedSavings: savings,
	}, nil
}

// posture hardens as contract risk, vendor weakness, or recoverable spend
// grows.
func posture(riskScore float64, grade string, savings float64) string {
	weakGrade := grade == "C" || grade == "D"
	switch {
	case riskScore >= 50 || (weakGrade && savings > 0):
		return PostureAggressive
	case riskScore >= 25 || weakGrade || savings > 0:
		return PostureFirm
	default:
		return PostureCollaborative
	}
}

func gradeLeverage(grade string) (string, float64, bool) {
	switch grade {
	case "C+", "C":
		return "Performance history supports stronger service credits", 2.0, true
	case "D":
		return "Performance history justifies termination rights and credits", 4.0, true
	default:
		return "", 0, false
	}
}

func sortPoints(points []LeveragePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Weight != points[j].Weight {
			return points[i].Weight > points[j].Weight
		}
		return points[i].Topic < points[j].Topic
	})
}
