// Package rfq scores competing proposals against weighted award criteria
// and produces a ranked award matrix.
package rfq

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"contract-risk-eval/backend/internal/pipeline"
)

// Award decisions for a ranked proposal.
const (
	DecisionAward     = "AWARD"
	DecisionNegotiate = "NEGOTIATE"
	DecisionReject    = "REJECT"
)

const (
	awardThreshold     = 75.0
	negotiateThreshold = 50.0
)

// ErrNoCriteria rejects evaluations without any positively weighted criterion.
var ErrNoCriteria = errors.New("no weighted criteria supplied")

// ErrNoProposals rejects evaluations without proposals.
var ErrNoProposals = errors.New("no proposals supplied")

// Criterion is one award dimension with its relative weight.
type Criterion struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Proposal is one vendor's response. Scores are keyed by criterion name,
// each on [0,100]; a missing criterion scores zero.
type Proposal struct {
	Vendor    string             `json:"vendor"`
	Scores    map[string]float64 `json:"scores"`
	Price     float64            `json:"price"`
	Compliant bool               `json:"compliant"`
}

// Ranked is one evaluated proposal in the award matrix.
type Ranked struct {
	Rank      int     `json:"rank"`
	Vendor    string  `json:"vendor"`
	Score     float64 `json:"score"`
	Price     float64 `json:"price"`
	Compliant bool    `json:"compliant"`
	Decision  string  `json:"decision"`
}

// Evaluation is the full output of one RFQ run.
type Evaluation struct {
	Criteria []Criterion `json:"criteria"`
	Matrix   []Ranked    `json:"matrix"`
	Winner   string      `json:"winner,omitempty"`
}

// Evaluate scores every proposal as the weight-normalized average of its
// criterion scores, ranks by score descending with vendor name breaking
// ties, and assigns an award decision per row. Only a compliant proposal at
// or above the award threshold can win.
func Evaluate(criteria []Criterion, proposals []Proposal) (Evaluation, error) {
	normalized, err := normalizeCriteria(criteria)
	if err != nil {
		return Evaluation{}, err
	}
	if len(proposals) == 0 {
		return Evaluation{}, ErrNoProposals
	}

	matrix := make([]Ranked, 0, len(proposals))
	for _, p := range proposals {
		matrix = append(matrix, Ranked{
			Vendor:    strings.TrimSpace(p.Vendor),
			Score:     proposalScore(normalized, p),
			Price:     p.Price,
			Compliant: p.Compliant,
		})
	}

	sort.SliceStable(matrix, func(i, j int) bool {
		if matrix[i].Score != matrix[j].Score {
			return matrix[i].Score > matrix[j].Score
		}
		return matrix[i].Vendor < matrix[j].Vendor
	})

	eval := Evaluation{Criteria: normalized, Matrix: matrix}
	for i := range eval.Matrix {
		eval.Matrix[i].Rank = i + 1
		eval.Matrix[i].Decision = decide(eval.Matrix[i])
	}
	for _, row := range eval.Matrix {
		if row.Decision == DecisionAward {
			eval.Winner = row.Vendor
			break
		}
	}
	return eval, nil
}

func decide(row Ranked) string {
	switch {
	case row.Score >= awardThreshold && row.Compliant:
		return DecisionAward
	case row.Score >= negotiateThreshold:
		return DecisionNegotiate
	default:
		return DecisionReject
	}
}

// normalizeCriteria rescales positive weights to sum to 1, dropping
// non-positive entries.
func normalizeCriteria(criteria []Criterion) ([]Criterion, error) {
	var total float64
	kept := make([]Criterion, 0, len(criteria))
	for _, c := range criteria {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Weight <= 0 {
			continue
		}
		kept = append(kept, Criterion{Name: name, Weight: c.Weight})
		total += c.Weight
	}
	if total <= 0 {
		return nil, ErrNoCriteria
	}
	for i := range kept {
		kept[i].Weight /= total
	}
	return kept, nil
}

func proposalScore(criteria []Criterion, p Proposal) float64 {
	var score float64
	for _, c := range criteria {
		score += c.Weight * pipeline.Clamp(p.Scores[c.Name], 0, 100)
	}
	return pipeline.Clamp(score, 0, 100)
}

// Summary renders a short human-readable outcome line for audit logs.
func (e Evaluation) Summary() string {
	if e.Winner == "" {
		return fmt.Sprintf("no award among %d proposals", len(e.Matrix))
	}
	return fmt.Sprintf("award to %s over %d proposals", e.Winner, len(e.Matrix))
}
