package rfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardCriteria() []Criterion {
	return []Criterion{
		{Name: "technical", Weight: 0.5},
		{Name: "price", Weight: 0.3},
		{Name: "delivery", Weight: 0.2},
	}
}

func TestEvaluateRanksAndAwards(t *testing.T) {
	eval, err := Evaluate(standardCriteria(), []Proposal{
		{Vendor: "Beta Corp", Scores: map[string]float64{"technical": 70, "price": 90, "delivery": 60}, Price: 90000, Compliant: true},
		{Vendor: "Alpha Ltd", Scores: map[string]float64{"technical": 90, "price": 80, "delivery": 85}, Price: 120000, Compliant: true},
		{Vendor: "Gamma Inc", Scores: map[string]float64{"technical": 40, "price": 50, "delivery": 30}, Price: 60000, Compliant: true},
	})
	require.NoError(t, err)
	require.Len(t, eval.Matrix, 3)

	// Alpha: 90*.5+80*.3+85*.2 = 86; Beta: 70*.5+90*.3+60*.2 = 74; Gamma: 41
	assert.Equal(t, "Alpha Ltd", eval.Matrix[0].Vendor)
	assert.InDelta(t, 86.0, eval.Matrix[0].Score, 1e-9)
	assert.Equal(t, DecisionAward, eval.Matrix[0].Decision)
	assert.Equal(t, 1, eval.Matrix[0].Rank)

	assert.Equal(t, "Beta Corp", eval.Matrix[1].Vendor)
	assert.InDelta(t, 74.0, eval.Matrix[1].Score, 1e-9)
	assert.Equal(t, DecisionNegotiate, eval.Matrix[1].Decision)

	assert.Equal(t, "Gamma Inc", eval.Matrix[2].Vendor)
	assert.Equal(t, DecisionReject, eval.Matrix[2].Decision)

	assert.Equal(t, "Alpha Ltd", eval.Winner)
}

func TestEvaluateNonCompliantCannotWin(t *testing.T) {
	eval, err := Evaluate(standardCriteria(), []Proposal{
		{Vendor: "Strong But Barred", Scores: map[string]float64{"technical": 95, "price": 95, "delivery": 95}, Compliant: false},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionNegotiate, eval.Matrix[0].Decision)
	assert.Empty(t, eval.Winner)
}

func TestEvaluateMissingCriterionScoresZero(t *testing.T) {
	eval, err := Evaluate(standardCriteria(), []Proposal{
		{Vendor: "Partial", Scores: map[string]float64{"technical": 100}, Compliant: true},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, eval.Matrix[0].Score, 1e-9)
	assert.Equal(t, DecisionNegotiate, eval.Matrix[0].Decision)
}

func TestEvaluateNormalizesWeights(t *testing.T) {
	eval, err := Evaluate([]Criterion{
		{Name: "technical", Weight: 5},
		{Name: "price", Weight: 5},
	}, []Proposal{
		{Vendor: "Even", Scores: map[string]float64{"technical": 80, "price": 60}, Compliant: true},
	})
	require.NoError(t, err)
	assert.InDelta(t, 70.0, eval.Matrix[0].Score, 1e-9)
}

func TestEvaluateTieBreaksByVendorName(t *testing.T) {
	eval, err := Evaluate(standardCriteria(), []Proposal{
		{Vendor: "Zed", Scores: map[string]float64{"technical": 80, "price": 80, "delivery": 80}, Compliant: true},
		{Vendor: "Ada", Scores: map[string]float64{"technical": 80, "price": 80, "delivery": 80}, Compliant: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", eval.Matrix[0].Vendor)
	assert.Equal(t, "Ada", eval.Winner)
}

func TestEvaluateInputValidation(t *testing.T) {
	_, err := Evaluate(nil, []Proposal{{Vendor: "X", Compliant: true}})
	assert.ErrorIs(t, err, ErrNoCriteria)

	_, err = Evaluate([]Criterion{{Name: "only", Weight: -1}}, []Proposal{{Vendor: "X"}})
	assert.ErrorIs(t, err, ErrNoCriteria)

	_, err = Evaluate(standardCriteria(), nil)
	assert.ErrorIs(t, err, ErrNoProposals)
}
