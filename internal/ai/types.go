package ai

import "contract-risk-eval/backend/internal/pipeline"

// Task selects the analysis prompt the model runs against the document.
type Task string

const (
	TaskContractRisk Task = "contract_risk"
	TaskCompliance   Task = "compliance"
	TaskNegotiation  Task = "negotiation"
)

// Result is the structured analysis expected from the model. When the model
// replies with prose instead of JSON, the fields are recovered by the loose
// text parser and Degraded is set.
type Result struct {
	Narrative       string             `json:"narrative"`
	Score           *float64           `json:"score,omitempty"`
	Findings        []pipeline.Finding `json:"findings,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Degraded        bool               `json:"-"`
}
