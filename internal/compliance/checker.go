// Package compliance evaluates contract text against named regulations and
// reduces the check outcomes to one compliance score and status.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"contract-risk-eval/backend/internal/ai"
	"contract-risk-eval/backend/internal/extract"
	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/util"
)

// ErrEmptyDocument rejects compliance requests without contract text.
var ErrEmptyDocument = errors.New("contract text is empty")

// ErrUnknownRegulation rejects requests naming an unsupported regulation.
var ErrUnknownRegulation = errors.New("unknown regulation")

// CheckResult is the outcome of one regulation check.
type CheckResult struct {
	ID          string            `json:"id"`
	Regulation  string            `json:"regulation"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Severity    pipeline.Severity `json:"severity"`
	Passed      bool              `json:"passed"`
}

// Report is the complete output of one compliance run.
type Report struct {
	DocumentName     string                    `json:"document_name"`
	Regulations      []string                  `json:"regulations"`
	ComplianceScore  float64                   `json:"compliance_score"`
	Status           string                    `json:"status"`
	Confidence       string                    `json:"confidence"`
	Checks           []CheckResult             `json:"checks"`
	Issues           []pipeline.Finding        `json:"issues"`
	Recommendations  []pipeline.Recommendation `json:"recommendations"`
	Narrative        string                    `json:"narrative,omitempty"`
	Degraded         bool                      `json:"degraded"`
	ProcessingTimeMs int64                     `json:"processing_time_ms"`
}

// Checker runs regulation check sets over contract text.
type Checker struct {
	analyzer ai.Analyzer
	weights  pipeline.WeightTable
}

// NewChecker constructs a checker. The analyzer may be nil.
func NewChecker(analyzer ai.Analyzer, weights pipeline.WeightTable) *Checker {
	if weights == nil {
		weights = pipeline.DefaultWeights()
	}
	return &Checker{analyzer: analyzer, weights: weights}
}

// Check evaluates the document against the named regulations. Unknown
// regulations are rejected up front; an empty regulation list runs every
// supported check set. No applicable checks yields a score of exactly 100.
func (c *Checker) Check(ctx context.Context, name, text string, regulations []string) (Report, error) {
	timer := util.StartTimer()
	if strings.TrimSpace(text) == "" {
		return Report{}, ErrEmptyDocument
	}

	selected, err := resolveRegulations(regulations)
	if err != nil {
		return Report{}, err
	}

	normalized := extract.NormalizeText(text)
	var results []CheckResult
	var items []pipeline.WeightedScore
	var issues []pipeline.Finding
	for _, regulation := range selected {
		for _, ck := range checksFor(regulation) {
			passed := ck.re.MatchString(normalized)
			results = append(results, CheckResult{
				ID:          ck.ID,
				Regulation:  ck.Regulation,
				Description: ck.Description,
				Category:    ck.Category,
				Severity:    ck.Severity,
				Passed:      passed,
			})
			finding := pipeline.Finding{
				Category:   ck.Category,
				Severity:   ck.Severity,
				Confidence: 1.0,
			}
			score := 0.0
			if passed {
				score = 100.0
			} else {
				finding.Description = fmt.Sprintf("%s: %s not satisfied", ck.Regulation, ck.Description)
				finding.Mitigation = fmt.Sprintf("Add language covering %s (%s)", ck.Description, ck.Regulation)
				issues = append(issues, finding)
			}
			items = append(items, pipeline.WeightedScore{
				Score:  score,
				Weight: pipeline.FindingWeight(finding, c.weights),
			})
		}
	}

	report := Report{
		DocumentName: name,
		Regulations:  selected,
	}

	if c.analyzer != nil && c.analyzer.Enabled() {
		result, err := c.analyzer.Analyze(ctx, text, ai.TaskCompliance)
		switch {
		case err == nil:
			report.Narrative = result.Narrative
			report.Degraded = result.Degraded
			issues = append(issues, result.Findings...)
		case errors.Is(err, context.Canceled):
			return Report{}, err
		default:
			logrus.WithError(err).WithField("document", name).Warn("compliance analyzer failed")
			report.Degraded = true
		}
	}

	report.ComplianceScore = pipeline.WeightedAverage(items, 100.0)
	report.Status = pipeline.ComplianceStatusBands.Classify(report.ComplianceScore)

	confidence := pipeline.ConfidenceBands.Classify(pipeline.EvidenceConfidence(checkEvidence(results)))
	if report.Degraded {
		confidence = pipeline.ConfidenceBands.Degrade(confidence)
	}
	report.Confidence = confidence

	report.Checks = sortChecks(results, pipeline.MaxChecks)
	report.Issues = pipeline.TopFindings(issues, pipeline.MaxIssues)
	report.Recommendations = pipeline.Derive(issues, pipeline.MaxRecommendations)
	report.ProcessingTimeMs = timer.ElapsedMs()
	return report, nil
}

func resolveRegulations(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string{}, SupportedRegulations...), nil
	}
	supported := make(map[string]string, len(SupportedRegulations))
	for _, reg := range SupportedRegulations {
		supported[strings.ToLower(reg)] = reg
	}
	seen := make(map[string]struct{}, len(requested))
	var out []string
	for _, raw := range requested {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		canonical, ok := supported[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRegulation, raw)
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return append([]string{}, SupportedRegulations...), nil
	}
	return out, nil
}

// sortChecks orders failed checks first by severity, then passed checks,
// and truncates to the response cap.
func sortChecks(results []CheckResult, limit int) []CheckResult {
	findings := make([]pipeline.Finding, len(results))
	for i, r := range results {
		conf := 0.0
		if !r.Passed {
			conf = 1.0
		}
		findings[i] = pipeline.Finding{Severity: r.Severity, Confidence: conf, Location: i}
	}
	ordered := pipeline.SortBySeverity(findings)
	out := make([]CheckResult, 0, len(ordered))
	for _, f := range ordered {
		out = append(out, results[f.Location])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func checkEvidence(results []CheckResult) []pipeline.Finding {
	findings := make([]pipeline.Finding, len(results))
	for i, r := range results {
		findings[i] = pipeline.Finding{Severity: r.Severity, Confidence: 0.9}
	}
	return findings
}
