package extract

import (
	"fmt"
	"strings"

	"contract-risk-eval/backend/internal/pipeline"
)

// Extractor converts raw contract text into typed findings using the
// pattern tables. It is pure over its input: no matches means an empty
// list, never an error.
type Extractor struct {
	clauses     []clausePattern
	risks       []riskPattern
	protections []riskPattern
}

// NewExtractor builds an extractor from the built-in tables plus the
// optional YAML override file.
func NewExtractor(overridePath string) (*Extractor, error) {
	e := &Extractor{
		clauses:     defaultClausePatterns(),
		risks:       defaultRiskPatterns(),
		protections: defaultProtectivePatterns(),
	}
	if strings.TrimSpace(overridePath) != "" {
		extra, err := loadPatternOverrides(overridePath)
		if err != nil {
			return nil, fmt.Errorf("pattern overrides: %w", err)
		}
		e.risks = append(e.risks, extra...)
	}
	return e, nil
}

// Clauses detects known clause families and reports each as a finding with
// its position in the source text.
func (e *Extractor) Clauses(text string) []pipeline.Finding {
	normalized := NormalizeText(text)
	var findings []pipeline.Finding
	for _, cp := range e.clauses {
		loc := cp.re.FindStringIndex(normalized)
		if loc == nil {
			continue
		}
		findings = append(findings, pipeline.Finding{
			Category:    cp.Category,
			Severity:    cp.Severity,
			Confidence:  cp.Confidence,
			Description: "clause: " + cp.Name,
			Location:    loc[0],
		})
	}
	return findings
}

// Risks detects risk language in the contract text.
func (e *Extractor) Risks(text string) []pipeline.Finding {
	return matchRiskPatterns(e.risks, text)
}

// Protections detects protective clauses that offset risk points.
func (e *Extractor) Protections(text string) []pipeline.Finding {
	return matchRiskPatterns(e.protections, text)
}

// MissingClauses lists expected clause families absent from the text.
func (e *Extractor) MissingClauses(text string) []string {
	normalized := NormalizeText(text)
	var missing []string
	for _, cp := range e.clauses {
		if !cp.Expected {
			continue
		}
		if cp.re.FindStringIndex(normalized) == nil {
			missing = append(missing, cp.Name)
		}
	}
	return missing
}

// MissingClauseFindings renders missing expected clauses as findings so
// they flow into recommendations alongside detected risks.
func (e *Extractor) MissingClauseFindings(text string) []pipeline.Finding {
	var findings []pipeline.Finding
	for _, name := range e.MissingClauses(text) {
		findings = append(findings, pipeline.Finding{
			Category:    pipeline.CategoryLegal,
			Severity:    pipeline.SeverityMedium,
			Confidence:  0.8,
			Description: "missing clause: " + name,
			Mitigation:  fmt.Sprintf("Add a %s clause", strings.ReplaceAll(name, "_", " ")),
		})
	}
	return findings
}

func matchRiskPatterns(patterns []riskPattern, text string) []pipeline.Finding {
	normalized := NormalizeText(text)
	var findings []pipeline.Finding
	for _, rp := range patterns {
		loc := rp.re.FindStringIndex(normalized)
		if loc == nil {
			continue
		}
		findings = append(findings, pipeline.Finding{
			Category:    rp.Category,
			Severity:    rp.Severity,
			Confidence:  rp.Confidence,
			Description: rp.Reason,
			Location:    loc[0],
			Mitigation:  rp.Mitigation,
		})
	}
	return findings
}
