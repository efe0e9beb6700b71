package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"contract-risk-eval/backend/internal/pipeline"
)

// clausePattern describes one detectable clause family.
type clausePattern struct {
	Name       string
	Category   string
	Severity   pipeline.Severity
	Confidence float64
	Expected   bool
	re         *regexp.Regexp
}

// riskPattern flags contract language that raises or lowers risk.
type riskPattern struct {
	Category   string
	Severity   pipeline.Severity
	Confidence float64
	Reason     string
	Mitigation string
	re         *regexp.Regexp
}

func defaultClausePatterns() []clausePattern {
	return []clausePattern{
		{Name: "indemnification", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityHigh, Confidence: 0.9, Expected: true,
			re: regexp.MustCompile(`indemnif(?:y|ies|ication|ied)`)},
		{Name: "limitation_of_liability", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityHigh, Confidence: 0.9, Expected: true,
			re: regexp.MustCompile(`limitation of liabilit|liability (?:is |shall be )?(?:limited|capped)`)},
		{Name: "termination", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityMedium, Confidence: 0.85, Expected: true,
			re: regexp.MustCompile(`terminat(?:e|ion|ed)`)},
		{Name: "confidentiality", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityMedium, Confidence: 0.85, Expected: true,
			re: regexp.MustCompile(`confidential(?:ity)?|non-?disclosure`)},
		{Name: "governing_law", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityLow, Confidence: 0.9, Expected: true,
			re: regexp.MustCompile(`governing law|governed by the laws`)},
		{Name: "payment_terms", Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityMedium, Confidence: 0.85,
			re: regexp.MustCompile(`payment (?:terms|due|schedule)|net\s*(?:15|30|45|60|90)`)},
		{Name: "warranty", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityMedium, Confidence: 0.8,
			re: regexp.MustCompile(`warrant(?:y|ies|s)`)},
		{Name: "ip_assignment", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityHigh, Confidence: 0.8,
			re: regexp.MustCompile(`intellectual property|work(?:s)? made for hire|ip assignment`)},
		{Name: "force_majeure", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityLow, Confidence: 0.9,
			re: regexp.MustCompile(`force majeure`)},
		{Name: "auto_renewal", Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityMedium, Confidence: 0.85,
			re: regexp.MustCompile(`auto(?:matic(?:ally)?)?[- ]renew`)},
		{Name: "audit_rights", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityLow, Confidence: 0.8,
			re: regexp.MustCompile(`right to audit|audit rights`)},
		{Name: "insurance", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityLow, Confidence: 0.8,
			re: regexp.MustCompile(`insurance|insured`)},
		{Name: "data_protection", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityHigh, Confidence: 0.85,
			re: regexp.MustCompile(`data protection|personal data|data processing agreement`)},
	}
}

func defaultRiskPatterns() []riskPattern {
	return []riskPattern{
		{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityCritical, Confidence: 0.9,
			Reason:     "unlimited liability exposure",
			Mitigation: "Negotiate an aggregate liability cap",
			re:         regexp.MustCompile(`unlimited liability|liability.{0,40}without (?:limit|limitation)|no (?:cap|limit) on liability`)},
		{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityCritical, Confidence: 0.85,
			Reason:     "broad one-sided indemnity",
			Mitigation: "Make indemnification obligations mutual and scoped",
			re:         regexp.MustCompile(`indemnify .{0,80}(?:any and all|without limitation)|sole(?:ly)? responsible for all`)},
		{Category: pipeline.CategoryOperational, Severity: pipeline.SeverityHigh, Confidence: 0.85,
			Reason:     "unilateral termination right",
			Mitigation: "Require termination rights for both parties",
			re:         regexp.MustCompile(`(?:may|can) terminate .{0,40}(?:at any time|sole discretion|without (?:cause|notice))`)},
		{Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityHigh, Confidence: 0.8,
			Reason:     "automatic renewal without notice window",
			Mitigation: "Add a renewal opt-out notice period",
			re:         regexp.MustCompile(`auto(?:matic(?:ally)?)?[- ]renew.{0,60}(?:unless|without)`)},
		{Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityMedium, Confidence: 0.75,
			Reason:     "punitive late-payment interest",
			Mitigation: "Align late fees with statutory rates",
			re:         regexp.MustCompile(`interest .{0,30}(?:1\.5|2|3|5)\s*% per month|penalt(?:y|ies) .{0,30}late`)},
		{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityHigh, Confidence: 0.8,
			Reason:     "waiver of legal remedies",
			Mitigation: "Strike the waiver or narrow it to specific claims",
			re:         regexp.MustCompile(`waives? (?:any|all) (?:rights?|claims?|remedies)`)},
		{Category: pipeline.CategoryOperational, Severity: pipeline.SeverityMedium, Confidence: 0.75,
			Reason:     "exclusivity obligation",
			Mitigation: "Limit exclusivity by territory or duration",
			re:         regexp.MustCompile(`exclusive(?:ly)? (?:supplier|provider|dealing)|shall not .{0,40}compet`)},
	}
}

func defaultProtectivePatterns() []riskPattern {
	return []riskPattern{
		{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityLow, Confidence: 0.9,
			Reason: "aggregate liability cap",
			re:     regexp.MustCompile(`liability .{0,60}(?:shall not exceed|capped at|limited to)`)},
		{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityLow, Confidence: 0.85,
			Reason: "mutual indemnification",
			re:     regexp.MustCompile(`each party (?:shall|agrees to) indemnify|mutual(?:ly)? indemnif`)},
		{Category: pipeline.CategoryOperational, Severity: pipeline.SeverityLow, Confidence: 0.85,
			Reason: "cure period before termination",
			re:     regexp.MustCompile(`cure (?:period|such breach)|(?:30|60|90) days? (?:to cure|written notice)`)},
		{Category: pipeline.CategoryOperational, Severity: pipeline.SeverityLow, Confidence: 0.8,
			Reason: "termination for convenience",
			re:     regexp.MustCompile(`terminat(?:e|ion) for convenience`)},
	}
}

// patternOverrides is the YAML shape for extending the built-in tables:
// severity label mapped to extra keyword patterns per category.
type patternOverrides struct {
	Risks map[string][]overrideEntry `yaml:"risks"`
}

type overrideEntry struct {
	Category   string `yaml:"category"`
	Pattern    string `yaml:"pattern"`
	Reason     string `yaml:"reason"`
	Mitigation string `yaml:"mitigation"`
}

func loadPatternOverrides(path string) ([]riskPattern, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read pattern overrides: %w", err)
	}
	var raw patternOverrides
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal pattern overrides: %w", err)
	}
	var out []riskPattern
	for severity, entries := range raw.Risks {
		for _, entry := range entries {
			pattern := strings.TrimSpace(entry.Pattern)
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compile override pattern %q: %w", pattern, err)
			}
			category := strings.TrimSpace(entry.Category)
			if category == "" {
				category = pipeline.CategoryLegal
			}
			out = append(out, riskPattern{
				Category:   category,
				Severity:   pipeline.ParseSeverity(severity),
				Confidence: 0.7,
				Reason:     strings.TrimSpace(entry.Reason),
				Mitigation: strings.TrimSpace(entry.Mitigation),
				re:         re,
			})
		}
	}
	return out, nil
}
