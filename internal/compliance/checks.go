package compliance

import (
	"regexp"

	"contract-risk-eval/backend/internal/pipeline"
)

// check is one verifiable requirement under a regulation.
type check struct {
	ID          string
	Regulation  string
	Description string
	Category    string
	Severity    pipeline.Severity
	re          *regexp.Regexp
}

// Regulations supported by the built-in check sets.
var SupportedRegulations = []string{"GDPR", "HIPAA", "SOX", "PCI-DSS", "FAR"}

func checksFor(regulation string) []check {
	switch regulation {
	case "GDPR":
		return []check{
			{ID: "gdpr-dpa", Regulation: "GDPR", Description: "data processing agreement referenced", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityCritical,
				re: regexp.MustCompile(`data processing agreement|article 28|processor obligations`)},
			{ID: "gdpr-lawful-basis", Regulation: "GDPR", Description: "lawful basis for processing stated", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`lawful basis|legitimate interest|consent of the data subject`)},
			{ID: "gdpr-breach-notice", Regulation: "GDPR", Description: "breach notification window defined", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`(?:breach|incident) notif.{0,60}(?:72 hours|without undue delay)`)},
			{ID: "gdpr-transfers", Regulation: "GDPR", Description: "cross-border transfer safeguards", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityMedium,
				re: regexp.MustCompile(`standard contractual clauses|adequacy decision|transfer mechanism`)},
			{ID: "gdpr-deletion", Regulation: "GDPR", Description: "data deletion or return on termination", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityMedium,
				re: regexp.MustCompile(`delete (?:or return )?(?:all )?personal data|data retention`)},
		}
	case "HIPAA":
		return []check{
			{ID: "hipaa-baa", Regulation: "HIPAA", Description: "business associate agreement present", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityCritical,
				re: regexp.MustCompile(`business associate agreement|45 c\.?f\.?r\.?`)},
			{ID: "hipaa-phi", Regulation: "HIPAA", Description: "protected health information safeguards", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`protected health information|phi safeguards|minimum necessary`)},
			{ID: "hipaa-breach", Regulation: "HIPAA", Description: "breach reporting obligation", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`breach (?:report|notification)`)},
		}
	case "SOX":
		return []check{
			{ID: "sox-audit", Regulation: "SOX", Description: "audit rights over financial records", Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`right to audit|audit rights|books and records`)},
			{ID: "sox-controls", Regulation: "SOX", Description: "internal control attestation", Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityMedium,
				re: regexp.MustCompile(`internal controls?|soc [12]|control attestation`)},
			{ID: "sox-retention", Regulation: "SOX", Description: "records retention period", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityMedium,
				re: regexp.MustCompile(`retain(?:ed|tion)? .{0,40}(?:records|documents)|record retention`)},
		}
	case "PCI-DSS":
		return []check{
			{ID: "pci-scope", Regulation: "PCI-DSS", Description: "cardholder data handling scoped", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityCritical,
				re: regexp.MustCompile(`cardholder data|pci[- ]dss`)},
			{ID: "pci-attestation", Regulation: "PCI-DSS", Description: "compliance attestation required", Category: pipeline.CategoryCompliance, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`attestation of compliance|aoc|qsa`)},
		}
	case "FAR":
		return []check{
			{ID: "far-flowdown", Regulation: "FAR", Description: "mandatory flow-down clauses", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityHigh,
				re: regexp.MustCompile(`far (?:52|clause)|flow[- ]down`)},
			{ID: "far-termination", Regulation: "FAR", Description: "termination for convenience of the government", Category: pipeline.CategoryLegal, Severity: pipeline.SeverityMedium,
				re: regexp.MustCompile(`termination for convenience`)},
			{ID: "far-smallbiz", Regulation: "FAR", Description: "small business subcontracting plan", Category: pipeline.CategoryOperational, Severity: pipeline.SeverityLow,
				re: regexp.MustCompile(`small business subcontracting`)},
		}
	default:
		return nil
	}
}
