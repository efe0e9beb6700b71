package pipeline

import "strings"

// Severity is the ordinal severity attached to a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Finding categories shared across the analysis services.
const (
	CategoryLegal       = "legal"
	CategoryFinancial   = "financial"
	CategoryOperational = "operational"
	CategoryCompliance  = "compliance"
)

// Multiplier returns the fixed severity factor applied to score contributions.
// Unknown severities fall back to 1.0 so scoring never fails on bad input.
func (s Severity) Multiplier() float64 {
	switch s {
	case SeverityCritical:
		return 3.0
	case SeverityHigh:
		return 2.0
	case SeverityMedium:
		return 1.5
	case SeverityLow:
		return 1.0
	default:
		return 1.0
	}
}

// Rank orders severities for sorting, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity normalizes a severity label from external input.
func ParseSeverity(value string) Severity {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "critical", "severe":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Finding is a single detected fact produced by the extraction stage.
// Findings are immutable once extracted; later stages only read them.
type Finding struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Location    int      `json:"location,omitempty"`
	Mitigation  string   `json:"mitigation,omitempty"`
}

// CountBySeverity tallies findings per severity label.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
