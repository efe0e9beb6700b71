package extract

import (
	"regexp"
	"strconv"
	"strings"

	"contract-risk-eval/backend/internal/pipeline"
)

// LooseReport is structured data recovered from a free-text model reply
// that failed strict JSON parsing.
type LooseReport struct {
	Score           *float64
	Findings        []pipeline.Finding
	Recommendations []string
}

var (
	looseScoreRe   = regexp.MustCompile(`(?i)(?:risk|overall|compliance)[ _]?score\s*[:=]?\s*(\d+(?:\.\d+)?)`)
	looseBulletRe  = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+(.{3,})$`)
	looseFindingRe = regexp.MustCompile(`(?i)^\[?(critical|high|medium|low)\]?\s*[:\-]\s*(.+)$`)
)

// ParseLooseReport extracts scores, severity-tagged findings, and bullet
// recommendations from a raw model reply. Missing pieces stay zero-valued;
// parsing never fails.
func ParseLooseReport(raw string) LooseReport {
	var report LooseReport

	if m := looseScoreRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			score := pipeline.Clamp(v, 0, 100)
			report.Score = &score
		}
	}

	seen := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := looseFindingRe.FindStringSubmatch(line); m != nil {
			desc := strings.TrimSpace(m[2])
			if desc == "" {
				continue
			}
			report.Findings = append(report.Findings, pipeline.Finding{
				Category:    pipeline.CategoryLegal,
				Severity:    pipeline.ParseSeverity(m[1]),
				Confidence:  0.5,
				Description: desc,
			})
		}
	}

	for _, m := range looseBulletRe.FindAllStringSubmatch(raw, -1) {
		text := strings.TrimSpace(m[1])
		if looseFindingRe.MatchString(text) {
			continue
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		report.Recommendations = append(report.Recommendations, text)
	}
	if len(report.Recommendations) > pipeline.MaxRecommendations {
		report.Recommendations = report.Recommendations[:pipeline.MaxRecommendations]
	}
	return report
}
