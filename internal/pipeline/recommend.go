package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Caps applied to caller-visible result lists. Truncation always takes the
// first N after sorting by severity/rank descending.
const (
	MaxChecks          = 20
	MaxIssues          = 10
	MaxClauses         = 10
	MaxRecommendations = 5
)

// Recommendation is a derived, human-readable action item. Recommendations
// are ordered by rank and truncated per response; they never exist
// independently of the findings that produced them.
type Recommendation struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
	Rank     int      `json:"rank"`
}

// Derive produces the capped, ordered recommendation list for a set of
// findings. Critical findings collapse into a single summary entry so a
// response is never flooded by one bad clause class; duplicate texts are
// removed before truncation.
func Derive(findings []Finding, limit int) []Recommendation {
	if limit <= 0 {
		limit = MaxRecommendations
	}

	var recs []Recommendation
	criticals := 0
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			criticals++
		}
	}
	if criticals > 0 {
		noun := "critical gaps"
		if criticals == 1 {
			noun = "critical gap"
		}
		recs = append(recs, Recommendation{
			Text:     fmt.Sprintf("Address %d %s before proceeding", criticals, noun),
			Severity: SeverityCritical,
		})
	}

	ordered := SortBySeverity(findings)
	for _, f := range ordered {
		if f.Severity == SeverityCritical {
			continue
		}
		text := strings.TrimSpace(f.Mitigation)
		if text == "" {
			desc := strings.TrimSpace(f.Description)
			if desc == "" {
				continue
			}
			text = "Review: " + desc
		}
		recs = append(recs, Recommendation{Text: text, Severity: f.Severity})
	}

	recs = dedupeRecommendations(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	for i := range recs {
		recs[i].Rank = i + 1
	}
	return recs
}

// SortBySeverity returns a copy of findings ordered by severity rank
// descending, then confidence descending. The sort is stable so identical
// inputs always truncate to the same prefix.
func SortBySeverity(findings []Finding) []Finding {
	out := make([]Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// TopFindings sorts by severity descending and keeps the first limit entries.
func TopFindings(findings []Finding, limit int) []Finding {
	out := SortBySeverity(findings)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dedupeRecommendations(in []Recommendation) []Recommendation {
	seen := make(map[string]struct{}, len(in))
	var out []Recommendation
	for _, rec := range in {
		key := strings.ToLower(strings.TrimSpace(rec.Text))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// Texts flattens recommendations into their display strings.
func Texts(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Text)
	}
	return out
}
