package extract

import (
	"strings"
	"testing"

	"contract-risk-eval/backend/internal/pipeline"
)

const sampleContract = `
MASTER SERVICES AGREEMENT

1. Limitation of Liability. Vendor's aggregate liability shall not exceed
the fees paid in the prior twelve months.

2. Indemnification. Each party shall indemnify the other against third
party claims arising from its own negligence.

3. Termination. Customer may terminate this agreement at any time at its
sole discretion without cause.

4. Confidentiality. Both parties shall keep Confidential Information in
strict confidence.

5. Governing Law. This agreement is governed by the laws of Delaware.
`

func TestClausesDetected(t *testing.T) {
	e, err := NewExtractor("")
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	findings := e.Clauses(sampleContract)

	got := make(map[string]bool)
	for _, f := range findings {
		got[strings.TrimPrefix(f.Description, "clause: ")] = true
	}
	for _, want := range []string{"limitation_of_liability", "indemnification", "termination", "confidentiality", "governing_law"} {
		if !got[want] {
			t.Fatalf("clause %s not detected; got %v", want, got)
		}
	}
}

func TestRisksAndProtections(t *testing.T) {
	e, err := NewExtractor("")
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	risks := e.Risks(sampleContract)
	foundUnilateral := false
	for _, f := range risks {
		if f.Description == "unilateral termination right" {
			foundUnilateral = true
			if f.Severity != pipeline.SeverityHigh {
				t.Fatalf("unilateral termination severity = %s", f.Severity)
			}
		}
	}
	if !foundUnilateral {
		t.Fatal("unilateral termination risk not detected")
	}

	protections := e.Protections(sampleContract)
	foundCap := false
	for _, f := range protections {
		if f.Description == "aggregate liability cap" {
			foundCap = true
		}
	}
	if !foundCap {
		t.Fatal("liability cap protection not detected")
	}
}

func TestMissingClauses(t *testing.T) {
	e, err := NewExtractor("")
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	missing := e.MissingClauses("the parties agree to deliver widgets.")
	if len(missing) == 0 {
		t.Fatal("expected missing expected clauses on a bare text")
	}
	set := make(map[string]bool, len(missing))
	for _, name := range missing {
		set[name] = true
	}
	if !set["indemnification"] || !set["governing_law"] {
		t.Fatalf("missing list incomplete: %v", missing)
	}

	if got := e.MissingClauses(sampleContract); len(got) != 0 {
		t.Fatalf("sample contract should cover expected clauses, missing %v", got)
	}
}

func TestEmptyTextYieldsEmptyLists(t *testing.T) {
	e, _ := NewExtractor("")
	if got := e.Clauses(""); len(got) != 0 {
		t.Fatalf("clauses on empty text = %v", got)
	}
	if got := e.Risks(""); len(got) != 0 {
		t.Fatalf("risks on empty text = %v", got)
	}
}

func TestParseLooseReport(t *testing.T) {
	raw := `The overall risk score: 62 for this agreement.

[HIGH]: vendor may terminate without notice
[medium] - payment terms exceed net 60

Recommended next steps:
- Cap the liability exposure
- Cap the liability exposure
- Add a governing law clause
`
	report := ParseLooseReport(raw)
	if report.Score == nil || *report.Score != 62 {
		t.Fatalf("score = %v, want 62", report.Score)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(report.Findings))
	}
	if report.Findings[0].Severity != pipeline.SeverityHigh {
		t.Fatalf("first finding severity = %s", report.Findings[0].Severity)
	}
	if len(report.Recommendations) != 2 {
		t.Fatalf("recommendations = %v, want deduplicated pair", report.Recommendations)
	}
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  Force\n\tMAJEURE   Clause ")
	if got != "force majeure clause" {
		t.Fatalf("normalize = %q", got)
	}
}
