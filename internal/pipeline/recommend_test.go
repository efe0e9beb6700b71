package pipeline

import (
	"fmt"
	"reflect"
	"testing"
)

func TestDeriveCriticalSummary(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityCritical, Description: "uncapped indemnity"},
		{Severity: SeverityCritical, Description: "unlimited liability"},
		{Severity: SeverityCritical, Description: "no termination right"},
		{Severity: SeverityHigh, Description: "auto renewal", Mitigation: "Negotiate a renewal notice window"},
	}
	recs := Derive(findings, 5)
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	if recs[0].Text != "Address 3 critical gaps before proceeding" {
		t.Fatalf("summary = %q", recs[0].Text)
	}
	// Criticals collapse into the summary; only the high finding adds a row.
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[1].Text != "Negotiate a renewal notice window" {
		t.Fatalf("second recommendation = %q", recs[1].Text)
	}
}

func TestDeriveSingleCritical(t *testing.T) {
	recs := Derive([]Finding{{Severity: SeverityCritical, Description: "x"}}, 5)
	if recs[0].Text != "Address 1 critical gap before proceeding" {
		t.Fatalf("summary = %q", recs[0].Text)
	}
}

func TestDeriveDeduplicates(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh, Mitigation: "Cap aggregate liability"},
		{Severity: SeverityMedium, Mitigation: "Cap aggregate liability"},
	}
	recs := Derive(findings, 5)
	if len(recs) != 1 {
		t.Fatalf("expected deduplicated list of 1, got %d", len(recs))
	}
}

func TestDeriveRanksAssigned(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityLow, Mitigation: "low fix"},
		{Severity: SeverityHigh, Mitigation: "high fix"},
	}
	recs := Derive(findings, 5)
	if recs[0].Text != "high fix" || recs[0].Rank != 1 {
		t.Fatalf("unexpected head %+v", recs[0])
	}
	if recs[1].Rank != 2 {
		t.Fatalf("rank = %d, want 2", recs[1].Rank)
	}
}

func TestTopFindingsDeterministicTruncation(t *testing.T) {
	findings := make([]Finding, 25)
	for i := range findings {
		severity := SeverityLow
		switch {
		case i < 5:
			severity = SeverityCritical
		case i < 12:
			severity = SeverityHigh
		case i < 18:
			severity = SeverityMedium
		}
		findings[i] = Finding{
			Severity:    severity,
			Confidence:  1.0 - float64(i)*0.01,
			Description: fmt.Sprintf("check-%02d", i),
		}
	}

	first := TopFindings(findings, MaxChecks)
	if len(first) != MaxChecks {
		t.Fatalf("expected %d findings, got %d", MaxChecks, len(first))
	}
	for run := 0; run < 5; run++ {
		again := TopFindings(findings, MaxChecks)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("truncation not deterministic on run %d", run)
		}
	}
	if first[0].Severity != SeverityCritical {
		t.Fatalf("head severity = %s, want critical", first[0].Severity)
	}
	for i := 1; i < len(first); i++ {
		if first[i].Severity.Rank() > first[i-1].Severity.Rank() {
			t.Fatalf("ordering broken at %d", i)
		}
	}
}
