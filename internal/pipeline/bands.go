package pipeline

import (
	"errors"
	"fmt"
)

// Band maps the half-open score range starting at Lower to a discrete label.
type Band struct {
	Lower float64
	Label string
}

// BandTable is an ordered set of bands covering [0,100] with no gaps. Bands
// are evaluated top-down; the first band whose lower bound is at or below
// the score wins.
type BandTable []Band

// NewBandTable validates that bands descend strictly and that the final band
// catches the remainder down to zero.
func NewBandTable(bands ...Band) (BandTable, error) {
	if len(bands) == 0 {
		return nil, errors.New("band table requires at least one band")
	}
	prev := 101.0
	for _, b := range bands {
		if b.Label == "" {
			return nil, errors.New("band label is empty")
		}
		if b.Lower >= prev {
			return nil, fmt.Errorf("band %q lower bound %.2f does not descend", b.Label, b.Lower)
		}
		prev = b.Lower
	}
	if bands[len(bands)-1].Lower != 0 {
		return nil, fmt.Errorf("final band %q must start at 0", bands[len(bands)-1].Label)
	}
	return BandTable(bands), nil
}

func mustBandTable(bands ...Band) BandTable {
	table, err := NewBandTable(bands...)
	if err != nil {
		panic(err)
	}
	return table
}

// Classify maps a score to its band label. Boundaries are inclusive on the
// lower bound. Classification is total over [0,100]; values outside the
// range clamp into it first.
func (t BandTable) Classify(score float64) string {
	score = Clamp(score, 0, 100)
	for _, b := range t {
		if score >= b.Lower {
			return b.Label
		}
	}
	return t[len(t)-1].Label
}

// Degrade returns the label one band below the supplied label, used when a
// stage failed with a safe default and the reported confidence must drop.
// The lowest band degrades to itself.
func (t BandTable) Degrade(label string) string {
	for i, b := range t {
		if b.Label == label {
			if i+1 < len(t) {
				return t[i+1].Label
			}
			return b.Label
		}
	}
	return t[len(t)-1].Label
}

// Confidence level labels.
const (
	ConfidenceVeryHigh = "VERY_HIGH"
	ConfidenceHigh     = "HIGH"
	ConfidenceMedium   = "MEDIUM"
	ConfidenceLow      = "LOW"
	ConfidenceVeryLow  = "VERY_LOW"
)

// ConfidenceBands maps an evidence score to a discrete confidence level.
var ConfidenceBands = mustBandTable(
	Band{Lower: 85, Label: ConfidenceVeryHigh},
	Band{Lower: 75, Label: ConfidenceHigh},
	Band{Lower: 60, Label: ConfidenceMedium},
	Band{Lower: 40, Label: ConfidenceLow},
	Band{Lower: 0, Label: ConfidenceVeryLow},
)

// ComplianceStatusBands maps a compliance score to a status label.
var ComplianceStatusBands = mustBandTable(
	Band{Lower: 95, Label: "fully_compliant"},
	Band{Lower: 80, Label: "mostly_compliant"},
	Band{Lower: 60, Label: "partially_compliant"},
	Band{Lower: 40, Label: "non_compliant"},
	Band{Lower: 0, Label: "severely_non_compliant"},
)

// RiskLevelBands maps a contract risk score to a risk level.
var RiskLevelBands = mustBandTable(
	Band{Lower: 75, Label: "CRITICAL"},
	Band{Lower: 50, Label: "HIGH"},
	Band{Lower: 25, Label: "MEDIUM"},
	Band{Lower: 0, Label: "LOW"},
)

// GradeBands maps a vendor overall score to a performance grade.
var GradeBands = mustBandTable(
	Band{Lower: 90, Label: "A"},
	Band{Lower: 80, Label: "B+"},
	Band{Lower: 70, Label: "B"},
	Band{Lower: 60, Label: "C+"},
	Band{Lower: 50, Label: "C"},
	Band{Lower: 0, Label: "D"},
)
