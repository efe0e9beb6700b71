package store

import (
	"encoding/json"
	"strings"
	"time"

	"contract-risk-eval/backend/internal/pipeline"
)

// Analysis is the per-document scoring output persisted for querying and
// export. One row per document per analysis kind.
type Analysis struct {
	ID                  uint   `gorm:"primaryKey"`
	Kind                string `gorm:"size:32;index;uniqueIndex:idx_analyses_kind_doc"`
	DocumentName        string `gorm:"size:255;index"`
	DocumentKey         string `gorm:"size:255;uniqueIndex:idx_analyses_kind_doc"`
	OverallScore        float64
	StatusLabel         string `gorm:"size:64;index"`
	ConfidenceLevel     string `gorm:"size:16"`
	FindingsJSON        string `gorm:"type:text"`
	RecommendationsJSON string `gorm:"type:text"`
	Narrative           string `gorm:"type:text"`
	ProcessingTimeMs    int64
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

// SetFindings persists the finding list as JSON.
func (a *Analysis) SetFindings(findings []pipeline.Finding) {
	payload, _ := json.Marshal(findings)
	a.FindingsJSON = string(payload)
}

// Findings returns the unmarshalled finding list.
func (a *Analysis) Findings() []pipeline.Finding {
	if strings.TrimSpace(a.FindingsJSON) == "" {
		return nil
	}
	var out []pipeline.Finding
	if err := json.Unmarshal([]byte(a.FindingsJSON), &out); err != nil {
		return nil
	}
	return out
}

// SetRecommendations persists the recommendation texts as JSON.
func (a *Analysis) SetRecommendations(recs []string) {
	payload, _ := json.Marshal(recs)
	a.RecommendationsJSON = string(payload)
}

// Recommendations returns the decoded recommendation texts.
func (a *Analysis) Recommendations() []string {
	if strings.TrimSpace(a.RecommendationsJSON) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(a.RecommendationsJSON), &out); err != nil {
		return nil
	}
	return out
}

// ContractBatch represents an uploaded set of contract documents.
type ContractBatch struct {
	ID                 uint   `gorm:"primaryKey"`
	Name               string `gorm:"size:128;index"`
	Owner              string `gorm:"size:128;index"`
	OriginalFilename   string `gorm:"size:256"`
	RowCount           int
	UniqueDocuments    int
	DuplicateRows      int
	ProcessedDocuments int
	LastReviewedAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BatchDocument links one uploaded contract document to its batch.
type BatchDocument struct {
	ID          uint   `gorm:"primaryKey"`
	BatchID     uint   `gorm:"index"`
	Name        string `gorm:"size:255;index"`
	DocumentKey string `gorm:"size:255;index"`
	Text        string `gorm:"type:text"`
	RowIndex    int
	CreatedAt   time.Time
}

// BatchRequest tracks a review job run against a batch.
type BatchRequest struct {
	ID         uint   `gorm:"primaryKey"`
	BatchID    uint   `gorm:"index"`
	Type       string `gorm:"size:32"`
	Status     string `gorm:"size:32"`
	JobID      string `gorm:"size:64"`
	StartedAt  time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}

// VendorRecord stores vendor master data and the latest score snapshot.
type VendorRecord struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:255;index"`
	NameKey        string `gorm:"size:255;uniqueIndex"`
	Category       string `gorm:"size:64;index"`
	OverallScore   float64
	Grade          string `gorm:"size:8"`
	RiskLevel      string `gorm:"size:16"`
	MetricsJSON    string `gorm:"type:text"`
	LastScoredAt   *time.Time
	Excluded       bool   `gorm:"index"`
	ExclusionNotes string `gorm:"size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SetMetrics persists vendor metric values as JSON.
func (v *VendorRecord) SetMetrics(metrics map[string]float64) {
	payload, _ := json.Marshal(metrics)
	v.MetricsJSON = string(payload)
}

// Metrics returns the stored metric values.
func (v *VendorRecord) Metrics() map[string]float64 {
	if strings.TrimSpace(v.MetricsJSON) == "" {
		return nil
	}
	var out map[string]float64
	if err := json.Unmarshal([]byte(v.MetricsJSON), &out); err != nil {
		return nil
	}
	return out
}

// SavingsEntry records projected versus realized savings per initiative.
type SavingsEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Category  string `gorm:"size:64;index"`
	Vendor    string `gorm:"size:255;index"`
	Period    string `gorm:"size:16;index"`
	Projected float64
	Realized  float64
	Notes     string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// BenchmarkPrice stores market price references used for savings baselines
// and negotiation leverage.
type BenchmarkPrice struct {
	ID          uint   `gorm:"primaryKey"`
	Description string `gorm:"size:255"`
	Normalized  string `gorm:"size:255;index"`
	Prefix      string `gorm:"size:16;index"`
	Length      int    `gorm:"index"`
	UnitPrice   float64
	Source      string    `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}
