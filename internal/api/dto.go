package api

import (
	"strings"
	"time"

	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/rfq"
	"contract-risk-eval/backend/internal/store"
	"contract-risk-eval/backend/internal/vendors"
)

// AnalyzeContractRequest carries one contract document for synchronous review.
type AnalyzeContractRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ComplianceRequest carries a document plus the regulations to check it
// against. An empty regulation list runs every supported check set.
type ComplianceRequest struct {
	Name        string   `json:"name"`
	Text        string   `json:"text"`
	Regulations []string `json:"regulations"`
}

// VendorScoreRequest carries a vendor's performance metrics; an optional
// contract text contributes risk findings to the penalty stage.
type VendorScoreRequest struct {
	Vendor       string         `json:"vendor"`
	Category     string         `json:"category"`
	Metrics      vendors.Metrics `json:"metrics"`
	ContractText string         `json:"contract_text"`
}

// RFQRequest carries award criteria and competing proposals.
type RFQRequest struct {
	Criteria  []rfq.Criterion `json:"criteria"`
	Proposals []rfq.Proposal  `json:"proposals"`
}

// SavingsEntryRequest records one savings initiative.
type SavingsEntryRequest struct {
	Category  string  `json:"category"`
	Vendor    string  `json:"vendor"`
	Period    string  `json:"period"`
	Projected float64 `json:"projected"`
	Realized  float64 `json:"realized"`
	Notes     string  `json:"notes"`
}

// ReviewRequest controls the asynchronous batch review job.
type ReviewRequest struct {
	BatchID uint `json:"batch_id"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Resume  bool `json:"resume"`
	Force   bool `json:"force"`
}

// AnalysisDTO is the API representation for a persisted analysis.
type AnalysisDTO struct {
	ID               uint               `json:"id"`
	Kind             string             `json:"kind"`
	DocumentName     string             `json:"document_name"`
	OverallScore     float64            `json:"overall_score"`
	StatusLabel      string             `json:"status_label"`
	Confidence       string             `json:"confidence"`
	Findings         []pipeline.Finding `json:"findings"`
	Recommendations  []string           `json:"recommendations"`
	Narrative        string             `json:"narrative"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	CreatedAt        time.Time          `json:"created_at"`
}

// ResultsResponse holds analysis items and totals.
type ResultsResponse struct {
	Items []AnalysisDTO `json:"items"`
	Total int64         `json:"total"`
}

// StartReviewResponse describes the asynchronous review kickoff payload.
type StartReviewResponse struct {
	JobID     string    `json:"job_id"`
	BatchID   uint      `json:"batch_id"`
	RequestID uint      `json:"request_id"`
	Total     int64     `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// ReviewStatusResponse describes the state of the active review job.
type ReviewStatusResponse struct {
	Running      bool         `json:"running"`
	JobID        string       `json:"job_id"`
	BatchID      uint         `json:"batch_id"`
	RequestID    uint         `json:"request_id"`
	State        string       `json:"state"`
	Message      string       `json:"message"`
	Processed    int          `json:"processed"`
	Total        int64        `json:"total"`
	LastAnalysis *AnalysisDTO `json:"last_analysis,omitempty"`
}

// UploadResponse reports batch statistics after processing an upload.
type UploadResponse struct {
	BatchID         uint   `json:"batch_id"`
	BatchName       string `json:"batch_name"`
	Owner           string `json:"owner"`
	RowCount        int    `json:"row_count"`
	UniqueDocuments int    `json:"unique_documents"`
	DuplicateRows   int    `json:"duplicate_rows"`
	Processed       int    `json:"processed_documents"`
}

// BatchDTO represents metadata for an uploaded contract batch.
type BatchDTO struct {
	ID                 uint       `json:"id"`
	Name               string     `json:"name"`
	Owner              string     `json:"owner"`
	OriginalFilename   string     `json:"original_filename"`
	RowCount           int        `json:"row_count"`
	UniqueDocuments    int        `json:"unique_documents"`
	DuplicateRows      int        `json:"duplicate_rows"`
	ProcessedDocuments int        `json:"processed_documents"`
	CreatedAt          time.Time  `json:"created_at"`
	LastReviewedAt     *time.Time `json:"last_reviewed_at"`
}

// BatchesResponse is the paginated response for contract batches.
type BatchesResponse struct {
	Items []BatchDTO `json:"items"`
	Total int64      `json:"total"`
}

// BatchRequestDTO represents review job tracking metadata.
type BatchRequestDTO struct {
	ID         uint       `json:"id"`
	BatchID    uint       `json:"batch_id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	JobID      string     `json:"job_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// FromModel converts a store.Analysis into the DTO representation.
func FromModel(a store.Analysis) AnalysisDTO {
	return AnalysisDTO{
		ID:               a.ID,
		Kind:             a.Kind,
		DocumentName:     a.DocumentName,
		OverallScore:     round2(a.OverallScore),
		StatusLabel:      a.StatusLabel,
		Confidence:       a.ConfidenceLevel,
		Findings:         a.Findings(),
		Recommendations:  a.Recommendations(),
		Narrative:        strings.TrimSpace(a.Narrative),
		ProcessingTimeMs: a.ProcessingTimeMs,
		CreatedAt:        a.CreatedAt,
	}
}

// BatchFromModel converts a store.ContractBatch into a DTO.
func BatchFromModel(b store.ContractBatch) BatchDTO {
	return BatchDTO{
		ID:                 b.ID,
		Name:               b.Name,
		Owner:              b.Owner,
		OriginalFilename:   b.OriginalFilename,
		RowCount:           b.RowCount,
		UniqueDocuments:    b.UniqueDocuments,
		DuplicateRows:      b.DuplicateRows,
		ProcessedDocuments: b.ProcessedDocuments,
		CreatedAt:          b.CreatedAt,
		LastReviewedAt:     b.LastReviewedAt,
	}
}

// BatchRequestFromModel converts a store.BatchRequest into a DTO.
func BatchRequestFromModel(r store.BatchRequest) BatchRequestDTO {
	return BatchRequestDTO{
		ID:         r.ID,
		BatchID:    r.BatchID,
		Type:       r.Type,
		Status:     r.Status,
		JobID:      r.JobID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
