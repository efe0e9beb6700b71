package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Analysis{}, &ContractBatch{}, &BatchDocument{}, &BatchRequest{}, &VendorRecord{}, &SavingsEntry{}, &BenchmarkPrice{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveAnalysis upserts an analysis row keyed by kind and document key.
func (d *Database) SaveAnalysis(a *Analysis) error {
	if a == nil {
		return errors.New("analysis is nil")
	}
	a.DocumentName = strings.TrimSpace(a.DocumentName)
	a.DocumentKey = normalizeKey(firstNonEmpty(a.DocumentKey, a.DocumentName))
	d.mu.Lock()
	defer d.mu.Unlock()
	columns := []string{
		"document_name",
		"overall_score",
		"status_label",
		"confidence_level",
		"findings_json",
		"recommendations_json",
		"narrative",
		"processing_time_ms",
	}
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "document_key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(a).Error
}

// AnalysisQuery encapsulates filters and pagination for listing analyses.
type AnalysisQuery struct {
	Kind     string
	Query    string
	MinScore float64
	Label    string
	Sort     string
	Offset   int
	Limit    int
	BatchID  uint
}

// ListAnalyses returns paginated analysis records applying optional filters.
func (d *Database) ListAnalyses(opts AnalysisQuery) ([]Analysis, int64, error) {
	var total int64
	base := d.gorm.Model(&Analysis{})
	if kind := strings.TrimSpace(opts.Kind); kind != "" {
		base = base.Where("kind = ?", kind)
	}
	if opts.BatchID > 0 {
		base = base.Where("document_key IN (SELECT document_key FROM batch_documents WHERE batch_id = ?)", opts.BatchID)
	}
	if opts.Query != "" {
		like := fmt.Sprintf("%%%s%%", opts.Query)
		base = base.Where("document_name LIKE ? OR narrative LIKE ?", like, like)
	}
	if opts.MinScore > 0 {
		base = base.Where("overall_score >= ?", opts.MinScore)
	}
	if label := strings.TrimSpace(opts.Label); label != "" {
		base = base.Where("status_label = ?", label)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order(orderForSort(opts.Sort)).Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []Analysis
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderForSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "name_asc":
		return "analyses.document_name ASC"
	case "name_desc":
		return "analyses.document_name DESC"
	case "score_desc":
		return "analyses.overall_score DESC, analyses.id DESC"
	case "score_asc":
		return "analyses.overall_score ASC, analyses.id DESC"
	case "created_asc":
		return "analyses.created_at ASC"
	case "created_desc":
		return "analyses.created_at DESC"
	default:
		return "analyses.id DESC"
	}
}

// AnalyzedKeysForBatch returns document keys already analyzed for a batch.
func (d *Database) AnalyzedKeysForBatch(batchID uint, kind string) ([]string, error) {
	var keys []string
	err := d.gorm.Model(&Analysis{}).
		Where("kind = ?", kind).
		Where("document_key IN (SELECT document_key FROM batch_documents WHERE batch_id = ?)", batchID).
		Pluck("document_key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateContractBatch stores a new batch header.
func (d *Database) CreateContractBatch(name, owner, filename string) (*ContractBatch, error) {
	batch := &ContractBatch{Name: name, Owner: owner, OriginalFilename: filename}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// GetContractBatch fetches one batch by id.
func (d *Database) GetContractBatch(id uint) (*ContractBatch, error) {
	var batch ContractBatch
	if err := d.gorm.First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListContractBatches returns paged batches, newest first.
func (d *Database) ListContractBatches(offset, limit int) ([]ContractBatch, int64, error) {
	var total int64
	if err := d.gorm.Model(&ContractBatch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []ContractBatch
	q := d.gorm.Model(&ContractBatch{}).Order("id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ReplaceBatchDocuments swaps the documents linked to a batch.
func (d *Database) ReplaceBatchDocuments(batchID uint, docs []BatchDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&BatchDocument{}).Error; err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		return tx.CreateInBatches(docs, 250).Error
	})
}

// ListBatchDocuments returns the documents in a batch in upload order.
func (d *Database) ListBatchDocuments(batchID uint) ([]BatchDocument, error) {
	var rows []BatchDocument
	if err := d.gorm.Where("batch_id = ?", batchID).Order("row_index ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountBatchDocuments returns the number of documents in a batch.
func (d *Database) CountBatchDocuments(batchID uint) (int64, error) {
	var count int64
	if err := d.gorm.Model(&BatchDocument{}).Where("batch_id = ?", batchID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountBatchResults counts analyses covering a batch's documents.
func (d *Database) CountBatchResults(batchID uint, kind string) (int, error) {
	var count int64
	err := d.gorm.Model(&Analysis{}).
		Where("kind = ?", kind).
		Where("document_key IN (SELECT document_key FROM batch_documents WHERE batch_id = ?)", batchID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// UpdateContractBatchStats refreshes batch counters after an upload.
func (d *Database) UpdateContractBatchStats(batchID uint, rows, unique, duplicates, processed int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&ContractBatch{}).Where("id = ?", batchID).Updates(map[string]any{
		"row_count":           rows,
		"unique_documents":    unique,
		"duplicate_rows":      duplicates,
		"processed_documents": processed,
	}).Error
}

// UpdateBatchProcessingInfo refreshes processed counts and the review
// timestamp after a job finishes.
func (d *Database) UpdateBatchProcessingInfo(batchID uint, kind string) error {
	processed, err := d.CountBatchResults(batchID, kind)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&ContractBatch{}).Where("id = ?", batchID).Updates(map[string]any{
		"processed_documents": processed,
		"last_reviewed_at":    &now,
	}).Error
}

// CreateBatchRequest records a new review job for auditing.
func (d *Database) CreateBatchRequest(batchID uint, requestType, status, jobID string) (*BatchRequest, error) {
	request := &BatchRequest{
		BatchID:   batchID,
		Type:      requestType,
		Status:    status,
		JobID:     jobID,
		StartedAt: time.Now().UTC(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// UpdateBatchRequest finalizes a request row with its terminal status.
func (d *Database) UpdateBatchRequest(id uint, status string) error {
	now := time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&BatchRequest{}).Where("id = ?", id).Updates(map[string]any{
		"status":      status,
		"finished_at": &now,
	}).Error
}

// GetBatchRequest fetches one request row by id.
func (d *Database) GetBatchRequest(id uint) (*BatchRequest, error) {
	var request BatchRequest
	if err := d.gorm.First(&request, id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// UpsertVendorRecord inserts or updates vendor master data keyed by name.
func (d *Database) UpsertVendorRecord(v *VendorRecord) error {
	if v == nil {
		return errors.New("vendor record is nil")
	}
	v.Name = strings.TrimSpace(v.Name)
	v.NameKey = normalizeKey(v.Name)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "overall_score", "grade", "risk_level", "metrics_json", "last_scored_at", "excluded", "exclusion_notes", "updated_at"}),
	}).Create(v).Error
}

// GetVendorRecord fetches vendor master data by name.
func (d *Database) GetVendorRecord(name string) (*VendorRecord, error) {
	var record VendorRecord
	if err := d.gorm.Where("name_key = ?", normalizeKey(name)).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListVendorRecords returns paged vendor rows ordered by score descending.
func (d *Database) ListVendorRecords(offset, limit int) ([]VendorRecord, int64, error) {
	var total int64
	if err := d.gorm.Model(&VendorRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []VendorRecord
	q := d.gorm.Model(&VendorRecord{}).Order("overall_score DESC, id ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CreateSavingsEntry records one savings initiative row.
func (d *Database) CreateSavingsEntry(entry *SavingsEntry) error {
	if entry == nil {
		return errors.New("savings entry is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(entry).Error
}

// ListSavingsEntries returns savings rows, optionally filtered by period.
func (d *Database) ListSavingsEntries(period string, offset, limit int) ([]SavingsEntry, int64, error) {
	base := d.gorm.Model(&SavingsEntry{})
	if p := strings.TrimSpace(period); p != "" {
		base = base.Where("period = ?", p)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []SavingsEntry
	q := base.Order("id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SavingsSummary aggregates projected and realized savings per category.
type SavingsSummary struct {
	Category  string  `json:"category"`
	Projected float64 `json:"projected"`
	Realized  float64 `json:"realized"`
}

// SummarizeSavings aggregates savings per category, optionally by period.
func (d *Database) SummarizeSavings(period string) ([]SavingsSummary, error) {
	base := d.gorm.Model(&SavingsEntry{})
	if p := strings.TrimSpace(period); p != "" {
		base = base.Where("period = ?", p)
	}
	var rows []SavingsSummary
	err := base.
		Select("category, SUM(projected) AS projected, SUM(realized) AS realized").
		Group("category").
		Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceBenchmarkPrices swaps the stored benchmark inventory.
func (d *Database) ReplaceBenchmarkPrices(prices []BenchmarkPrice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&BenchmarkPrice{}).Error; err != nil {
			return err
		}
		if len(prices) == 0 {
			return nil
		}
		return tx.CreateInBatches(prices, 250).Error
	})
}

// CountBenchmarkPrices returns the number of stored benchmark rows.
func (d *Database) CountBenchmarkPrices() (int64, error) {
	var count int64
	if err := d.gorm.Model(&BenchmarkPrice{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindBenchmarkCandidates returns benchmark rows filtered by optional
// prefixes and length bounds, nearest-length first.
func (d *Database) FindBenchmarkCandidates(prefixes []string, minLen, maxLen, targetLen, limit int) ([]BenchmarkPrice, error) {
	query := d.gorm.Model(&BenchmarkPrice{})
	if minLen > 0 {
		query = query.Where("length >= ?", minLen)
	}
	if maxLen > 0 {
		query = query.Where("length <= ?", maxLen)
	}
	if len(prefixes) > 0 {
		query = query.Where("prefix IN ?", prefixes)
	}
	if targetLen > 0 {
		query = query.Order(clause.Expr{SQL: "ABS(length - ?)", Vars: []any{targetLen}})
	}
	query = query.Order("unit_price DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []BenchmarkPrice
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
