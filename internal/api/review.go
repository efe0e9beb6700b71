package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/store"
)

const (
	analysisKindContract   = "contract"
	analysisKindCompliance = "compliance"

	reviewThrottle = 500 * time.Millisecond
)

// reviewJob tracks the state of a running batch review.
type reviewJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	total     int64
	batchID   uint
	batchName string
	requestID uint
}

type documentResult struct {
	Analysis      store.Analysis
	TotalDuration time.Duration
	Err           error
}

// startReview launches a new asynchronous review job. The caller must hold
// s.jobMu prior to invoking this function.
func (s *Server) startReview(req ReviewRequest, batch *store.ContractBatch, totalDocuments int64) (*reviewJob, error) {
	if s.activeJob != nil {
		return nil, errors.New("review already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &reviewJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		total:     totalDocuments,
		batchID:   batch.ID,
		batchName: batch.Name,
	}

	request, err := s.db.CreateBatchRequest(batch.ID, "review", "running", job.id)
	if err != nil {
		job.cancel()
		return nil, fmt.Errorf("create batch request: %w", err)
	}
	job.requestID = request.ID

	s.activeJob = job
	go s.runReview(ctx, job, req)
	return job, nil
}

func (s *Server) runReview(ctx context.Context, job *reviewJob, req ReviewRequest) {
	finishStatus := "completed"
	var finishErr error

	defer func() {
		if job.requestID != 0 {
			status := finishStatus
			if finishErr != nil && status == "completed" {
				status = "failed"
			}
			if err := s.db.UpdateBatchRequest(job.requestID, status); err != nil {
				logrus.WithError(err).WithField("batch_id", job.batchID).Warn("update batch request")
			}
		}
		if err := s.db.UpdateBatchProcessingInfo(job.batchID, analysisKindContract); err != nil {
			logrus.WithError(err).WithField("batch_id", job.batchID).Warn("refresh batch processing info")
		}
		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	if job.total <= 0 {
		finishStatus = "failed"
		s.notifier.Broadcast(ReviewEvent{
			Type:    "error",
			JobID:   job.id,
			BatchID: job.batchID,
			Message: "no documents available for review",
		})
		return
	}

	documents, err := s.db.ListBatchDocuments(job.batchID)
	if err != nil {
		finishStatus = "failed"
		finishErr = err
		s.notifier.Broadcast(ReviewEvent{
			Type:    "error",
			JobID:   job.id,
			BatchID: job.batchID,
			Message: fmt.Sprintf("list batch documents: %v", err),
		})
		logrus.WithError(err).Error("list batch documents")
		return
	}

	skipExisting := req.Resume && !req.Force
	existing := make(map[string]struct{})
	totalProcessed := 0
	if skipExisting {
		analyzed, err := s.db.AnalyzedKeysForBatch(job.batchID, analysisKindContract)
		if err != nil {
			finishStatus = "failed"
			finishErr = err
			s.notifier.Broadcast(ReviewEvent{
				Type:    "error",
				JobID:   job.id,
				BatchID: job.batchID,
				Message: fmt.Sprintf("load existing analyses: %v", err),
			})
			logrus.WithError(err).Error("load existing analyses")
			return
		}
		for _, key := range analyzed {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				existing[trimmed] = struct{}{}
			}
		}
		totalProcessed = len(existing)
	}

	logrus.WithFields(logrus.Fields{
		"job":        job.id,
		"batch_id":   job.batchID,
		"batch_name": job.batchName,
		"total":      job.total,
		"processed":  totalProcessed,
		"resume":     req.Resume,
		"force":      req.Force,
	}).Info("review job started")

	s.notifier.Broadcast(ReviewEvent{
		Type:      "started",
		JobID:     job.id,
		BatchID:   job.batchID,
		Total:     job.total,
		Processed: totalProcessed,
		Message:   "review started",
	})

	workerCount := determineWorkerCount()
	logrus.WithFields(logrus.Fields{
		"job":      job.id,
		"batch_id": job.batchID,
		"workers":  workerCount,
	}).Info("review worker pool configured")

	taskCh := make(chan store.BatchDocument, workerCount*2)
	resultCh := make(chan documentResult, workerCount*2)

	var (
		lastEmit     time.Time
		hasPending   bool
		pendingEvent ReviewEvent
	)

	flush := func(force bool) {
		if !hasPending {
			return
		}
		if !force && !lastEmit.IsZero() && time.Since(lastEmit) < reviewThrottle {
			return
		}
		ev := pendingEvent
		s.notifier.Broadcast(ev)
		lastEmit = time.Now()
		hasPending = false
	}

	var workerWG sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for task := range taskCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res := s.reviewDocument(ctx, task)
				select {
				case resultCh <- res:
				case <-ctx.Done():
					return
				}
				if res.Err != nil {
					return
				}
			}
		}()
	}

	go func() {
		workerWG.Wait()
		close(resultCh)
	}()

	go func() {
		defer close(taskCh)
		limit := req.Limit
		offset := req.Offset
		sent := 0
		for _, doc := range documents {
			if offset > 0 {
				offset--
				continue
			}
			if limit > 0 && sent >= limit {
				return
			}
			if strings.TrimSpace(doc.Text) == "" {
				continue
			}
			if skipExisting {
				if _, ok := existing[doc.DocumentKey]; ok {
					continue
				}
			}
			select {
			case taskCh <- doc:
				sent++
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			flush(true)
			finishStatus = "cancelled"
			s.notifier.Broadcast(ReviewEvent{
				Type:      "cancelled",
				JobID:     job.id,
				BatchID:   job.batchID,
				Total:     job.total,
				Processed: totalProcessed,
				Message:   "review cancelled",
			})
			logrus.WithField("job", job.id).WithField("batch_id", job.batchID).Warn("review job cancelled via context")
			return
		case res, ok := <-resultCh:
			if !ok {
				job.cancel()
				flush(true)

				duration := time.Since(job.startedAt).Round(time.Millisecond)
				s.notifier.Broadcast(ReviewEvent{
					Type:      "complete",
					JobID:     job.id,
					BatchID:   job.batchID,
					Total:     job.total,
					Processed: totalProcessed,
					Message:   fmt.Sprintf("review finished in %s", duration),
				})
				logrus.WithFields(logrus.Fields{
					"job":       job.id,
					"batch_id":  job.batchID,
					"processed": totalProcessed,
					"duration":  duration,
				}).Info("review job completed")
				return
			}
			if res.Err != nil {
				if errors.Is(res.Err, context.Canceled) {
					continue
				}
				flush(true)
				finishStatus = "failed"
				finishErr = res.Err
				s.notifier.Broadcast(ReviewEvent{
					Type:    "error",
					JobID:   job.id,
					BatchID: job.batchID,
					Message: fmt.Sprintf("review document: %v", res.Err),
				})
				logrus.WithError(res.Err).Error("review document")
				job.cancel()
				return
			}

			saveStart := time.Now()
			analysis := res.Analysis
			if err := s.db.SaveAnalysis(&analysis); err != nil {
				flush(true)
				finishStatus = "failed"
				finishErr = err
				s.notifier.Broadcast(ReviewEvent{
					Type:    "error",
					JobID:   job.id,
					BatchID: job.batchID,
					Message: fmt.Sprintf("save analysis: %v", err),
				})
				logrus.WithError(err).Error("save analysis")
				job.cancel()
				return
			}

			if skipExisting {
				existing[analysis.DocumentKey] = struct{}{}
			}

			dto := FromModel(analysis)
			totalProcessed++

			pendingEvent = ReviewEvent{
				Type:      "analysis",
				JobID:     job.id,
				BatchID:   job.batchID,
				Total:     job.total,
				Processed: totalProcessed,
				Analysis:  &dto,
			}
			hasPending = true
			logrus.WithFields(logrus.Fields{
				"job":           job.id,
				"batch_id":      job.batchID,
				"document":      analysis.DocumentName,
				"save_ms":       time.Since(saveStart).Milliseconds(),
				"processing_ms": analysis.ProcessingTimeMs,
				"total_ms":      res.TotalDuration.Milliseconds(),
			}).Debug("review timings")
			flush(false)
		}
	}
}

// reviewDocument runs one document through the contract reviewer and maps
// the report onto a persistable analysis row.
func (s *Server) reviewDocument(ctx context.Context, doc store.BatchDocument) documentResult {
	result := documentResult{}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	start := time.Now()
	report, err := s.reviewer.Review(ctx, doc.Name, doc.Text)
	if err != nil {
		result.Err = fmt.Errorf("review %s: %w", doc.Name, err)
		return result
	}

	analysis := store.Analysis{
		Kind:             analysisKindContract,
		DocumentName:     doc.Name,
		DocumentKey:      doc.DocumentKey,
		OverallScore:     report.RiskScore,
		StatusLabel:      report.RiskLevel,
		ConfidenceLevel:  report.Confidence,
		Narrative:        report.Narrative,
		ProcessingTimeMs: report.ProcessingTimeMs,
	}
	analysis.SetFindings(report.Risks)
	analysis.SetRecommendations(pipeline.Texts(report.Recommendations))

	result.Analysis = analysis
	result.TotalDuration = time.Since(start)
	return result
}

func determineWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 8 {
		workers = 8
	}
	return workers
}
