package api

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contract-risk-eval/backend/internal/ai"
	"contract-risk-eval/backend/internal/cache"
	"contract-risk-eval/backend/internal/compliance"
	"contract-risk-eval/backend/internal/contract"
	"contract-risk-eval/backend/internal/extract"
	"contract-risk-eval/backend/internal/market"
	"contract-risk-eval/backend/internal/negotiation"
	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/registry"
	"contract-risk-eval/backend/internal/rfq"
	"contract-risk-eval/backend/internal/store"
	"contract-risk-eval/backend/internal/vendors"
)

// Config defines server dependencies.
type Config struct {
	DBPath          string
	WeightsPath     string
	PatternsPath    string
	BenchmarkSales  string
	AllowedOrigins  []string
	SilentDB        bool
	AIConfig        ai.Config
	AIFallbackModel string
	RegistryConfig  registry.Config
	DisableAI       bool
	RedisURL        string
	CacheTTL        time.Duration
}

const benchmarkMinPrice = 1.0

// Server wires HTTP handlers with persistence and the analysis pipeline.
type Server struct {
	db             *store.Database
	extractor      *extract.Extractor
	weights        pipeline.WeightTable
	analyzer       ai.Analyzer
	analysisCache  cache.Cache
	registryClient *registry.Client
	market         *market.Index
	reviewer       *contract.Reviewer
	checker        *compliance.Checker
	vendorScorer   *vendors.Scorer
	strategist     *negotiation.Strategist
	notifier       *ReviewNotifier
	allowedOrigins []string
	jobMu          sync.Mutex
	activeJob      *reviewJob
	cacheTTL       time.Duration
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	weights := pipeline.DefaultWeights()
	if trimmed := strings.TrimSpace(cfg.WeightsPath); trimmed != "" {
		loaded, err := pipeline.LoadWeightTable(trimmed)
		if err != nil {
			return nil, fmt.Errorf("weight table: %w", err)
		}
		weights = loaded
	}

	extractor, err := extract.NewExtractor(cfg.PatternsPath)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	var analysisCache cache.Cache
	if trimmed := strings.TrimSpace(cfg.RedisURL); trimmed != "" {
		redisCache, err := cache.NewRedis(context.Background(), trimmed)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable; falling back to in-memory analysis cache")
			analysisCache = cache.NewMemory()
		} else {
			logrus.Info("redis analysis cache enabled")
			analysisCache = redisCache
		}
	} else {
		analysisCache = cache.NewMemory()
	}

	var analyzer ai.Analyzer
	if cfg.DisableAI {
		logrus.Info("AI analyzer disabled via configuration")
	} else {
		client, err := ai.NewClient(cfg.AIConfig)
		switch {
		case err == nil:
			analyzer = client
			if model := strings.TrimSpace(cfg.AIFallbackModel); model != "" && model != cfg.AIConfig.Model {
				fallbackCfg := cfg.AIConfig
				fallbackCfg.Model = model
				fallbackClient, err := ai.NewClient(fallbackCfg)
				if err != nil {
					logrus.WithError(err).Warn("fallback analyzer unavailable")
				} else {
					analyzer = ai.WithFallback(client, fallbackClient)
					logrus.WithField("model", model).Info("fallback analyzer enabled")
				}
			}
			analyzer = ai.WithCache(analyzer, analysisCache, ttl)
		case errors.Is(err, ai.ErrDisabled):
			logrus.Info("AI analyzer disabled - no API key configured")
		default:
			return nil, fmt.Errorf("ai client: %w", err)
		}
	}

	var registryClient *registry.Client
	if strings.TrimSpace(cfg.RegistryConfig.APIKey) == "" {
		logrus.Info("exclusion registry lookup disabled - no API key configured")
	} else {
		client, err := registry.NewClient(cfg.RegistryConfig)
		if err != nil {
			return nil, fmt.Errorf("registry client: %w", err)
		}
		registryClient = client
		logrus.WithFields(logrus.Fields{
			"ttl":     cfg.RegistryConfig.CacheTTL,
			"timeout": cfg.RegistryConfig.Timeout,
		}).Info("exclusion registry lookup enabled")
	}

	index := market.NewIndex(db)
	server := &Server{
		db:             db,
		extractor:      extractor,
		weights:        weights,
		analyzer:       analyzer,
		analysisCache:  analysisCache,
		registryClient: registryClient,
		market:         index,
		reviewer:       contract.NewReviewer(extractor, analyzer, weights),
		checker:        compliance.NewChecker(analyzer, weights),
		strategist:     negotiation.NewStrategist(index, weights),
		notifier:       NewReviewNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		cacheTTL:       ttl,
	}
	if registryClient != nil {
		server.vendorScorer = vendors.NewScorer(registryClient)
	} else {
		server.vendorScorer = vendors.NewScorer(nil)
	}

	if trimmed := strings.TrimSpace(cfg.BenchmarkSales); trimmed != "" {
		count, err := index.LoadFromCSV(trimmed, benchmarkMinPrice)
		if err != nil {
			logrus.WithError(err).Warn("load benchmark price data")
		} else {
			logrus.WithFields(logrus.Fields{
				"path":    trimmed,
				"records": count,
			}).Info("benchmark price inventory loaded")
		}
	}

	return server, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/contracts/analyze", s.handleAnalyzeContract)
		api.POST("/compliance/check", s.handleComplianceCheck)
		api.POST("/vendors/score", s.handleVendorScore)
		api.GET("/vendors", s.handleListVendors)
		api.POST("/rfq/evaluate", s.handleRFQEvaluate)
		api.POST("/negotiation/strategy", s.handleNegotiationStrategy)
		api.GET("/batches", s.handleListBatches)
		api.GET("/batches/:id", s.handleGetBatch)
		api.GET("/batches/:id/results", s.handleBatchResults)
		api.GET("/requests/:id/status", s.handleRequestStatus)
		api.POST("/upload", s.handleUpload)
		api.POST("/review", s.handleReview)
		api.GET("/review/status", s.handleReviewStatus)
		api.DELETE("/review/:jobID", s.handleCancelReview)
		api.GET("/review/stream", s.handleReviewStream)
		api.GET("/results", s.handleResults)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
		api.GET("/savings", s.handleListSavings)
		api.POST("/savings", s.handleCreateSavings)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ai_enabled":            s.analyzer != nil && s.analyzer.Enabled(),
		"registry_enabled":      s.registryClient != nil,
		"benchmark_records":     s.market.Count(),
		"supported_regulations": compliance.SupportedRegulations,
		"cache_ttl_seconds":     int(s.cacheTTL.Seconds()),
	})
}

func (s *Server) handleAnalyzeContract(c *gin.Context) {
	var req AnalyzeContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "untitled"
	}

	report, err := s.reviewer.Review(c.Request.Context(), name, req.Text)
	if err != nil {
		if errors.Is(err, contract.ErrEmptyDocument) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	analysis := store.Analysis{
		Kind:             analysisKindContract,
		DocumentName:     name,
		DocumentKey:      extract.NormalizeKey(name),
		OverallScore:     report.RiskScore,
		StatusLabel:      report.RiskLevel,
		ConfidenceLevel:  report.Confidence,
		Narrative:        report.Narrative,
		ProcessingTimeMs: report.ProcessingTimeMs,
	}
	analysis.SetFindings(report.Risks)
	analysis.SetRecommendations(pipeline.Texts(report.Recommendations))
	if err := s.db.SaveAnalysis(&analysis); err != nil {
		logrus.WithError(err).WithField("document", name).Warn("persist contract analysis")
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleComplianceCheck(c *gin.Context) {
	var req ComplianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "untitled"
	}

	report, err := s.checker.Check(c.Request.Context(), name, req.Text, req.Regulations)
	if err != nil {
		if errors.Is(err, compliance.ErrEmptyDocument) || errors.Is(err, compliance.ErrUnknownRegulation) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	analysis := store.Analysis{
		Kind:             analysisKindCompliance,
		DocumentName:     name,
		DocumentKey:      extract.NormalizeKey(name),
		OverallScore:     report.ComplianceScore,
		StatusLabel:      report.Status,
		ConfidenceLevel:  report.Confidence,
		Narrative:        report.Narrative,
		ProcessingTimeMs: report.ProcessingTimeMs,
	}
	analysis.SetFindings(report.Issues)
	analysis.SetRecommendations(pipeline.Texts(report.Recommendations))
	if err := s.db.SaveAnalysis(&analysis); err != nil {
		logrus.WithError(err).WithField("document", name).Warn("persist compliance analysis")
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleVendorScore(c *gin.Context) {
	var req VendorScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	var findings []pipeline.Finding
	if text := strings.TrimSpace(req.ContractText); text != "" {
		findings = s.extractor.Risks(text)
	}

	card, err := s.vendorScorer.Score(c.Request.Context(), req.Vendor, req.Metrics, findings)
	if err != nil {
		switch {
		case errors.Is(err, vendors.ErrMissingVendor), errors.Is(err, vendors.ErrInvalidMetric):
			s.renderError(c, http.StatusBadRequest, err)
		default:
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	now := time.Now().UTC()
	record := store.VendorRecord{
		Name:           card.Vendor,
		NameKey:        extract.NormalizeKey(card.Vendor),
		Category:       strings.TrimSpace(req.Category),
		OverallScore:   card.OverallScore,
		Grade:          card.Grade,
		RiskLevel:      card.RiskLevel,
		Excluded:       card.Excluded,
		ExclusionNotes: card.ExclusionNotes,
		LastScoredAt:   &now,
	}
	record.SetMetrics(map[string]float64{
		"on_time_delivery": req.Metrics.OnTimeDelivery,
		"quality":          req.Metrics.Quality,
		"response_time":    req.Metrics.ResponseTime,
		"cost_efficiency":  req.Metrics.CostEfficiency,
		"compliance":       req.Metrics.Compliance,
	})
	if err := s.db.UpsertVendorRecord(&record); err != nil {
		logrus.WithError(err).WithField("vendor", card.Vendor).Warn("persist vendor record")
	}

	c.JSON(http.StatusOK, card)
}

func (s *Server) handleListVendors(c *gin.Context) {
	page, pageSize := paging(c, 50)
	rows, total, err := s.db.ListVendorRecords(page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": total})
}

func (s *Server) handleRFQEvaluate(c *gin.Context) {
	var req RFQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	eval, err := rfq.Evaluate(req.Criteria, req.Proposals)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"proposals": len(eval.Matrix),
		"winner":    eval.Winner,
	}).Info(eval.Summary())
	c.JSON(http.StatusOK, eval)
}

func (s *Server) handleNegotiationStrategy(c *gin.Context) {
	var req negotiation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	strategy, err := s.strategist.Build(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, negotiation.ErrNoInputs) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, strategy)
}

func (s *Server) handleListBatches(c *gin.Context) {
	page, pageSize := paging(c, 25)
	rows, total, err := s.db.ListContractBatches(page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]BatchDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, BatchFromModel(row))
	}
	c.JSON(http.StatusOK, BatchesResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetBatch(c *gin.Context) {
	batchID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	batch, err := s.db.GetContractBatch(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("batch %d not found", batchID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	processed, err := s.db.CountBatchResults(batch.ID, analysisKindContract)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dto := BatchFromModel(*batch)
	dto.ProcessedDocuments = processed
	c.JSON(http.StatusOK, dto)
}

func (s *Server) handleBatchResults(c *gin.Context) {
	batchID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if _, err := s.db.GetContractBatch(batchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("batch %d not found", batchID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	s.renderResults(c, batchID)
}

func (s *Server) handleRequestStatus(c *gin.Context) {
	requestID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	request, err := s.db.GetBatchRequest(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("request %d not found", requestID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, BatchRequestFromModel(*request))
}

func (s *Server) handleUpload(c *gin.Context) {
	batchName := strings.TrimSpace(c.PostForm("batch_name"))
	if batchName == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("batch_name is required"))
		return
	}
	ownerName := strings.TrimSpace(c.PostForm("owner_name"))
	if ownerName == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("owner_name is required"))
		return
	}

	fileHeader, err := c.FormFile("contracts")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("contracts csv file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}

	path, cleanup, err := saveFormFile(fileHeader)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	parsed, err := parseContractCSV(path)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if parsed.rowCount == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("no contract documents detected in csv"))
		return
	}

	batch, err := s.db.CreateContractBatch(batchName, ownerName, fileHeader.Filename)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	for i := range parsed.documents {
		parsed.documents[i].BatchID = batch.ID
	}
	if err := s.db.ReplaceBatchDocuments(batch.ID, parsed.documents); err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("store batch documents: %w", err))
		return
	}

	processed, err := s.db.CountBatchResults(batch.ID, analysisKindContract)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	if err := s.db.UpdateContractBatchStats(batch.ID, parsed.rowCount, parsed.uniqueCount, parsed.duplicateRows, processed); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		BatchID:         batch.ID,
		BatchName:       batch.Name,
		Owner:           batch.Owner,
		RowCount:        parsed.rowCount,
		UniqueDocuments: parsed.uniqueCount,
		DuplicateRows:   parsed.duplicateRows,
		Processed:       processed,
	})
}

func (s *Server) handleReview(c *gin.Context) {
	var req ReviewRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
	}

	if req.BatchID == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("batch_id is required"))
		return
	}

	batch, err := s.db.GetContractBatch(req.BatchID)
	if err != nil {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("batch %d not found", req.BatchID))
		return
	}

	totalDocuments, err := s.db.CountBatchDocuments(batch.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if totalDocuments == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("batch has no documents to review"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errors.New("review already running"))
		return
	}

	job, err := s.startReview(req, batch, totalDocuments)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, StartReviewResponse{
		JobID:     job.id,
		BatchID:   batch.ID,
		RequestID: job.requestID,
		Total:     job.total,
		StartedAt: job.startedAt,
	})
}

func (s *Server) handleCancelReview(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no review running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("review cancellation requested")
	s.notifier.Broadcast(ReviewEvent{
		Type:    "progress",
		JobID:   s.activeJob.id,
		BatchID: s.activeJob.batchID,
		Total:   s.activeJob.total,
		Message: "cancellation requested",
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleReviewStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	status := s.notifier.LastStatus()

	resp := ReviewStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.BatchID = job.batchID
		resp.RequestID = job.requestID
		resp.Total = job.total
	}
	if status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		if status.Processed != 0 {
			resp.Processed = status.Processed
		}
		if status.Total != 0 {
			resp.Total = status.Total
		}
		if status.BatchID != 0 {
			resp.BatchID = status.BatchID
		}
		if status.Analysis != nil {
			copyAnalysis := *status.Analysis
			resp.LastAnalysis = &copyAnalysis
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReviewStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("review websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("review websocket closed")
			} else {
				logrus.WithError(err).Warn("review websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleResults(c *gin.Context) {
	batchID, ok := optionalBatchID(c)
	if !ok {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid batch_id: %s", c.Query("batch_id")))
		return
	}
	s.renderResults(c, batchID)
}

func (s *Server) renderResults(c *gin.Context, batchID uint) {
	page, pageSize := paging(c, 100)
	minScore, _ := strconv.ParseFloat(c.Query("minScore"), 64)

	rows, total, err := s.db.ListAnalyses(store.AnalysisQuery{
		Kind:     strings.TrimSpace(c.Query("kind")),
		Query:    strings.TrimSpace(c.Query("q")),
		MinScore: minScore,
		Label:    strings.TrimSpace(c.Query("label")),
		Sort:     strings.TrimSpace(c.Query("sort")),
		Offset:   page * pageSize,
		Limit:    pageSize,
		BatchID:  batchID,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.JSON(http.StatusOK, ResultsResponse{Items: dtos, Total: total})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	batchID, ok := optionalBatchID(c)
	if !ok {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid batch_id: %s", c.Query("batch_id")))
		return
	}

	rows, _, err := s.db.ListAnalyses(store.AnalysisQuery{
		Kind:    strings.TrimSpace(c.Query("kind")),
		Limit:   -1,
		BatchID: batchID,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=contract-risk-export.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"kind", "document_name", "overall_score", "status_label", "confidence", "recommendations", "narrative", "processing_time_ms"}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		dto := FromModel(row)
		line := []string{
			dto.Kind,
			dto.DocumentName,
			fmt.Sprintf("%.2f", dto.OverallScore),
			dto.StatusLabel,
			dto.Confidence,
			strings.Join(dto.Recommendations, "|"),
			dto.Narrative,
			strconv.FormatInt(dto.ProcessingTimeMs, 10),
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	batchID, ok := optionalBatchID(c)
	if !ok {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid batch_id: %s", c.Query("batch_id")))
		return
	}

	rows, _, err := s.db.ListAnalyses(store.AnalysisQuery{
		Kind:    strings.TrimSpace(c.Query("kind")),
		Limit:   -1,
		BatchID: batchID,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.Header("Content-Disposition", "attachment; filename=contract-risk-export.json")
	c.JSON(http.StatusOK, dtos)
}

func (s *Server) handleListSavings(c *gin.Context) {
	period := strings.TrimSpace(c.Query("period"))

	summary, err := s.db.SummarizeSavings(period)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	page, pageSize := paging(c, 100)
	rows, total, err := s.db.ListSavingsEntries(period, page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   rows,
		"total":   total,
		"summary": summary,
	})
}

func (s *Server) handleCreateSavings(c *gin.Context) {
	var req SavingsEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("category is required"))
		return
	}
	if req.Projected < 0 || req.Realized < 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("savings amounts must be non-negative"))
		return
	}

	entry := store.SavingsEntry{
		Category:  strings.TrimSpace(req.Category),
		Vendor:    strings.TrimSpace(req.Vendor),
		Period:    strings.TrimSpace(req.Period),
		Projected: req.Projected,
		Realized:  req.Realized,
		Notes:     strings.TrimSpace(req.Notes),
	}
	if err := s.db.CreateSavingsEntry(&entry); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func paging(c *gin.Context, defaultSize int) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	return page, pageSize
}

func optionalBatchID(c *gin.Context) (uint, bool) {
	value := strings.TrimSpace(firstNonEmpty(c.Query("batch_id"), c.Query("batchId")))
	if value == "" {
		return 0, true
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

func saveFormFile(header *multipart.FileHeader) (string, func(), error) {
	if header == nil {
		return "", nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}

type csvParseResult struct {
	documents     []store.BatchDocument
	rowCount      int
	uniqueCount   int
	duplicateRows int
}

// parseContractCSV ingests a contract batch CSV. A header row naming a
// name/title column and a text/content column is honored; otherwise the
// first column is the document name and the second its text.
func parseContractCSV(path string) (*csvParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		nameCol         = 0
		textCol         = 1
		headerProcessed bool
		seen            = make(map[string]struct{})
		documents       []store.BatchDocument
		rowIndex        int
		duplicates      int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		if !headerProcessed {
			headerProcessed = true
			if n, t, ok := detectContractColumns(record); ok {
				nameCol = n
				textCol = t
				continue
			}
		}

		if nameCol >= len(record) || textCol >= len(record) {
			continue
		}

		name := strings.TrimSpace(strings.TrimPrefix(record[nameCol], "\uFEFF"))
		text := strings.TrimSpace(record[textCol])
		if name == "" || text == "" {
			continue
		}

		rowIndex++
		key := extract.NormalizeKey(name)
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		documents = append(documents, store.BatchDocument{
			Name:        name,
			DocumentKey: key,
			Text:        text,
			RowIndex:    rowIndex,
		})
	}

	return &csvParseResult{
		documents:     documents,
		rowCount:      rowIndex,
		uniqueCount:   len(documents),
		duplicateRows: duplicates,
	}, nil
}

func detectContractColumns(record []string) (int, int, bool) {
	nameCol, textCol := -1, -1
	for idx, value := range record {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "name", "title", "document", "contract":
			nameCol = idx
		case "text", "content", "body":
			textCol = idx
		}
	}
	if nameCol >= 0 && textCol >= 0 {
		return nameCol, textCol, true
	}
	return 0, 1, false
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
