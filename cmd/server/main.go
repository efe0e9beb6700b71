package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contract-risk-eval/backend/internal/ai"
	"contract-risk-eval/backend/internal/api"
	"contract-risk-eval/backend/internal/registry"
)

func main() {
	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	aiCfg := ai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	if temp := os.Getenv("OPENAI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			aiCfg.Temperature = v
		}
	}
	if maxTokens := os.Getenv("OPENAI_MAX_TOKENS"); maxTokens != "" {
		if v, err := strconv.Atoi(maxTokens); err == nil {
			aiCfg.MaxTokens = v
		}
	}
	if timeout := os.Getenv("OPENAI_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			aiCfg.Timeout = d
		}
	}

	registryCfg := registry.Config{
		APIKey:  os.Getenv("EXCLUSIONS_API_KEY"),
		BaseURL: os.Getenv("EXCLUSIONS_BASE_URL"),
	}
	if timeout := os.Getenv("EXCLUSIONS_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			registryCfg.Timeout = d
		}
	}
	if ttl := os.Getenv("EXCLUSIONS_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			registryCfg.CacheTTL = d
		}
	}

	cacheTTL := time.Duration(0)
	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cacheTTL = d
		}
	}

	disableAI := strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_AI")), "true")

	cfg := api.Config{
		DBPath:          filepath.Join(dataDir, "contract-risk.db"),
		WeightsPath:     strings.TrimSpace(os.Getenv("WEIGHTS_PATH")),
		PatternsPath:    strings.TrimSpace(os.Getenv("PATTERNS_PATH")),
		BenchmarkSales:  strings.TrimSpace(os.Getenv("BENCHMARK_SALES_PATH")),
		AllowedOrigins:  splitOrigins(os.Getenv("ALLOWED_ORIGINS")),
		AIConfig:        aiCfg,
		AIFallbackModel: strings.TrimSpace(os.Getenv("OPENAI_FALLBACK_MODEL")),
		RegistryConfig:  registryCfg,
		DisableAI:       disableAI,
		RedisURL:        strings.TrimSpace(os.Getenv("REDIS_URL")),
		CacheTTL:        cacheTTL,
	}

	if override := strings.TrimSpace(os.Getenv("CONTRACT_DB_PATH")); override != "" {
		cfg.DBPath = override
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	logrus.Infof("starting contract-risk-eval backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
