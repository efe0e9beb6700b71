package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contract-risk-eval/backend/internal/extract"
	"contract-risk-eval/backend/internal/pipeline"
)

// Analyzer exposes model-backed document analysis to the scoring agents.
type Analyzer interface {
	Enabled() bool
	Analyze(ctx context.Context, text string, task Task) (Result, error)
}

// Config holds OpenAI-compatible API configuration parameters.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements the Analyzer interface against a chat-completions API.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

var ErrDisabled = errors.New("ai analyzer disabled")

const retryBackoff = 2 * time.Second

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Analyze runs the requested analysis task over the document text. Rate
// limits and timeouts are retried once with backoff; the call is idempotent.
// Non-JSON replies fall back to loose text extraction rather than failing.
func (c *Client) Analyze(ctx context.Context, text string, task Task) (Result, error) {
	if c == nil || !c.Enabled() {
		return Result{}, ErrDisabled
	}

	body, err := json.Marshal(c.buildPayload(text, task))
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		if !retryable(err) {
			return Result{}, err
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(retryBackoff):
		}
		content, err = c.complete(ctx, body)
		if err != nil {
			return Result{}, err
		}
	}

	normalized := normalizeJSONBlock(content)
	var result Result
	if err := json.Unmarshal([]byte(normalized), &result); err != nil {
		// the model replied with prose; recover what we can
		loose := extract.ParseLooseReport(content)
		result = Result{
			Narrative:       strings.TrimSpace(content),
			Score:           loose.Score,
			Findings:        loose.Findings,
			Recommendations: loose.Recommendations,
			Degraded:        true,
		}
	}
	sanitizeResult(&result)
	if result.Narrative == "" && len(result.Findings) == 0 {
		return Result{}, errors.New("model reply empty")
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", fmt.Errorf("model status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("model empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}

var errRateLimited = errors.New("model rate limited")

func retryable(err error) bool {
	if errors.Is(err, errRateLimited) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func (c *Client) buildPayload(text string, task Task) map[string]any {
	messages := []map[string]string{
		{"role": "system", "content": systemPrompt(task)},
		{"role": "user", "content": text},
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}

func systemPrompt(task Task) string {
	base := "Reply with a strict JSON object containing keys narrative, score, findings, and recommendations. " +
		"score is a decimal between 0 and 100. findings is an array of objects with keys category " +
		"(legal, financial, operational, or compliance), severity (critical, high, medium, or low), " +
		"confidence (decimal between 0 and 1), description, and optional mitigation. " +
		"recommendations is an array of short imperative strings, at most five. Emit nothing outside the JSON object. "
	switch task {
	case TaskCompliance:
		return "You are a regulatory compliance reviewer for procurement contracts. " + base +
			"score reflects how compliant the document is, 100 meaning fully compliant."
	case TaskNegotiation:
		return "You are a procurement negotiation strategist. " + base +
			"findings describe leverage points and concessions; score reflects the buyer's negotiating position."
	default:
		return "You are a contract risk analyst. " + base +
			"score reflects contract risk, 100 meaning extreme risk."
	}
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func sanitizeResult(result *Result) {
	if result == nil {
		return
	}
	result.Narrative = strings.TrimSpace(result.Narrative)
	if result.Score != nil {
		val := pipeline.Clamp(*result.Score, 0, 100)
		result.Score = &val
	}
	kept := result.Findings[:0]
	for _, f := range result.Findings {
		f.Description = strings.TrimSpace(f.Description)
		if f.Description == "" {
			continue
		}
		f.Severity = pipeline.ParseSeverity(string(f.Severity))
		f.Confidence = pipeline.Clamp(f.Confidence, 0, 1)
		if f.Category == "" {
			f.Category = pipeline.CategoryLegal
		}
		kept = append(kept, f)
	}
	result.Findings = kept
	if len(result.Recommendations) > pipeline.MaxRecommendations {
		result.Recommendations = result.Recommendations[:pipeline.MaxRecommendations]
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
