package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"contract-risk-eval/backend/internal/cache"
	"contract-risk-eval/backend/internal/pipeline"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func chatReply(content string) []byte {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

func TestAnalyzeStructuredReply(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(`{"narrative":"risky deal","score":62,"findings":[{"category":"legal","severity":"HIGH","confidence":1.4,"description":"broad indemnity"}],"recommendations":["cap liability"]}`))
	})

	result, err := client.Analyze(context.Background(), "contract text", TaskContractRisk)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Narrative != "risky deal" {
		t.Fatalf("narrative = %q", result.Narrative)
	}
	if result.Score == nil || *result.Score != 62 {
		t.Fatalf("score = %v", result.Score)
	}
	if len(result.Findings) != 1 || result.Findings[0].Severity != pipeline.SeverityHigh {
		t.Fatalf("findings = %+v", result.Findings)
	}
	if result.Findings[0].Confidence != 1.0 {
		t.Fatalf("confidence not clamped: %v", result.Findings[0].Confidence)
	}
	if result.Degraded {
		t.Fatal("structured reply should not be degraded")
	}
}

func TestAnalyzeProseFallback(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply("The agreement looks workable.\nrisk score: 40\n- Negotiate payment terms\n"))
	})

	result, err := client.Analyze(context.Background(), "contract text", TaskContractRisk)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.Degraded {
		t.Fatal("prose reply must be flagged degraded")
	}
	if result.Score == nil || *result.Score != 40 {
		t.Fatalf("loose score = %v", result.Score)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("recommendations = %v", result.Recommendations)
	}
}

func TestAnalyzeRetriesRateLimitOnce(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(chatReply(`{"narrative":"ok after retry"}`))
	})

	result, err := client.Analyze(context.Background(), "contract text", TaskCompliance)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Narrative != "ok after retry" {
		t.Fatalf("narrative = %q", result.Narrative)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err != ErrDisabled {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNormalizeJSONBlock(t *testing.T) {
	raw := "```json\n{\"narrative\":\"x\"}\n```"
	if got := normalizeJSONBlock(raw); got != `{"narrative":"x"}` {
		t.Fatalf("normalize = %q", got)
	}
}

type stubAnalyzer struct {
	result Result
	err    error
	calls  int
}

func (s *stubAnalyzer) Enabled() bool { return true }

func (s *stubAnalyzer) Analyze(context.Context, string, Task) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestWithFallback(t *testing.T) {
	primary := &stubAnalyzer{err: ErrDisabled}
	fallback := &stubAnalyzer{result: Result{Narrative: "fallback"}}

	chain := WithFallback(primary, fallback)
	result, err := chain.Analyze(context.Background(), "text", TaskContractRisk)
	if err != nil {
		t.Fatalf("chain analyze: %v", err)
	}
	if result.Narrative != "fallback" {
		t.Fatalf("narrative = %q", result.Narrative)
	}
}

func TestWithCacheMemoizes(t *testing.T) {
	inner := &stubAnalyzer{result: Result{Narrative: "computed"}}
	cached := WithCache(inner, cache.NewMemory(), time.Minute)

	for i := 0; i < 3; i++ {
		result, err := cached.Analyze(context.Background(), "same document", TaskContractRisk)
		if err != nil {
			t.Fatalf("analyze %d: %v", i, err)
		}
		if result.Narrative != "computed" {
			t.Fatalf("narrative = %q", result.Narrative)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestWithCacheSkipsDegradedResults(t *testing.T) {
	inner := &stubAnalyzer{result: Result{Narrative: "loose", Degraded: true}}
	cached := WithCache(inner, cache.NewMemory(), time.Minute)

	for i := 0; i < 2; i++ {
		result, err := cached.Analyze(context.Background(), "same document", TaskContractRisk)
		if err != nil {
			t.Fatalf("analyze %d: %v", i, err)
		}
		if !result.Degraded {
			t.Fatalf("call %d lost the degraded flag", i)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2 (degraded results must not be served from cache)", inner.calls)
	}

	// Once the model recovers, the structured result is cached again.
	inner.result = Result{Narrative: "structured"}
	for i := 0; i < 2; i++ {
		result, err := cached.Analyze(context.Background(), "same document", TaskContractRisk)
		if err != nil {
			t.Fatalf("analyze after recovery %d: %v", i, err)
		}
		if result.Degraded {
			t.Fatalf("recovered call %d still degraded", i)
		}
	}
	if inner.calls != 3 {
		t.Fatalf("inner calls = %d, want 3", inner.calls)
	}
}
