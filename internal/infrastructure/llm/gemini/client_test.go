package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, serverURL string, executor *resilience.Executor) *Client {
	t.Helper()
	client, err := New(context.Background(), Options{
		APIKey:   "test-key",
		Model:    "gemini-test",
		BaseURL:  serverURL,
		Executor: executor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestReadLabelSendsPromptAndImage(t *testing.T) {
	var captured struct {
		path string
		body map[string]any
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"name\":\"Oat Bar\"}"}]}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	text, err := client.ReadLabel(context.Background(), domain.LabelImage{Data: []byte("img"), MimeType: "image/png"}, []string{"peanuts", " "})
	if err != nil {
		t.Fatalf("ReadLabel() error = %v", err)
	}
	if text != `{"name":"Oat Bar"}` {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.HasSuffix(captured.path, "/models/gemini-test:generateContent") {
		t.Fatalf("unexpected path %q", captured.path)
	}

	raw, _ := json.Marshal(captured.body)
	body := string(raw)
	if !strings.Contains(body, `User allergies (treat these as high-risk): [\"peanuts\"]`) {
		t.Fatalf("expected allergies in prompt, got %s", body)
	}
	if !strings.Contains(body, "inlineData") || !strings.Contains(body, "image/png") {
		t.Fatalf("expected inline image part, got %s", body)
	}
}

func TestReadLabelJoinsCandidateParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"first"},{"text":"second"}]}},{"content":{"parts":[{"text":"third"}]}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	text, err := client.ReadLabel(context.Background(), domain.LabelImage{Data: []byte("img"), MimeType: "image/jpeg"}, nil)
	if err != nil {
		t.Fatalf("ReadLabel() error = %v", err)
	}
	if text != "first\nsecond\nthird" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestReadLabelRetriesUnavailableAndMarksTemporary(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"model overloaded","status":"UNAVAILABLE"}}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	client := newTestClient(t, server.URL, executor)

	_, err := client.ReadLabel(context.Background(), domain.LabelImage{Data: []byte("img"), MimeType: "image/png"}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestReadLabelDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"image too large","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond})
	client := newTestClient(t, server.URL, executor)

	_, err := client.ReadLabel(context.Background(), domain.LabelImage{Data: []byte("img"), MimeType: "image/png"}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client errors must not be temporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "image too large") {
		t.Fatalf("expected upstream message in error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestBuildLabelPromptCapsAllergies(t *testing.T) {
	allergies := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		allergies = append(allergies, "a")
	}
	prompt := buildLabelPrompt(allergies)
	if got := strings.Count(prompt, `"a"`); got != maxPromptAllergies {
		t.Fatalf("expected %d allergies in prompt, got %d", maxPromptAllergies, got)
	}
	if !strings.Contains(buildLabelPrompt(nil), "high-risk): []") {
		t.Fatalf("expected empty allergy list")
	}
}

func TestClassifyGeminiErrorCarriesRetryDelay(t *testing.T) {
	quota := genai.APIError{
		Code:   http.StatusTooManyRequests,
		Status: "RESOURCE_EXHAUSTED",
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "1.5s"},
		},
	}
	got := classifyGeminiError(quota)
	if !got.Retryable || !got.RecordFailure || got.RetryAfter != 1500*time.Millisecond {
		t.Fatalf("unexpected classification %+v", got)
	}

	got = classifyGeminiError(genai.APIError{Code: http.StatusServiceUnavailable})
	if !got.Retryable || got.RetryAfter != 0 {
		t.Fatalf("expected retry without hint, got %+v", got)
	}

	got = classifyGeminiError(genai.APIError{Code: http.StatusBadRequest})
	if got.Retryable || got.RecordFailure {
		t.Fatalf("bad request must not retry or trip the breaker, got %+v", got)
	}
}
