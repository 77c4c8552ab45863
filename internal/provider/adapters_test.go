package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"duochat/internal/domain"
)

func TestOpenAI_Complete(t *testing.T) {
	var gotReq oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", APIBase: srv.URL, Logger: testLogger()})
	text, err := p.Complete(context.Background(), []domain.Turn{
		{Role: domain.RoleUser, Content: "[SPEAKER: User] hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello back" {
		t.Fatalf("got %q", text)
	}
	if gotReq.Model != "gpt-4" || gotReq.MaxTokens != 1000 || gotReq.Temperature != 0.7 {
		t.Errorf("adapter constants not applied: %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "[SPEAKER: User] hi" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestOpenAI_Complete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Complete(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Status != http.StatusTooManyRequests {
		t.Errorf("status %d", pe.Status)
	}
}

func TestOpenAI_Complete_EmptyChoicesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	text, err := p.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "No response from GPT" {
		t.Fatalf("got %q", text)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("unexpected api key %q", key)
		}
		if v := r.Header.Get("anthropic-version"); v != anthropicAPIVersion {
			t.Errorf("unexpected version header %q", v)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "claude reply"}},
		})
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{APIKey: "test-key", APIBase: srv.URL, Logger: testLogger()})
	text, err := p.Complete(context.Background(), []domain.Turn{
		{Role: domain.RoleUser, Content: "[SPEAKER: User] hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "claude reply" {
		t.Fatalf("got %q", text)
	}
	if gotReq.Model != "claude-3-haiku-20240307" || gotReq.MaxTokens != 1000 {
		t.Errorf("adapter constants not applied: %+v", gotReq)
	}
}

func TestAnthropic_AlternationErrorIsRecognized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"messages: roles must strictly alternate between user and assistant; alternation violated"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Complete(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !AlternationViolation(err) {
		t.Fatalf("alternation error not recognized: %v", err)
	}
}

func TestAnthropic_NonTextContentFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "thinking", "text": "hmm"}},
		})
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	text, err := p.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "No text response from Claude" {
		t.Fatalf("got %q", text)
	}
}

func TestHealthy_MissingAPIKey(t *testing.T) {
	gpt := NewOpenAI(OpenAIConfig{Logger: testLogger()})
	if err := gpt.Healthy(context.Background()); err == nil {
		t.Error("gpt: expected unhealthy without API key")
	}
	claude := NewAnthropic(AnthropicConfig{Logger: testLogger()})
	if err := claude.Healthy(context.Background()); err == nil {
		t.Error("claude: expected unhealthy without API key")
	}
}
