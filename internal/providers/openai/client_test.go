package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nerdbot/internal/providers"
)

func TestBuildPayloadStandardModel(t *testing.T) {
	c := New(Config{Model: "gpt-4o"})

	body, err := c.buildPayload(providers.Request{
		Preamble:    "You are concise",
		Prompt:      "hello",
		History:     []providers.Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hey"}},
		MaxTokens:   123,
		Temperature: 0.4,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Model != "gpt-4o" {
		t.Fatalf("expected model gpt-4o, got %q", payload.Model)
	}
	if len(payload.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(payload.Messages))
	}
	if payload.Messages[0].Role != "system" || payload.Messages[0].Content != "You are concise" {
		t.Fatalf("unexpected system message %+v", payload.Messages[0])
	}
	if payload.Messages[2].Role != "assistant" {
		t.Fatalf("expected assistant role, got %q", payload.Messages[2].Role)
	}
	if payload.Messages[3].Role != "user" || payload.Messages[3].Content != "hello" {
		t.Fatalf("unexpected final message %+v", payload.Messages[3])
	}
	if payload.MaxTokens != 123 {
		t.Fatalf("expected max_tokens 123, got %d", payload.MaxTokens)
	}
	if payload.Temperature != 0.4 {
		t.Fatalf("expected temperature 0.4, got %v", payload.Temperature)
	}
}

func TestBuildPayloadReasoningModel(t *testing.T) {
	c := New(Config{Model: "o1-preview"})

	body, err := c.buildPayload(providers.Request{
		Preamble:  "You are concise",
		Prompt:    "hello",
		History:   []providers.Turn{{Role: "user", Content: "dropped"}},
		MaxTokens: 123,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if _, ok := payload["max_tokens"]; ok {
		t.Fatalf("max_tokens must be omitted for reasoning models")
	}
	msgs, ok := payload["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected a single folded message, got %#v", payload["messages"])
	}
	msg := msgs[0].(map[string]any)
	if msg["role"] != "user" {
		t.Fatalf("expected user role, got %#v", msg["role"])
	}
	if msg["content"] != "You are concise\n\nhello" {
		t.Fatalf("unexpected folded content %#v", msg["content"])
	}
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"42"}}],"usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o"})
	res, perr := c.Generate(context.Background(), providers.Request{Prompt: "meaning of life"})
	if perr != nil {
		t.Fatalf("generate: %v", perr)
	}
	if res.Text != "42" {
		t.Fatalf("expected text 42, got %q", res.Text)
	}
	if res.Tokens != 7 {
		t.Fatalf("expected 7 tokens, got %d", res.Tokens)
	}
}

func TestGenerateClassifiesQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o"})
	_, perr := c.Generate(context.Background(), providers.Request{Prompt: "hi"})
	if perr == nil {
		t.Fatalf("expected a classified error")
	}
	if perr.Kind != providers.KindQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %s", perr.Kind)
	}
}

func TestGenerateRetriesServerFault(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":1}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o", MaxRetries: 1, BackoffBase: 1})
	res, perr := c.Generate(context.Background(), providers.Request{Prompt: "hi"})
	if perr != nil {
		t.Fatalf("generate: %v", perr)
	}
	if res.Text != "ok" {
		t.Fatalf("expected retried success, got %q", res.Text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
