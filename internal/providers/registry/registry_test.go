package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"nerdbot/internal/providers"
)

func TestGenerateUnknownProvider(t *testing.T) {
	r := New(Config{OpenAIKey: "k", GeminiKey: "k"})

	reply := r.Generate(context.Background(), "claude", "whatever", "hi", nil)
	if !reply.Failed() {
		t.Fatalf("expected a failure reply")
	}
	if reply.Err.Kind != providers.KindUnknownProvider {
		t.Fatalf("expected unknown_provider, got %s", reply.Err.Kind)
	}
	if reply.Err.Message != "Unknown provider: claude" {
		t.Fatalf("unexpected message %q", reply.Err.Message)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	r := New(Config{GeminiKey: "k"})

	reply := r.Generate(context.Background(), "openai", "gpt-4o", "hi", nil)
	if !reply.Failed() {
		t.Fatalf("expected a failure reply")
	}
	if reply.Err.Kind != providers.KindNotConfigured {
		t.Fatalf("expected not_configured, got %s", reply.Err.Kind)
	}
	if reply.Err.Message != "OpenAI API key not configured" {
		t.Fatalf("unexpected message %q", reply.Err.Message)
	}
	if r.HandleCount() != 0 {
		t.Fatalf("no handle should be built for an unconfigured provider")
	}
}

func TestGenerateAliasAndAttribution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}],"usage":{"total_tokens":3}}`))
	}))
	defer srv.Close()

	r := New(Config{OpenAIKey: "k", OpenAIBase: srv.URL})

	reply := r.Generate(context.Background(), "ChatGPT", "gpt-4o", "ping", nil)
	if reply.Failed() {
		t.Fatalf("generate: %v", reply.Err)
	}
	if reply.Text != "pong" {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	if reply.Provider != providers.NameOpenAI {
		t.Fatalf("expected openai attribution, got %s", reply.Provider)
	}
	if reply.Model != "gpt-4o" {
		t.Fatalf("expected model attribution, got %q", reply.Model)
	}
	if reply.Tokens != 3 {
		t.Fatalf("expected 3 tokens, got %d", reply.Tokens)
	}
}

func TestConcurrentGenerateSharesHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":1}}`))
	}))
	defer srv.Close()

	r := New(Config{OpenAIKey: "k", OpenAIBase: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := r.Generate(context.Background(), "openai", "gpt-4o", "hi", nil)
			if reply.Failed() {
				t.Errorf("generate: %v", reply.Err)
			}
		}()
	}
	wg.Wait()

	if got := r.HandleCount(); got != 1 {
		t.Fatalf("expected one cached handle, got %d", got)
	}
}
