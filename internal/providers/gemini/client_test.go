package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nerdbot/internal/providers"
)

func TestBuildPayload(t *testing.T) {
	c := New(Config{Model: "gemini-1.5-pro"})

	body, err := c.buildPayload(providers.Request{
		Preamble:    "You are concise",
		Prompt:      "hello",
		History:     []providers.Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hey"}},
		MaxTokens:   256,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload struct {
		Contents          []content `json:"contents"`
		SystemInstruction *content  `json:"systemInstruction"`
		GenerationConfig  struct {
			MaxOutputTokens int     `json:"maxOutputTokens"`
			Temperature     float64 `json:"temperature"`
		} `json:"generationConfig"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(payload.Contents))
	}
	if payload.Contents[1].Role != "model" {
		t.Fatalf("expected assistant turn mapped to model role, got %q", payload.Contents[1].Role)
	}
	if payload.Contents[2].Role != "user" || payload.Contents[2].Parts[0].Text != "hello" {
		t.Fatalf("unexpected final content %+v", payload.Contents[2])
	}
	if payload.SystemInstruction == nil || payload.SystemInstruction.Parts[0].Text != "You are concise" {
		t.Fatalf("unexpected systemInstruction %+v", payload.SystemInstruction)
	}
	if payload.GenerationConfig.MaxOutputTokens != 256 {
		t.Fatalf("expected maxOutputTokens 256, got %d", payload.GenerationConfig.MaxOutputTokens)
	}
	if payload.GenerationConfig.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", payload.GenerationConfig.Temperature)
	}
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-pro:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"fo"},{"text":"ur"}]}}],"usageMetadata":{"totalTokenCount":9}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gemini-1.5-pro"})
	res, perr := c.Generate(context.Background(), providers.Request{Prompt: "2+2"})
	if perr != nil {
		t.Fatalf("generate: %v", perr)
	}
	if res.Text != "four" {
		t.Fatalf("expected joined parts, got %q", res.Text)
	}
	if res.Tokens != 9 {
		t.Fatalf("expected 9 tokens, got %d", res.Tokens)
	}
}

func TestGenerateClassifiesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"Permission denied on resource","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "bad", Model: "gemini-1.5-pro"})
	_, perr := c.Generate(context.Background(), providers.Request{Prompt: "hi"})
	if perr == nil {
		t.Fatalf("expected a classified error")
	}
	if perr.Kind != providers.KindAuthInvalid {
		t.Fatalf("expected auth_invalid, got %s", perr.Kind)
	}
}

func TestGenerateResourceExhaustedSplit(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want providers.ErrorKind
	}{
		{"throttle", "Requests per minute exceeded, slow down", providers.KindRateLimited},
		{"quota", "You have exceeded your quota for this project", providers.KindQuotaExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				body, _ := json.Marshal(map[string]any{
					"error": map[string]any{"code": 429, "message": tc.msg, "status": "RESOURCE_EXHAUSTED"},
				})
				w.Write(body)
			}))
			defer srv.Close()

			c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gemini-1.5-pro"})
			_, perr := c.Generate(context.Background(), providers.Request{Prompt: "hi"})
			if perr == nil {
				t.Fatalf("expected a classified error")
			}
			if perr.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, perr.Kind)
			}
		})
	}
}
