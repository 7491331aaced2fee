package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"nerdbot/internal/providers/registry"
	"nerdbot/internal/storage"
)

type stubAdmin struct {
	admin bool
	err   error
}

func (s stubAdmin) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	return s.admin, s.err
}

func openaiBackend(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, backendURL string, admin AdminChecker) (*Router, *storage.Store) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "bot.db")
	store, err := storage.Open(context.Background(), "sqlite", dsn, true, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(registry.Config{
		OpenAIKey:  "test-key",
		OpenAIBase: backendURL,
		GeminiKey:  "test-key",
		GeminiBase: backendURL,
	})
	r := New(Config{
		Store:    store,
		Registry: reg,
		Admin:    admin,
		Defaults: Defaults{Provider: "gemini", OpenAIModel: "gpt-4o", GeminiModel: "gemini-1.5-pro"},
		Logger:   zerolog.Nop(),
	})
	return r, store
}

func TestAskSuccessCommitsBothTurns(t *testing.T) {
	srv := openaiBackend(t, `{"choices":[{"message":{"content":"Paris"}}],"usage":{"total_tokens":12}}`, http.StatusOK)
	r, store := newTestRouter(t, srv.URL, nil)
	ctx := context.Background()

	store.SetUserSettings(ctx, 7, "gray", storage.UserSettingsUpdate{Provider: storage.Set("openai")})

	answer := r.Ask(ctx, Ask{
		UserID:    7,
		ChatID:    7,
		MessageID: 100,
		ChatType:  ChatTypeDirect,
		Question:  "Capital of France?",
	})
	if !answer.OK {
		t.Fatalf("expected success, got %q", answer.Text)
	}
	if answer.Text != "Paris\n\n_🤖 gpt-4o | OPENAI_" {
		t.Fatalf("unexpected reply text %q", answer.Text)
	}
	if answer.Tokens != 12 {
		t.Fatalf("expected 12 tokens, got %d", answer.Tokens)
	}

	history := store.RecentHistory(ctx, 7, 10)
	if len(history) != 1 || history[0].Role != storage.RoleUser {
		t.Fatalf("expected only the user turn before commit, got %+v", history)
	}

	answer.CommitAssistantTurn(ctx, 101)
	history = store.RecentHistory(ctx, 7, 10)
	if len(history) != 2 {
		t.Fatalf("expected both turns after commit, got %d", len(history))
	}
	if history[1].Role != storage.RoleAssistant || history[1].Content != "Paris" {
		t.Fatalf("assistant turn must store the bare reply, got %+v", history[1])
	}

	rows := store.UsageSummary(ctx, 7, 0)
	if len(rows) != 1 || rows[0].Provider != "openai" || rows[0].TotalTokens != 12 {
		t.Fatalf("unexpected usage summary %+v", rows)
	}
}

func TestAskRefusedWhenGroupAIDisabled(t *testing.T) {
	srv := openaiBackend(t, `{"choices":[{"message":{"content":"nope"}}]}`, http.StatusOK)
	r, store := newTestRouter(t, srv.URL, nil)
	ctx := context.Background()

	store.SetGroupSettings(ctx, -500, "Test Group", storage.GroupSettingsUpdate{AIEnabled: storage.Set(false)})

	answer := r.Ask(ctx, Ask{UserID: 7, ChatID: -500, ChatType: ChatTypeGroup, Question: "hi"})
	if answer.OK || !answer.Refused {
		t.Fatalf("expected refusal, got %+v", answer)
	}
	if answer.Text != "🤖 AI is disabled in this group." {
		t.Fatalf("unexpected refusal text %q", answer.Text)
	}
	if got := store.RecentHistory(ctx, -500, 10); len(got) != 0 {
		t.Fatalf("refused request must not be persisted, got %d turns", len(got))
	}
}

func TestAskAdminOnlyBlocksNonAdmin(t *testing.T) {
	srv := openaiBackend(t, `{"choices":[{"message":{"content":"nope"}}]}`, http.StatusOK)
	r, store := newTestRouter(t, srv.URL, stubAdmin{admin: false})
	ctx := context.Background()

	store.SetGroupSettings(ctx, -500, "Test Group", storage.GroupSettingsUpdate{AdminOnlyAI: storage.Set(true)})

	answer := r.Ask(ctx, Ask{UserID: 7, ChatID: -500, ChatType: "supergroup", Question: "hi"})
	if !answer.Refused {
		t.Fatalf("expected refusal, got %+v", answer)
	}
	if answer.Text != "❌ Only admins can use AI in this group." {
		t.Fatalf("unexpected refusal text %q", answer.Text)
	}
}

func TestAskAdminOnlyAllowsAdmin(t *testing.T) {
	srv := openaiBackend(t, `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}],"usageMetadata":{"totalTokenCount":2}}`, http.StatusOK)
	r, store := newTestRouter(t, srv.URL, stubAdmin{admin: true})
	ctx := context.Background()

	store.SetGroupSettings(ctx, -500, "Test Group", storage.GroupSettingsUpdate{AdminOnlyAI: storage.Set(true)})

	answer := r.Ask(ctx, Ask{UserID: 7, ChatID: -500, ChatType: ChatTypeGroup, Question: "hi"})
	if !answer.OK {
		t.Fatalf("expected success for admin, got %q", answer.Text)
	}
	if answer.Text != "hello\n\n_🤖 gemini-1.5-pro | GEMINI_" {
		t.Fatalf("unexpected reply text %q", answer.Text)
	}
}

func TestAskProviderFailureNotPersisted(t *testing.T) {
	srv := openaiBackend(t, `{"error":{"message":"Incorrect API key provided","code":"invalid_api_key"}}`, http.StatusUnauthorized)
	r, store := newTestRouter(t, srv.URL, nil)
	ctx := context.Background()

	store.SetUserSettings(ctx, 7, "gray", storage.UserSettingsUpdate{Provider: storage.Set("openai")})

	answer := r.Ask(ctx, Ask{UserID: 7, ChatID: 7, ChatType: ChatTypeDirect, Question: "hi"})
	if answer.OK || answer.Refused {
		t.Fatalf("expected a failure answer, got %+v", answer)
	}
	if answer.Text != "❌ Error: Incorrect API key provided" {
		t.Fatalf("unexpected failure text %q", answer.Text)
	}
	if got := store.RecentHistory(ctx, 7, 10); len(got) != 0 {
		t.Fatalf("failed request must not be persisted, got %d turns", len(got))
	}

	// CommitAssistantTurn on a non-success answer is a no-op.
	answer.CommitAssistantTurn(ctx, 55)
	if got := store.RecentHistory(ctx, 7, 10); len(got) != 0 {
		t.Fatalf("commit on failure must not persist, got %d turns", len(got))
	}
}

func TestResolveProviderModelPrecedence(t *testing.T) {
	srv := openaiBackend(t, `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":1}}`, http.StatusOK)
	r, store := newTestRouter(t, srv.URL, nil)
	ctx := context.Background()

	// No settings: global defaults apply.
	provider, model := r.resolveProviderModel(r.resolveScope(ctx, Ask{UserID: 1, ChatType: ChatTypeDirect}))
	if provider != "gemini" || model != "gemini-1.5-pro" {
		t.Fatalf("expected global defaults, got %s/%s", provider, model)
	}

	// User picks openai with an explicit model.
	store.SetUserSettings(ctx, 1, "gray", storage.UserSettingsUpdate{
		Provider:    storage.Set("openai"),
		OpenAIModel: storage.Set("gpt-4o-mini"),
	})
	provider, model = r.resolveProviderModel(r.resolveScope(ctx, Ask{UserID: 1, ChatType: ChatTypeDirect}))
	if provider != "openai" || model != "gpt-4o-mini" {
		t.Fatalf("expected user selection, got %s/%s", provider, model)
	}

	// Group scope resolves from the group row, not the asking user.
	store.SetGroupSettings(ctx, -9, "Test Group", storage.GroupSettingsUpdate{Provider: storage.Set("openai")})
	provider, model = r.resolveProviderModel(r.resolveScope(ctx, Ask{UserID: 1, ChatID: -9, ChatType: ChatTypeGroup}))
	if provider != "openai" || model != "gpt-4o" {
		t.Fatalf("expected group provider with global model fallback, got %s/%s", provider, model)
	}
}
