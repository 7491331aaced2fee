// Package router is the orchestration core: it resolves the effective
// provider and model for an inbound question, assembles bounded
// conversation context, drives the provider registry and persists both
// sides of the exchange.
package router

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"nerdbot/internal/metrics"
	"nerdbot/internal/providers"
	"nerdbot/internal/providers/registry"
	"nerdbot/internal/storage"
)

const (
	ChatTypeDirect = "private"
	ChatTypeGroup  = "group"
)

// Defaults are the global fallbacks applied when a scope carries no
// explicit selection.
type Defaults struct {
	Provider    string
	OpenAIModel string
	GeminiModel string
}

// AdminChecker reports whether a user is an admin of a chat. Used only
// to enforce the admin-only-AI group flag.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

type Router struct {
	store    *storage.Store
	registry *registry.Registry
	admin    AdminChecker
	defaults Defaults
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

type Config struct {
	Store    *storage.Store
	Registry *registry.Registry
	Admin    AdminChecker
	Defaults Defaults
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

func New(cfg Config) *Router {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Router{
		store:    cfg.Store,
		registry: cfg.Registry,
		admin:    cfg.Admin,
		defaults: cfg.Defaults,
		log:      cfg.Logger,
		metrics:  m,
	}
}

// Ask is one inbound question from the transport.
type Ask struct {
	UserID    int64
	ChatID    int64
	MessageID int64
	ChatType  string // "private", "group" or "supergroup"
	Username  string
	Question  string
}

// Answer is the normalized result returned to the transport. On success
// Text carries the reply with its attribution footer and the user turn
// has already been persisted; the caller must call CommitAssistantTurn
// once the transport confirms delivery. On refusal or failure nothing
// was persisted.
type Answer struct {
	OK       bool
	Refused  bool
	Text     string
	Provider providers.Name
	Model    string
	Tokens   int64

	raw string
	r   *Router
	ask Ask
}

func (r *Router) Ask(ctx context.Context, ask Ask) Answer {
	scope := r.resolveScope(ctx, ask)

	if scope.isGroup {
		if !scope.group.AIEnabled {
			return Answer{Refused: true, Text: "🤖 AI is disabled in this group."}
		}
		if scope.group.AdminOnlyAI && r.admin != nil {
			admin, err := r.admin.IsAdmin(ctx, ask.ChatID, ask.UserID)
			if err != nil {
				r.log.Warn().Err(err).Int64("chat_id", ask.ChatID).Msg("admin check failed, allowing request")
			} else if !admin {
				return Answer{Refused: true, Text: "❌ Only admins can use AI in this group."}
			}
		}
	}

	provider, model := r.resolveProviderModel(scope)
	history := r.history(ctx, ask.ChatID)

	reply := r.registry.Generate(ctx, provider, model, ask.Question, history)
	if reply.Failed() {
		r.metrics.ProviderCalls.WithLabelValues(string(reply.Provider), string(reply.Err.Kind)).Inc()
		if reply.Err.Kind == providers.KindUnexpected {
			r.log.Error().
				Str("provider", provider).
				Str("model", model).
				Str("detail", reply.Err.Message).
				Msg("unclassified provider failure")
			return Answer{Text: "❌ Error: Something went wrong. Please try again later."}
		}
		return Answer{Text: "❌ Error: " + reply.Err.Message}
	}

	r.metrics.ProviderCalls.WithLabelValues(string(reply.Provider), "success").Inc()
	r.metrics.TokensUsed.WithLabelValues(string(reply.Provider)).Add(float64(reply.Tokens))

	// The user turn is persisted before the reply is sent; the assistant
	// turn follows in CommitAssistantTurn once its message id is known.
	r.store.AppendTurn(ctx, storage.ConversationTurn{
		UserID:    ask.UserID,
		ChatID:    ask.ChatID,
		MessageID: ask.MessageID,
		Role:      storage.RoleUser,
		Content:   ask.Question,
		Provider:  string(reply.Provider),
		Model:     reply.Model,
	})
	r.store.RecordUsage(ctx, storage.UsageRecord{
		UserID:     ask.UserID,
		ChatID:     ask.ChatID,
		Provider:   string(reply.Provider),
		Model:      reply.Model,
		TokensUsed: reply.Tokens,
	})

	footer := "\n\n_🤖 " + reply.Model + " | " + strings.ToUpper(string(reply.Provider)) + "_"
	return Answer{
		OK:       true,
		Text:     reply.Text + footer,
		Provider: reply.Provider,
		Model:    reply.Model,
		Tokens:   reply.Tokens,
		raw:      reply.Text,
		r:        r,
		ask:      ask,
	}
}

// CommitAssistantTurn persists the assistant side of the exchange using
// the message id assigned by the transport on delivery.
func (a *Answer) CommitAssistantTurn(ctx context.Context, messageID int64) {
	if !a.OK || a.r == nil {
		return
	}
	a.r.store.AppendTurn(ctx, storage.ConversationTurn{
		UserID:    a.ask.UserID,
		ChatID:    a.ask.ChatID,
		MessageID: messageID,
		Role:      storage.RoleAssistant,
		Content:   a.raw,
		Provider:  string(a.Provider),
		Model:     a.Model,
	})
}

type scope struct {
	isGroup bool
	user    storage.UserSettings
	group   storage.GroupSettings
	found   bool
}

func (r *Router) resolveScope(ctx context.Context, ask Ask) scope {
	if IsGroupChat(ask.ChatType) {
		g, found := r.store.GetGroupSettings(ctx, ask.ChatID)
		if !found {
			g = storage.GroupSettings{ChatID: ask.ChatID, AIEnabled: true, WelcomeEnabled: true}
		}
		return scope{isGroup: true, group: g, found: found}
	}
	u, found := r.store.GetUserSettings(ctx, ask.UserID)
	return scope{user: u, found: found}
}

// resolveProviderModel applies the precedence rules: scope selection
// over global default, then the scope's model for that provider over the
// provider's global default.
func (r *Router) resolveProviderModel(sc scope) (provider, model string) {
	provider = r.defaults.Provider
	var openaiModel, geminiModel string
	if sc.found {
		if sc.isGroup {
			provider = firstNonEmpty(sc.group.Provider, provider)
			openaiModel, geminiModel = sc.group.OpenAIModel, sc.group.GeminiModel
		} else {
			provider = firstNonEmpty(sc.user.Provider, provider)
			openaiModel, geminiModel = sc.user.OpenAIModel, sc.user.GeminiModel
		}
	}

	if name, ok := providers.ParseName(provider); ok && name == providers.NameOpenAI {
		return provider, firstNonEmpty(openaiModel, r.defaults.OpenAIModel)
	}
	return provider, firstNonEmpty(geminiModel, r.defaults.GeminiModel)
}

func (r *Router) history(ctx context.Context, chatID int64) []providers.Turn {
	stored := r.store.RecentHistory(ctx, chatID, providers.HistoryLimit)
	out := make([]providers.Turn, 0, len(stored))
	for _, t := range stored {
		out = append(out, providers.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}

func IsGroupChat(chatType string) bool {
	return chatType == ChatTypeGroup || chatType == "supergroup"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
