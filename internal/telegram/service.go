// Package telegram is the transport layer: command handlers, inline
// keyboards and the update pipeline that feeds questions into the
// queue.
package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/rs/zerolog"

	"nerdbot/internal/config"
	"nerdbot/internal/metrics"
	"nerdbot/internal/moderation"
	"nerdbot/internal/queue"
	"nerdbot/internal/router"
	"nerdbot/internal/storage"
)

type Service struct {
	store       *storage.Store
	queue       *queue.StreamQueue
	rateLimiter *queue.RateLimiter
	admin       *AdminCache
	mod         *moderation.Ops
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	botName     string
	botUsername string
	creatorName string
	groupName   string

	defaults     router.Defaults
	openaiModels []string
	geminiModels []string
	projects     []config.Project
}

type Config struct {
	Store       *storage.Store
	Queue       *queue.StreamQueue
	RateLimiter *queue.RateLimiter
	Admin       *AdminCache
	Moderation  *moderation.Ops
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics

	BotName     string
	BotUsername string
	CreatorName string
	GroupName   string

	Defaults     router.Defaults
	OpenAIModels []string
	GeminiModels []string
	Projects     []config.Project
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Service{
		store:        cfg.Store,
		queue:        cfg.Queue,
		rateLimiter:  cfg.RateLimiter,
		admin:        cfg.Admin,
		mod:          cfg.Moderation,
		logger:       cfg.Logger,
		metrics:      m,
		botName:      cfg.BotName,
		botUsername:  cfg.BotUsername,
		creatorName:  cfg.CreatorName,
		groupName:    cfg.GroupName,
		defaults:     cfg.Defaults,
		openaiModels: cfg.OpenAIModels,
		geminiModels: cfg.GeminiModels,
		projects:     cfg.Projects,
	}
}

func (s *Service) Register(d *ext.Dispatcher) {
	d.AddHandler(handlers.NewCommand("start", s.start))
	d.AddHandler(handlers.NewCommand("help", s.help))
	d.AddHandler(handlers.NewCommand("nerd", s.nerd))
	d.AddHandler(handlers.NewCommand("Nerd", s.nerd))
	d.AddHandler(handlers.NewCommand("ask", s.nerd))
	d.AddHandler(handlers.NewCommand("provider", s.provider))
	d.AddHandler(handlers.NewCommand("models", s.models))
	d.AddHandler(handlers.NewCommand("settings", s.settings))
	d.AddHandler(handlers.NewCommand("mystats", s.mystats))
	d.AddHandler(handlers.NewCommand("clear", s.clear))
	d.AddHandler(handlers.NewCommand("projects", s.projectsCmd))
	d.AddHandler(handlers.NewCommand("enhancify", s.projectInfo("Enhancify")))
	d.AddHandler(handlers.NewCommand("terminalex", s.projectInfo("Terminal Ex")))
	d.AddHandler(handlers.NewCommand("aapt2", s.projectInfo("Custom-Enhancify-aapt2-binary")))

	d.AddHandler(handlers.NewCommand("ban", s.ban))
	d.AddHandler(handlers.NewCommand("unban", s.unban))
	d.AddHandler(handlers.NewCommand("kick", s.kick))
	d.AddHandler(handlers.NewCommand("mute", s.mute))
	d.AddHandler(handlers.NewCommand("unmute", s.unmute))
	d.AddHandler(handlers.NewCommand("promote", s.promote))
	d.AddHandler(handlers.NewCommand("demote", s.demote))
	d.AddHandler(handlers.NewCommand("pin", s.pin))
	d.AddHandler(handlers.NewCommand("unpin", s.unpin))
	d.AddHandler(handlers.NewCommand("chatinfo", s.chatinfo))
	d.AddHandler(handlers.NewCommand("toggleai", s.toggleAI))
	d.AddHandler(handlers.NewCommand("setwelcome", s.setWelcome))

	d.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbPrefix), s.onCallback))

	d.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return len(msg.NewChatMembers) > 0
	}, s.onNewMembers))
	d.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return msg.ReplyToMessage != nil &&
			strings.TrimSpace(msg.GetText()) != "" &&
			!strings.HasPrefix(msg.GetText(), "/")
	}, s.onReply))
}

// Commands advertises the command menu to Telegram clients.
func (s *Service) Commands() []gotgbot.BotCommand {
	return []gotgbot.BotCommand{
		{Command: "nerd", Description: "Ask me anything"},
		{Command: "help", Description: "Show help message"},
		{Command: "projects", Description: "View creator's projects"},
		{Command: "models", Description: "Switch AI models"},
		{Command: "settings", Description: "View your settings"},
		{Command: "mystats", Description: "View usage statistics"},
		{Command: "clear", Description: "Clear chat history"},
		{Command: "chatinfo", Description: "Get chat information (groups)"},
	}
}

func (s *Service) now() time.Time {
	return time.Now().UTC()
}

func userID(ctx *ext.Context) int64 {
	if ctx.EffectiveUser == nil {
		return 0
	}
	return ctx.EffectiveUser.Id
}

func username(ctx *ext.Context) string {
	u := ctx.EffectiveUser
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func (s *Service) allowRate(chatID, uid int64, b *gotgbot.Bot, ctx *ext.Context) bool {
	if uid == 0 || s.rateLimiter == nil {
		return true
	}
	ok, _, resetAt, err := s.rateLimiter.Allow(context.Background(), chatID, uid, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("rate limiter failed")
		return true
	}
	if ok {
		return true
	}
	_ = s.reply(ctx, b, "⏳ Rate limit exceeded. Try again after "+resetAt.Format("15:04 UTC"))
	return false
}

func (s *Service) reply(ctx *ext.Context, b *gotgbot.Bot, text string) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, text, nil)
	return err
}

// replyMarkdown sends with Markdown parse mode, retrying as plain text
// when Telegram rejects the formatting.
func (s *Service) replyMarkdown(ctx *ext.Context, b *gotgbot.Bot, text string, markup *gotgbot.InlineKeyboardMarkup) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	opts := &gotgbot.SendMessageOpts{ParseMode: "Markdown"}
	if markup != nil {
		opts.ReplyMarkup = *markup
	}
	if _, err := b.SendMessage(ctx.EffectiveChat.Id, text, opts); err == nil {
		return nil
	}
	plain := &gotgbot.SendMessageOpts{}
	if markup != nil {
		plain.ReplyMarkup = *markup
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, text, plain)
	return err
}

func commandRemainder(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func splitFirstWord(s string) (first string, rest string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}
