package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"nerdbot/internal/moderation"
	"nerdbot/internal/queue"
	"nerdbot/internal/router"
	"nerdbot/internal/storage"
)

func (s *Service) start(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	// Touch the user row so later partial updates have a username.
	s.store.SetUserSettings(context.Background(), ctx.EffectiveUser.Id, username(ctx), storage.UserSettingsUpdate{})
	return s.replyMarkdown(ctx, b, s.startText(), s.mainMenuKeyboard())
}

func (s *Service) help(b *gotgbot.Bot, ctx *ext.Context) error {
	return s.replyMarkdown(ctx, b, s.helpText(), nil)
}

// nerd handles /nerd and /ask: resolve the question, pass the rate
// gate, and hand the job to the queue. The worker does the rest.
func (s *Service) nerd(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || ctx.EffectiveChat == nil {
		return nil
	}
	question := strings.TrimSpace(commandRemainder(msg.GetText()))
	if question == "" && msg.ReplyToMessage != nil {
		question = strings.TrimSpace(msg.ReplyToMessage.GetText())
	}
	if question == "" {
		return s.replyMarkdown(ctx, b, "❓ Please provide a question!\n\nUsage: `/nerd <your question>`", nil)
	}
	return s.enqueueAsk(b, ctx, question)
}

func (s *Service) enqueueAsk(b *gotgbot.Bot, ctx *ext.Context, question string) error {
	chat := ctx.EffectiveChat
	msg := ctx.EffectiveMessage
	if !s.allowRate(chat.Id, userID(ctx), b, ctx) {
		return nil
	}
	_, _ = b.SendChatAction(chat.Id, "typing", nil)

	job := queue.AskJob{
		ChatID:    chat.Id,
		ChatType:  chat.Type,
		UserID:    userID(ctx),
		Username:  username(ctx),
		MessageID: msg.MessageId,
		Question:  question,
	}
	if _, err := s.queue.Enqueue(context.Background(), job); err != nil {
		s.logger.Error().Err(err).Msg("failed to enqueue ask job")
		return s.reply(ctx, b, "❌ Queue is unavailable right now. Please try again later.")
	}
	s.metrics.EnqueuedJobs.Inc()
	return nil
}

// onReply continues the conversation when a user replies to one of the
// bot's messages.
func (s *Service) onReply(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || ctx.EffectiveChat == nil || msg.ReplyToMessage == nil {
		return nil
	}
	if msg.ReplyToMessage.From == nil || msg.ReplyToMessage.From.Id != b.Id {
		return nil
	}
	// Stay silent in groups where AI is switched off.
	if router.IsGroupChat(ctx.EffectiveChat.Type) {
		if gs, found := s.store.GetGroupSettings(context.Background(), ctx.EffectiveChat.Id); found && !gs.AIEnabled {
			return nil
		}
	}
	question := strings.TrimSpace(msg.GetText())
	if question == "" {
		return nil
	}
	return s.enqueueAsk(b, ctx, question)
}

func (s *Service) provider(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveMessage == nil {
		return nil
	}
	arg := strings.TrimSpace(commandRemainder(ctx.EffectiveMessage.GetText()))
	if arg == "" {
		return s.replyMarkdown(ctx, b, "Usage: `/provider <openai|gemini>`", nil)
	}
	name, ok := parseProviderArg(arg)
	if !ok {
		return s.replyMarkdown(ctx, b, "❌ Invalid provider. Use `openai` or `gemini`", nil)
	}
	s.store.SetUserSettings(context.Background(), ctx.EffectiveUser.Id, username(ctx), storage.UserSettingsUpdate{
		Provider: storage.Set(name),
	})
	return s.replyMarkdown(ctx, b, fmt.Sprintf("✅ AI provider switched to **%s**", strings.ToUpper(name)), nil)
}

func parseProviderArg(arg string) (string, bool) {
	switch strings.ToLower(arg) {
	case "openai", "chatgpt":
		return "openai", true
	case "gemini":
		return "gemini", true
	default:
		return "", false
	}
}

func (s *Service) models(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	provider, model := s.userProviderModel(ctx.EffectiveUser.Id)
	text := fmt.Sprintf("🤖 **AI Model Settings**\n\n**Current Provider:** %s\n**Current Model:** %s\n\nSelect a provider and model below:",
		strings.ToUpper(provider), model)
	return s.replyMarkdown(ctx, b, text, s.modelMenuKeyboard(provider))
}

func (s *Service) settings(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveChat == nil {
		return nil
	}
	text := s.userSettingsText(ctx.EffectiveUser)
	if router.IsGroupChat(ctx.EffectiveChat.Type) {
		text += s.groupSettingsText(ctx.EffectiveChat.Id)
	}
	return s.replyMarkdown(ctx, b, text, s.settingsKeyboard())
}

func (s *Service) mystats(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	text, ok := s.usageStatsText(ctx.EffectiveUser.Id)
	if !ok {
		return s.reply(ctx, b, "📊 No usage statistics yet!")
	}
	return s.replyMarkdown(ctx, b, text, nil)
}

func (s *Service) clear(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveChat == nil {
		return nil
	}
	s.store.ClearHistory(context.Background(), ctx.EffectiveChat.Id, ctx.EffectiveUser.Id)
	return s.reply(ctx, b, "🗑️ Chat history cleared!")
}

func (s *Service) projectsCmd(b *gotgbot.Bot, ctx *ext.Context) error {
	text, markup := s.projectsScreen(false)
	return s.replyMarkdown(ctx, b, text, markup)
}

// projectInfo returns a handler for one of the per-project info
// commands.
func (s *Service) projectInfo(name string) handlerFunc {
	return func(b *gotgbot.Bot, ctx *ext.Context) error {
		for _, p := range s.projects {
			if p.Name != name {
				continue
			}
			text := s.projectDetailText(p)
			markup := &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
				{{Text: "🔗 View on GitHub", Url: p.URL}},
			}}
			return s.replyMarkdown(ctx, b, text, markup)
		}
		return s.reply(ctx, b, "❌ Project info is not available.")
	}
}

type handlerFunc = handlers.Response

// ---- group administration ----

func (s *Service) requireGroup(b *gotgbot.Bot, ctx *ext.Context) bool {
	if ctx.EffectiveChat == nil || !router.IsGroupChat(ctx.EffectiveChat.Type) {
		_ = s.reply(ctx, b, "❌ This command only works in groups!")
		return false
	}
	return true
}

func (s *Service) requireGroupAdmin(b *gotgbot.Bot, ctx *ext.Context) (chatID, uid int64, ok bool) {
	if !s.requireGroup(b, ctx) || ctx.EffectiveUser == nil {
		return 0, 0, false
	}
	chatID = ctx.EffectiveChat.Id
	uid = ctx.EffectiveUser.Id
	admin, err := s.admin.IsAdmin(context.Background(), chatID, uid)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Int64("user_id", uid).Msg("admin check failed")
		_ = s.reply(ctx, b, "❌ Failed to verify admin rights.")
		return 0, 0, false
	}
	if !admin {
		_ = s.reply(ctx, b, "❌ You need admin privileges!")
		return 0, 0, false
	}
	return chatID, uid, true
}

// targetUser resolves the subject of a moderation command from the
// replied-to message or a numeric user id argument. Usernames cannot
// be resolved without prior interaction, so "@name" yields nothing.
func (s *Service) targetUser(b *gotgbot.Bot, ctx *ext.Context) *gotgbot.User {
	msg := ctx.EffectiveMessage
	if msg == nil {
		return nil
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return msg.ReplyToMessage.From
	}
	arg, _ := splitFirstWord(commandRemainder(msg.GetText()))
	if arg == "" || strings.HasPrefix(arg, "@") {
		return nil
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil
	}
	member, err := b.GetChatMemberWithContext(context.Background(), ctx.EffectiveChat.Id, id, nil)
	if err != nil {
		return nil
	}
	u := member.GetUser()
	return &u
}

// modArgs splits the command remainder into the part that belongs to
// the target argument and the free-text tail (reason, title).
func (s *Service) modArgs(ctx *ext.Context) (tail string) {
	msg := ctx.EffectiveMessage
	if msg == nil {
		return ""
	}
	rem := commandRemainder(msg.GetText())
	if msg.ReplyToMessage != nil {
		return strings.TrimSpace(rem)
	}
	_, tail = splitFirstWord(rem)
	return tail
}

func (s *Service) ban(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	target := s.targetUser(b, ctx)
	if target == nil {
		return s.replyMarkdown(ctx, b, "❌ Please reply to a user's message or provide a user ID.\nUsage: `/ban` (reply) or `/ban <user_id>`", nil)
	}
	_, text := s.mod.Ban(context.Background(), ctx.EffectiveChat.Id, userID(ctx), target.Id, s.modArgs(ctx))
	return s.reply(ctx, b, text)
}

func (s *Service) unban(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	arg, _ := splitFirstWord(commandRemainder(ctx.EffectiveMessage.GetText()))
	id, err := strconv.ParseInt(arg, 10, 64)
	if arg == "" || err != nil {
		return s.replyMarkdown(ctx, b, "Usage: `/unban <user_id>`", nil)
	}
	_, text := s.mod.Unban(context.Background(), ctx.EffectiveChat.Id, userID(ctx), id)
	return s.reply(ctx, b, text)
}

func (s *Service) kick(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	target := s.targetUser(b, ctx)
	if target == nil {
		return s.replyMarkdown(ctx, b, "❌ Please reply to a user's message or provide a user ID.\nUsage: `/kick` (reply) or `/kick <user_id>`", nil)
	}
	_, text := s.mod.Kick(context.Background(), ctx.EffectiveChat.Id, userID(ctx), target.Id, s.modArgs(ctx))
	return s.reply(ctx, b, text)
}

func (s *Service) mute(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	target := s.targetUser(b, ctx)
	if target == nil {
		return s.replyMarkdown(ctx, b, "❌ Please reply to a user's message.\nUsage: `/mute [duration]` (reply)\nDuration: 30s, 5m, 1h, 1d", nil)
	}
	var dur time.Duration
	if arg, _ := splitFirstWord(commandRemainder(ctx.EffectiveMessage.GetText())); arg != "" {
		if d, ok := moderation.ParseDuration(arg); ok {
			dur = d
		}
	}
	_, text := s.mod.Mute(context.Background(), ctx.EffectiveChat.Id, userID(ctx), target.Id, dur)
	return s.reply(ctx, b, text)
}

func (s *Service) unmute(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	target := s.targetUser(b, ctx)
	if target == nil {
		return s.replyMarkdown(ctx, b, "❌ Please reply to a user's message.\nUsage: `/unmute` (reply)", nil)
	}
	_, text := s.mod.Unmute(context.Background(), ctx.EffectiveChat.Id, userID(ctx), target.Id)
	return s.reply(ctx, b, text)
}

func (s *Service) promote(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	target := s.targetUser(b, ctx)
	if target == nil {
		return s.replyMarkdown(ctx, b, "❌ Please reply to a user's message.\nUsage: `/promote [title]` (reply)", nil)
	}
	_, text := s.mod.Promote(context.Background(), ctx.EffectiveChat.Id, userID(ctx), target.Id, s.modArgs(ctx))
	return s.reply(ctx, b, text)
}

func (s *Service) demote(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	target := s.targetUser(b, ctx)
	if target == nil {
		return s.replyMarkdown(ctx, b, "❌ Please reply to a user's message.\nUsage: `/demote` (reply)", nil)
	}
	_, text := s.mod.Demote(context.Background(), ctx.EffectiveChat.Id, userID(ctx), target.Id)
	return s.reply(ctx, b, text)
}

func (s *Service) pin(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	msg := ctx.EffectiveMessage
	if msg == nil || msg.ReplyToMessage == nil {
		return s.reply(ctx, b, "❌ Please reply to the message you want to pin.")
	}
	arg, _ := splitFirstWord(commandRemainder(msg.GetText()))
	notify := !strings.EqualFold(arg, "silent")
	_, text := s.mod.Pin(context.Background(), ctx.EffectiveChat.Id, userID(ctx), msg.ReplyToMessage.MessageId, notify)
	return s.reply(ctx, b, text)
}

func (s *Service) unpin(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	var messageID int64
	if msg := ctx.EffectiveMessage; msg != nil && msg.ReplyToMessage != nil {
		messageID = msg.ReplyToMessage.MessageId
	}
	_, text := s.mod.Unpin(context.Background(), ctx.EffectiveChat.Id, userID(ctx), messageID)
	return s.reply(ctx, b, text)
}

func (s *Service) chatinfo(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireGroup(b, ctx) {
		return nil
	}
	info, err := s.mod.ChatInfo(context.Background(), ctx.EffectiveChat.Id)
	if err != nil {
		return s.reply(ctx, b, fmt.Sprintf("❌ Error: %v", err))
	}
	desc := info.Description
	if desc == "" {
		desc = "Not set"
	}
	text := fmt.Sprintf("📋 **Chat Information**\n\n**Title:** %s\n**ID:** `%d`\n**Type:** %s\n**Members:** %d\n**Description:** %s",
		info.Title, info.ID, info.Type, info.MemberCount, desc)
	return s.replyMarkdown(ctx, b, text, nil)
}

func (s *Service) toggleAI(b *gotgbot.Bot, ctx *ext.Context) error {
	chatID, _, ok := s.requireGroupAdmin(b, ctx)
	if !ok {
		return nil
	}
	enabled := true
	if gs, found := s.store.GetGroupSettings(context.Background(), chatID); found {
		enabled = gs.AIEnabled
	}
	next := !enabled
	s.store.SetGroupSettings(context.Background(), chatID, ctx.EffectiveChat.Title, storage.GroupSettingsUpdate{
		AIEnabled: storage.Set(next),
	})
	status := "disabled ❌"
	if next {
		status = "enabled ✅"
	}
	return s.reply(ctx, b, fmt.Sprintf("🤖 AI has been %s for this group.", status))
}

func (s *Service) setWelcome(b *gotgbot.Bot, ctx *ext.Context) error {
	chatID, _, ok := s.requireGroupAdmin(b, ctx)
	if !ok {
		return nil
	}
	message := strings.TrimSpace(commandRemainder(ctx.EffectiveMessage.GetText()))
	if message == "" {
		return s.replyMarkdown(ctx, b, strings.Join([]string{
			"Usage: `/setwelcome <message>`",
			"",
			"Variables:",
			"• `{name}` - User's name",
			"• `{username}` - User's username",
			"• `{chat}` - Chat title",
			"• `{count}` - Member count",
		}, "\n"), nil)
	}
	s.store.SetGroupSettings(context.Background(), chatID, ctx.EffectiveChat.Title, storage.GroupSettingsUpdate{
		WelcomeMessage: storage.Set(&message),
	})
	return s.reply(ctx, b, "✅ Welcome message has been set!")
}

// onNewMembers greets users joining a group, expanding the template
// variables of a custom welcome message.
func (s *Service) onNewMembers(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	chat := ctx.EffectiveChat
	if msg == nil || chat == nil {
		return nil
	}
	gs, found := s.store.GetGroupSettings(context.Background(), chat.Id)
	if found && !gs.WelcomeEnabled {
		return nil
	}
	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		var text string
		if found && gs.WelcomeMessage != nil && *gs.WelcomeMessage != "" {
			count, _ := b.GetChatMemberCount(chat.Id, nil)
			handle := member.FirstName
			if member.Username != "" {
				handle = "@" + member.Username
			}
			text = strings.NewReplacer(
				"{name}", member.FirstName,
				"{username}", handle,
				"{chat}", chat.Title,
				"{count}", strconv.FormatInt(count, 10),
			).Replace(*gs.WelcomeMessage)
		} else {
			text = fmt.Sprintf("👋 Welcome to **%s**, %s!\n\nI'm **%s**, your AI assistant here.\n\nUse `/nerd <question>` to ask me anything!",
				chat.Title, member.FirstName, s.botName)
		}
		if err := s.replyMarkdown(ctx, b, text, nil); err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chat.Id).Msg("welcome message failed")
		}
	}
	return nil
}

func (s *Service) userProviderModel(uid int64) (provider, model string) {
	us, _ := s.store.GetUserSettings(context.Background(), uid)
	provider = us.Provider
	if provider == "" {
		provider = s.defaults.Provider
	}
	if provider == "openai" {
		model = firstNonEmpty(us.OpenAIModel, s.defaults.OpenAIModel)
	} else {
		model = firstNonEmpty(us.GeminiModel, s.defaults.GeminiModel)
	}
	return provider, model
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
