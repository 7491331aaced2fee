package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"nerdbot/internal/config"
)

const (
	cbPrefix = "nm:"

	cbBackMain   = cbPrefix + "back_main"
	cbProjects   = cbPrefix + "projects"
	cbSettings   = cbPrefix + "settings"
	cbModels     = cbPrefix + "models"
	cbHelp       = cbPrefix + "help"
	cbMyStats    = cbPrefix + "mystats"
	cbViewModels = cbPrefix + "view_models"

	cbProviderPrefix = cbPrefix + "provider_"
	cbModelPrefix    = cbPrefix + "model_"
)

func (s *Service) startText() string {
	return strings.Join([]string{
		fmt.Sprintf("🤖 **Welcome to %s!**", s.botName),
		"",
		fmt.Sprintf("I'm an advanced AI assistant created by **%s** for the **%s** community.", s.creatorName, s.groupName),
		"",
		"**🔧 My Capabilities:**",
		"• AI-powered conversations (GPT-4o, Gemini 1.5 Pro)",
		"• Code assistance and debugging",
		"• Group administration",
		"• Information about creator's projects",
		"",
		"**📚 Commands:**",
		"• `/nerd <question>` - Ask me anything",
		"• `/help` - Show all commands",
		"• `/projects` - View creator's projects",
		"• `/models` - Switch AI models",
		"• `/settings` - View your settings",
		"",
		"**💡 Tip:** You can also reply to my messages to continue the conversation!",
		"",
		fmt.Sprintf("Created with ❤️ by **%s**", s.creatorName),
	}, "\n")
}

func (s *Service) helpText() string {
	return strings.Join([]string{
		fmt.Sprintf("📖 **%s Help**", s.botName),
		"",
		"**🤖 AI Commands:**",
		"• `/nerd <question>` - Ask me anything",
		"• `/ask <question>` - Alternative to /nerd",
		"• `/models` - View and switch AI models",
		"• `/provider <openai|gemini>` - Switch AI provider",
		"• `/clear` - Clear chat history",
		"",
		"**📁 Project Commands:**",
		"• `/projects` - View all projects",
		"• `/enhancify` - Info about Enhancify",
		"• `/terminalex` - Info about Terminal Ex",
		"• `/aapt2` - Info about Custom aapt2",
		"",
		"**⚙️ Settings Commands:**",
		"• `/settings` - View your settings",
		"• `/mystats` - View your usage stats",
		"",
		"**👑 Admin Commands (Groups Only):**",
		"• `/ban` - Ban a user (reply or user id)",
		"• `/unban` - Unban a user",
		"• `/kick` - Kick a user",
		"• `/mute [duration]` - Mute a user",
		"• `/unmute` - Unmute a user",
		"• `/promote` - Promote to admin",
		"• `/demote` - Demote from admin",
		"• `/pin` - Pin a message",
		"• `/unpin` - Unpin messages",
		"• `/chatinfo` - Get chat information",
		"• `/setwelcome <message>` - Set welcome message",
		"• `/toggleai` - Enable/disable AI in group",
		"",
		"**💡 Tips:**",
		"• Reply to my messages to continue conversation",
		"• Use `/nerd` in groups to call me",
		"• Admins can configure group-specific settings",
	}, "\n")
}

func (s *Service) quickHelpText() string {
	return strings.Join([]string{
		fmt.Sprintf("📖 **%s Quick Help**", s.botName),
		"",
		"**Main Commands:**",
		"• `/nerd <question>` - Ask me anything",
		"• `/models` - Switch AI models",
		"• `/projects` - View projects",
		"• `/settings` - Your settings",
		"",
		"**Admin Commands:**",
		"• `/ban`, `/kick`, `/mute`",
		"• `/promote`, `/demote`",
		"• `/pin`, `/unpin`",
		"",
		"Use `/help` for full command list.",
	}, "\n")
}

func (s *Service) mainMenuText() string {
	return fmt.Sprintf("🤖 **%s**\n\nWhat would you like to do?", s.botName)
}

func (s *Service) mainMenuKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{
			{Text: "📚 Projects", CallbackData: cbProjects},
			{Text: "⚙️ Settings", CallbackData: cbSettings},
		},
		{
			{Text: "🤖 Models", CallbackData: cbModels},
			{Text: "❓ Help", CallbackData: cbHelp},
		},
	}}
}

func (s *Service) settingsKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{{Text: "🔄 Change Provider", CallbackData: cbModels}},
		{{Text: "📊 My Stats", CallbackData: cbMyStats}},
	}}
}

func (s *Service) modelMenuKeyboard(current string) *gotgbot.InlineKeyboardMarkup {
	mark := func(p, label string) string {
		if p == current {
			return "✅ " + label
		}
		return label
	}
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{{Text: mark("openai", "🔷 OpenAI/ChatGPT"), CallbackData: cbProviderPrefix + "openai"}},
		{{Text: mark("gemini", "🔶 Google Gemini"), CallbackData: cbProviderPrefix + "gemini"}},
		{{Text: "📋 View All Models", CallbackData: cbViewModels}},
	}}
}

// providerModelsKeyboard lists selectable models for one provider,
// marking the active one. Telegram keyboards get unwieldy past a
// handful of rows, so only the first eight models are shown.
func (s *Service) providerModelsKeyboard(provider, currentModel string) *gotgbot.InlineKeyboardMarkup {
	models := s.openaiModels
	if provider == "gemini" {
		models = s.geminiModels
	}
	if len(models) > 8 {
		models = models[:8]
	}
	rows := make([][]gotgbot.InlineKeyboardButton, 0, len(models)+1)
	for _, m := range models {
		label := m
		if m == currentModel {
			label = "✅ " + m
		}
		rows = append(rows, []gotgbot.InlineKeyboardButton{
			{Text: label, CallbackData: cbModelPrefix + provider + "_" + m},
		})
	}
	rows = append(rows, []gotgbot.InlineKeyboardButton{{Text: "⬅️ Back", CallbackData: cbModels}})
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func withBackRow(markup *gotgbot.InlineKeyboardMarkup, target string) *gotgbot.InlineKeyboardMarkup {
	if markup == nil {
		markup = &gotgbot.InlineKeyboardMarkup{}
	}
	markup.InlineKeyboard = append(markup.InlineKeyboard, []gotgbot.InlineKeyboardButton{
		{Text: "⬅️ Back", CallbackData: target},
	})
	return markup
}

func (s *Service) userSettingsText(u *gotgbot.User) string {
	us, _ := s.store.GetUserSettings(context.Background(), u.Id)
	uname := u.Username
	if uname == "" {
		uname = "Not set"
	}
	return strings.Join([]string{
		"⚙️ **Your Settings**",
		"",
		fmt.Sprintf("**User ID:** `%d`", u.Id),
		fmt.Sprintf("**Username:** @%s", uname),
		"",
		"**AI Settings:**",
		fmt.Sprintf("• Provider: %s", strings.ToUpper(firstNonEmpty(us.Provider, s.defaults.Provider))),
		fmt.Sprintf("• OpenAI Model: %s", firstNonEmpty(us.OpenAIModel, s.defaults.OpenAIModel)),
		fmt.Sprintf("• Gemini Model: %s", firstNonEmpty(us.GeminiModel, s.defaults.GeminiModel)),
	}, "\n")
}

func (s *Service) groupSettingsText(chatID int64) string {
	gs, found := s.store.GetGroupSettings(context.Background(), chatID)
	aiEnabled, welcomeEnabled, adminOnly := true, true, false
	if found {
		aiEnabled, welcomeEnabled, adminOnly = gs.AIEnabled, gs.WelcomeEnabled, gs.AdminOnlyAI
	}
	check := func(v bool) string {
		if v {
			return "✅"
		}
		return "❌"
	}
	return strings.Join([]string{
		"",
		"",
		"**Group Settings:**",
		fmt.Sprintf("• AI Enabled: %s", check(aiEnabled)),
		fmt.Sprintf("• Admin Only AI: %s", check(adminOnly)),
		fmt.Sprintf("• Welcome Enabled: %s", check(welcomeEnabled)),
	}, "\n")
}

func (s *Service) usageStatsText(uid int64) (string, bool) {
	rows := s.store.UsageSummary(context.Background(), uid, 0)
	if len(rows) == 0 {
		return "", false
	}
	var totalRequests, totalTokens int64
	lines := []string{"📊 **Your Usage Statistics**", ""}
	for _, r := range rows {
		lines = append(lines,
			fmt.Sprintf("**%s - %s**", strings.ToUpper(r.Provider), r.Model),
			fmt.Sprintf("  • Requests: %d", r.Requests),
			fmt.Sprintf("  • Tokens: %d", r.TotalTokens),
			"")
		totalRequests += r.Requests
		totalTokens += r.TotalTokens
	}
	lines = append(lines,
		fmt.Sprintf("**Total Requests:** %d", totalRequests),
		fmt.Sprintf("**Total Tokens:** %d", totalTokens))
	return strings.Join(lines, "\n"), true
}

func (s *Service) projectsScreen(withBack bool) (string, *gotgbot.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📁 **%s's Projects**\n\n", s.creatorName)
	rows := make([][]gotgbot.InlineKeyboardButton, 0, len(s.projects)+1)
	for _, p := range s.projects {
		fmt.Fprintf(&sb, "**🔹 %s**\n%s\n\n", p.Name, p.Description)
		rows = append(rows, []gotgbot.InlineKeyboardButton{{Text: "🔗 " + p.Name, Url: p.URL}})
	}
	markup := &gotgbot.InlineKeyboardMarkup{InlineKeyboard: rows}
	if withBack {
		markup = withBackRow(markup, cbBackMain)
	}
	return sb.String(), markup
}

// projectFeatures carries the hand-written highlight lists for the
// per-project info commands.
var projectFeatures = map[string][]string{
	"Enhancify": {
		"Classic Revancify v1 UI with modern tweaks",
		"Cybernetic Green theme",
		"File manager-like selection interface",
		"Network acceleration for faster downloads",
		"Pre-release support (CLI, Patches, Options)",
		"Custom GitHub token support (5000/hr rate limit)",
		"Rish APK installation support",
		"Custom sources management (add/edit/delete)",
		"Custom keystore support",
		"Supports APK, APKM, XAPK file formats",
	},
	"Terminal Ex": {
		"Fork of termux-monet",
		"Extended terminal capabilities",
		"Advanced shell features",
		"Enhanced command execution",
		"Supports latest Android",
	},
	"Custom-Enhancify-aapt2-binary": {
		"Custom aapt2 modifications",
		"Optimized for Enhancify",
		"Enhanced resource compilation",
	},
}

var projectEmoji = map[string]string{
	"Enhancify":                     "📱",
	"Terminal Ex":                   "💻",
	"Custom-Enhancify-aapt2-binary": "🔧",
}

func (s *Service) projectDetailText(p config.Project) string {
	var sb strings.Builder
	emoji := projectEmoji[p.Name]
	if emoji == "" {
		emoji = "🔹"
	}
	fmt.Fprintf(&sb, "%s **%s**\n\n%s\n", emoji, p.Name, p.Description)
	if feats := projectFeatures[p.Name]; len(feats) > 0 {
		sb.WriteString("\n**Features:**\n")
		for _, f := range feats {
			fmt.Fprintf(&sb, "• %s\n", f)
		}
	}
	fmt.Fprintf(&sb, "\n**Repository:** [Click here](%s)\n\nCreated by **%s**", p.URL, s.creatorName)
	return sb.String()
}

func (s *Service) modelsListText() string {
	lines := []string{"📋 **Available AI Models**", "", "**🔷 OpenAI/ChatGPT:**"}
	for _, m := range s.openaiModels {
		lines = append(lines, "• "+m)
	}
	lines = append(lines, "", "**🔶 Google Gemini:**")
	for _, m := range s.geminiModels {
		lines = append(lines, "• "+m)
	}
	return strings.Join(lines, "\n")
}
