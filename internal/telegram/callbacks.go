package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"nerdbot/internal/storage"
)

func (s *Service) onCallback(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx == nil || ctx.CallbackQuery == nil {
		return nil
	}
	data := strings.TrimSpace(ctx.CallbackQuery.Data)

	switch {
	case data == cbBackMain:
		s.answerCallback(b, ctx, "", false)
		return s.editOrReply(ctx, b, s.mainMenuText(), s.mainMenuKeyboard())

	case data == cbProjects:
		s.answerCallback(b, ctx, "", false)
		text, markup := s.projectsScreen(true)
		return s.editOrReply(ctx, b, text, markup)

	case data == cbSettings:
		s.answerCallback(b, ctx, "", false)
		if ctx.EffectiveUser == nil {
			return nil
		}
		markup := withBackRow(s.settingsKeyboard(), cbBackMain)
		return s.editOrReply(ctx, b, s.userSettingsText(ctx.EffectiveUser), markup)

	case data == cbModels:
		s.answerCallback(b, ctx, "", false)
		return s.showModelMenu(b, ctx)

	case data == cbHelp:
		s.answerCallback(b, ctx, "", false)
		markup := withBackRow(&gotgbot.InlineKeyboardMarkup{}, cbBackMain)
		return s.editOrReply(ctx, b, s.quickHelpText(), markup)

	case data == cbMyStats:
		s.answerCallback(b, ctx, "", false)
		if ctx.EffectiveUser == nil {
			return nil
		}
		text, ok := s.usageStatsText(ctx.EffectiveUser.Id)
		if !ok {
			text = "📊 No usage statistics yet!"
		}
		markup := withBackRow(&gotgbot.InlineKeyboardMarkup{}, cbSettings)
		return s.editOrReply(ctx, b, text, markup)

	case data == cbViewModels:
		s.answerCallback(b, ctx, "", false)
		markup := withBackRow(&gotgbot.InlineKeyboardMarkup{}, cbModels)
		return s.editOrReply(ctx, b, s.modelsListText(), markup)

	case strings.HasPrefix(data, cbModelPrefix):
		return s.onModelSelect(b, ctx, strings.TrimPrefix(data, cbModelPrefix))

	case strings.HasPrefix(data, cbProviderPrefix):
		s.answerCallback(b, ctx, "", false)
		return s.onProviderSelect(b, ctx, strings.TrimPrefix(data, cbProviderPrefix))

	default:
		s.answerCallback(b, ctx, fmt.Sprintf("Unknown action: %s", data), true)
		return nil
	}
}

func (s *Service) showModelMenu(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	provider, _ := s.userProviderModel(ctx.EffectiveUser.Id)
	text := fmt.Sprintf("🤖 **AI Model Settings**\n\n**Current Provider:** %s\n\nSelect a provider:", strings.ToUpper(provider))
	markup := withBackRow(s.modelMenuKeyboard(provider), cbBackMain)
	return s.editOrReply(ctx, b, text, markup)
}

// onProviderSelect records the provider choice and renders the model
// list for it.
func (s *Service) onProviderSelect(b *gotgbot.Bot, ctx *ext.Context, provider string) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	name, ok := parseProviderArg(provider)
	if !ok {
		s.answerCallback(b, ctx, "Unknown provider.", true)
		return nil
	}
	uid := ctx.EffectiveUser.Id
	s.store.SetUserSettings(context.Background(), uid, username(ctx), storage.UserSettingsUpdate{
		Provider: storage.Set(name),
	})
	_, current := s.userProviderModel(uid)
	text := fmt.Sprintf("🤖 **%s Models**\n\nSelect a model:", strings.ToUpper(name))
	return s.editOrReply(ctx, b, text, s.providerModelsKeyboard(name, current))
}

func (s *Service) onModelSelect(b *gotgbot.Bot, ctx *ext.Context, data string) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	provider, model := splitModelData(data)
	if provider == "" || model == "" {
		s.answerCallback(b, ctx, "Unknown model.", true)
		return nil
	}
	uid := ctx.EffectiveUser.Id
	upd := storage.UserSettingsUpdate{Provider: storage.Set(provider)}
	if provider == "openai" {
		upd.OpenAIModel = storage.Set(model)
	} else {
		upd.GeminiModel = storage.Set(model)
	}
	s.store.SetUserSettings(context.Background(), uid, username(ctx), upd)

	s.answerCallback(b, ctx, "✅ Model set to "+model, false)
	return s.onProviderSelect(b, ctx, provider)
}

// splitModelData splits "openai_gpt-4o" into provider and model. Model
// names may contain underscores, so only the first separator counts.
func splitModelData(data string) (provider, model string) {
	idx := strings.IndexByte(data, '_')
	if idx <= 0 || idx == len(data)-1 {
		return "", ""
	}
	return data[:idx], data[idx+1:]
}

func (s *Service) answerCallback(b *gotgbot.Bot, ctx *ext.Context, text string, alert bool) {
	if ctx == nil || ctx.CallbackQuery == nil {
		return
	}
	opts := &gotgbot.AnswerCallbackQueryOpts{ShowAlert: alert}
	if text != "" {
		opts.Text = text
	}
	_, _ = b.AnswerCallbackQuery(ctx.CallbackQuery.Id, opts)
}

func (s *Service) editOrReply(ctx *ext.Context, b *gotgbot.Bot, text string, markup *gotgbot.InlineKeyboardMarkup) error {
	if ctx != nil && ctx.CallbackQuery != nil && ctx.CallbackQuery.Message != nil {
		opts := &gotgbot.EditMessageTextOpts{ParseMode: "Markdown"}
		if markup != nil {
			opts.ReplyMarkup = *markup
		}
		_, _, err := ctx.CallbackQuery.Message.EditText(b, text, opts)
		if err == nil {
			return nil
		}
		if strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
			return nil
		}
		// Fall back to a fresh message if the edit failed.
	}
	return s.replyMarkdown(ctx, b, text, markup)
}
