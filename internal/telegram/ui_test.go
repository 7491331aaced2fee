package telegram

import (
	"strings"
	"testing"

	"nerdbot/internal/config"
)

func TestProviderModelsKeyboardCapsAtEight(t *testing.T) {
	s := &Service{openaiModels: []string{
		"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9", "m10",
	}}

	markup := s.providerModelsKeyboard("openai", "m3")
	// 8 model rows plus the back row.
	if got := len(markup.InlineKeyboard); got != 9 {
		t.Fatalf("expected 9 rows, got %d", got)
	}
	if markup.InlineKeyboard[2][0].Text != "✅ m3" {
		t.Fatalf("active model must be marked, got %q", markup.InlineKeyboard[2][0].Text)
	}
	if markup.InlineKeyboard[0][0].CallbackData != cbModelPrefix+"openai_m1" {
		t.Fatalf("unexpected callback data %q", markup.InlineKeyboard[0][0].CallbackData)
	}
	if back := markup.InlineKeyboard[8][0]; back.CallbackData != cbModels {
		t.Fatalf("last row must navigate back, got %q", back.CallbackData)
	}
}

func TestModelMenuKeyboardMarksCurrentProvider(t *testing.T) {
	s := &Service{}

	markup := s.modelMenuKeyboard("gemini")
	if got := markup.InlineKeyboard[0][0].Text; strings.HasPrefix(got, "✅") {
		t.Fatalf("openai must not be marked, got %q", got)
	}
	if got := markup.InlineKeyboard[1][0].Text; !strings.HasPrefix(got, "✅") {
		t.Fatalf("gemini must be marked, got %q", got)
	}
}

func TestProjectDetailText(t *testing.T) {
	s := &Service{creatorName: "Graywizard"}
	p := config.Project{
		Name:        "Terminal Ex",
		Description: "Extended terminal emulator",
		URL:         "https://example.com/terminalex",
	}

	text := s.projectDetailText(p)
	if !strings.HasPrefix(text, "💻 **Terminal Ex**") {
		t.Fatalf("expected project emoji header, got %q", text)
	}
	if !strings.Contains(text, "Fork of termux-monet") {
		t.Fatalf("expected feature list in %q", text)
	}
	if !strings.Contains(text, "[Click here](https://example.com/terminalex)") {
		t.Fatalf("expected repository link in %q", text)
	}

	// Unknown projects fall back to the generic bullet.
	text = s.projectDetailText(config.Project{Name: "Mystery", Description: "?", URL: "https://example.com"})
	if !strings.HasPrefix(text, "🔹 **Mystery**") {
		t.Fatalf("expected fallback emoji, got %q", text)
	}
	if strings.Contains(text, "**Features:**") {
		t.Fatalf("unknown project must not list features")
	}
}

func TestModelsListText(t *testing.T) {
	s := &Service{
		openaiModels: []string{"gpt-4o", "gpt-4o-mini"},
		geminiModels: []string{"gemini-1.5-pro"},
	}

	text := s.modelsListText()
	for _, want := range []string{"• gpt-4o", "• gpt-4o-mini", "• gemini-1.5-pro"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in models list:\n%s", want, text)
		}
	}
}
