package telegram

import "testing"

func TestCommandRemainder(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/nerd what is aapt2?", "what is aapt2?"},
		{"/nerd", ""},
		{"/nerd ", ""},
		{"  /ban 12345 spamming links  ", "12345 spamming links"},
	}
	for _, tc := range cases {
		if got := commandRemainder(tc.in); got != tc.want {
			t.Errorf("commandRemainder(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitFirstWord(t *testing.T) {
	cases := []struct {
		in    string
		first string
		rest  string
	}{
		{"12345 spamming links", "12345", "spamming links"},
		{"12345", "12345", ""},
		{"  12345   spam  ", "12345", "spam"},
		{"", "", ""},
	}
	for _, tc := range cases {
		first, rest := splitFirstWord(tc.in)
		if first != tc.first || rest != tc.rest {
			t.Errorf("splitFirstWord(%q) = %q, %q; want %q, %q", tc.in, first, rest, tc.first, tc.rest)
		}
	}
}

func TestParseProviderArg(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"openai", "openai", true},
		{"ChatGPT", "openai", true},
		{"GEMINI", "gemini", true},
		{"claude", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseProviderArg(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseProviderArg(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSplitModelData(t *testing.T) {
	cases := []struct {
		in       string
		provider string
		model    string
	}{
		{"openai_gpt-4o", "openai", "gpt-4o"},
		{"gemini_gemini-1.5-pro", "gemini", "gemini-1.5-pro"},
		{"openai_o1_preview", "openai", "o1_preview"},
		{"openai_", "", ""},
		{"_gpt-4o", "", ""},
		{"gpt-4o", "", ""},
	}
	for _, tc := range cases {
		provider, model := splitModelData(tc.in)
		if provider != tc.provider || model != tc.model {
			t.Errorf("splitModelData(%q) = %q, %q; want %q, %q", tc.in, provider, model, tc.provider, tc.model)
		}
	}
}
