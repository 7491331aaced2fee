package providers

import "testing"

func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		msg  string
		kind ErrorKind
		ok   bool
	}{
		{"API_KEY_INVALID: the key is malformed", KindAuthInvalid, true},
		{"You exceeded your current quota", KindQuotaExceeded, true},
		{"Rate limit reached for requests", KindRateLimited, true},
		{"RESOURCE_EXHAUSTED: try later", KindRateLimited, true},
		{"INVALID_ARGUMENT: unknown field", KindInvalidArgument, true},
		{"model gpt-5000 does not exist", KindInvalidArgument, true},
		{"something rather odd happened", KindUnexpected, false},
	}
	for _, c := range cases {
		kind, ok := ClassifyMessage(c.msg)
		if kind != c.kind || ok != c.ok {
			t.Errorf("ClassifyMessage(%q) = %v/%v, want %v/%v", c.msg, kind, ok, c.kind, c.ok)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{401, KindAuthInvalid},
		{403, KindAuthInvalid},
		{429, KindRateLimited},
		{400, KindInvalidArgument},
		{404, KindInvalidArgument},
		{500, KindBackendFault},
		{503, KindBackendFault},
		{418, KindUnexpected},
	}
	for _, c := range cases {
		if got := ClassifyStatus(c.status); got != c.kind {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", c.status, got, c.kind)
		}
	}
}

func TestBoundHistory(t *testing.T) {
	turns := make([]Turn, 0, 15)
	for i := 0; i < 15; i++ {
		turns = append(turns, Turn{Role: "user", Content: string(rune('a' + i))})
	}
	bounded := BoundHistory(turns)
	if len(bounded) != HistoryLimit {
		t.Fatalf("expected %d turns, got %d", HistoryLimit, len(bounded))
	}
	if bounded[0].Content != turns[5].Content {
		t.Fatalf("expected oldest surviving turn %q, got %q", turns[5].Content, bounded[0].Content)
	}
	if got := BoundHistory(turns[:3]); len(got) != 3 {
		t.Fatalf("short history should pass through, got %d", len(got))
	}
}
