package storage

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type UserSettings struct {
	UserID      int64
	Username    string
	Provider    string
	OpenAIModel string
	GeminiModel string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type GroupSettings struct {
	ChatID         int64
	Title          string
	AIEnabled      bool
	Provider       string
	OpenAIModel    string
	GeminiModel    string
	WelcomeEnabled bool
	WelcomeMessage *string
	AdminOnlyAI    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserSettingsUpdate is a partial update: nil fields are left unchanged.
type UserSettingsUpdate struct {
	Provider    *string
	OpenAIModel *string
	GeminiModel *string
}

// GroupSettingsUpdate is a partial update: nil fields are left unchanged.
// WelcomeMessage is doubly optional; a non-nil pointer to nil clears it.
type GroupSettingsUpdate struct {
	AIEnabled      *bool
	Provider       *string
	OpenAIModel    *string
	GeminiModel    *string
	WelcomeEnabled *bool
	WelcomeMessage **string
	AdminOnlyAI    *bool
}

type ConversationTurn struct {
	ID        int64
	UserID    int64
	ChatID    int64
	MessageID int64
	Role      string
	Content   string
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Turn is the reduced shape handed to providers as conversation context.
type Turn struct {
	Role    string
	Content string
}

type UsageRecord struct {
	UserID     int64
	ChatID     int64
	Provider   string
	Model      string
	TokensUsed int64
}

type UsageSummaryRow struct {
	Provider    string
	Model       string
	Requests    int64
	TotalTokens int64
}

// Set builds a pointer for partial-update fields.
func Set[T any](v T) *T { return &v }
