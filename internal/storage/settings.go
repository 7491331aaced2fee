package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// GetUserSettings returns the stored settings for a user. An absent row and
// a storage fault both come back as found=false; faults are logged here so
// settings reads never block the request path.
func (s *Store) GetUserSettings(ctx context.Context, userID int64) (UserSettings, bool) {
	q := s.sql.Select("user_id", "username", "ai_provider", "openai_model", "gemini_model", "created_at", "updated_at").
		From("user_settings").
		Where(sq.Eq{"user_id": userID})
	query, args, err := q.ToSql()
	if err != nil {
		s.log.Error().Err(err).Msg("build user settings query")
		return UserSettings{}, false
	}

	var u UserSettings
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&u.UserID, &u.Username, &u.Provider, &u.OpenAIModel, &u.GeminiModel, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("get user settings")
		}
		return UserSettings{}, false
	}
	return u, true
}

// SetUserSettings upserts a user row, changing only the supplied fields.
// An empty update still succeeds (touches updated_at on an existing row).
func (s *Store) SetUserSettings(ctx context.Context, userID int64, username string, upd UserSettingsUpdate) {
	if _, found := s.GetUserSettings(ctx, userID); found {
		q := s.sql.Update("user_settings").
			Set("updated_at", nowExpr(s.driver)).
			Where(sq.Eq{"user_id": userID})
		if username != "" {
			q = q.Set("username", username)
		}
		if upd.Provider != nil {
			q = q.Set("ai_provider", *upd.Provider)
		}
		if upd.OpenAIModel != nil {
			q = q.Set("openai_model", *upd.OpenAIModel)
		}
		if upd.GeminiModel != nil {
			q = q.Set("gemini_model", *upd.GeminiModel)
		}
		s.exec(ctx, q, "update user settings")
		return
	}

	cols := []string{"user_id", "username"}
	vals := []any{userID, username}
	if upd.Provider != nil {
		cols, vals = append(cols, "ai_provider"), append(vals, *upd.Provider)
	}
	if upd.OpenAIModel != nil {
		cols, vals = append(cols, "openai_model"), append(vals, *upd.OpenAIModel)
	}
	if upd.GeminiModel != nil {
		cols, vals = append(cols, "gemini_model"), append(vals, *upd.GeminiModel)
	}
	s.exec(ctx, s.sql.Insert("user_settings").Columns(cols...).Values(vals...), "insert user settings")
}

func (s *Store) GetGroupSettings(ctx context.Context, chatID int64) (GroupSettings, bool) {
	q := s.sql.Select("chat_id", "chat_title", "ai_enabled", "ai_provider", "openai_model", "gemini_model",
		"welcome_enabled", "welcome_message", "admin_only_ai", "created_at", "updated_at").
		From("group_settings").
		Where(sq.Eq{"chat_id": chatID})
	query, args, err := q.ToSql()
	if err != nil {
		s.log.Error().Err(err).Msg("build group settings query")
		return GroupSettings{}, false
	}

	var g GroupSettings
	var welcome sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&g.ChatID, &g.Title, &g.AIEnabled, &g.Provider, &g.OpenAIModel, &g.GeminiModel,
		&g.WelcomeEnabled, &welcome, &g.AdminOnlyAI, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error().Err(err).Int64("chat_id", chatID).Msg("get group settings")
		}
		return GroupSettings{}, false
	}
	if welcome.Valid {
		g.WelcomeMessage = &welcome.String
	}
	return g, true
}

func (s *Store) SetGroupSettings(ctx context.Context, chatID int64, title string, upd GroupSettingsUpdate) {
	if _, found := s.GetGroupSettings(ctx, chatID); found {
		q := s.sql.Update("group_settings").
			Set("updated_at", nowExpr(s.driver)).
			Where(sq.Eq{"chat_id": chatID})
		if title != "" {
			q = q.Set("chat_title", title)
		}
		if upd.AIEnabled != nil {
			q = q.Set("ai_enabled", *upd.AIEnabled)
		}
		if upd.Provider != nil {
			q = q.Set("ai_provider", *upd.Provider)
		}
		if upd.OpenAIModel != nil {
			q = q.Set("openai_model", *upd.OpenAIModel)
		}
		if upd.GeminiModel != nil {
			q = q.Set("gemini_model", *upd.GeminiModel)
		}
		if upd.WelcomeEnabled != nil {
			q = q.Set("welcome_enabled", *upd.WelcomeEnabled)
		}
		if upd.WelcomeMessage != nil {
			q = q.Set("welcome_message", nullable(*upd.WelcomeMessage))
		}
		if upd.AdminOnlyAI != nil {
			q = q.Set("admin_only_ai", *upd.AdminOnlyAI)
		}
		s.exec(ctx, q, "update group settings")
		return
	}

	cols := []string{"chat_id", "chat_title"}
	vals := []any{chatID, title}
	if upd.AIEnabled != nil {
		cols, vals = append(cols, "ai_enabled"), append(vals, *upd.AIEnabled)
	}
	if upd.Provider != nil {
		cols, vals = append(cols, "ai_provider"), append(vals, *upd.Provider)
	}
	if upd.OpenAIModel != nil {
		cols, vals = append(cols, "openai_model"), append(vals, *upd.OpenAIModel)
	}
	if upd.GeminiModel != nil {
		cols, vals = append(cols, "gemini_model"), append(vals, *upd.GeminiModel)
	}
	if upd.WelcomeEnabled != nil {
		cols, vals = append(cols, "welcome_enabled"), append(vals, *upd.WelcomeEnabled)
	}
	if upd.WelcomeMessage != nil {
		cols, vals = append(cols, "welcome_message"), append(vals, nullable(*upd.WelcomeMessage))
	}
	if upd.AdminOnlyAI != nil {
		cols, vals = append(cols, "admin_only_ai"), append(vals, *upd.AdminOnlyAI)
	}
	s.exec(ctx, s.sql.Insert("group_settings").Columns(cols...).Values(vals...), "insert group settings")
}

func (s *Store) SetAdminCache(ctx context.Context, chatID, userID int64, isAdmin bool) {
	q := s.sql.Insert("chat_admin_cache").
		Columns("chat_id", "user_id", "is_admin", "updated_at").
		Values(chatID, userID, isAdmin, nowExpr(s.driver)).
		Suffix("ON CONFLICT(chat_id, user_id) DO UPDATE SET is_admin=excluded.is_admin, updated_at=excluded.updated_at")
	s.exec(ctx, q, "set admin cache")
}

func (s *Store) GetAdminCache(ctx context.Context, chatID, userID int64) (isAdmin bool, found bool) {
	q := s.sql.Select("is_admin").
		From("chat_admin_cache").
		Where(sq.Eq{"chat_id": chatID, "user_id": userID})
	query, args, err := q.ToSql()
	if err != nil {
		s.log.Error().Err(err).Msg("build admin cache query")
		return false, false
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&isAdmin); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error().Err(err).Msg("get admin cache")
		}
		return false, false
	}
	return isAdmin, true
}

func (s *Store) exec(ctx context.Context, q sq.Sqlizer, op string) {
	query, args, err := q.ToSql()
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("build query")
		return
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("exec query")
	}
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
