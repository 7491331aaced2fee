package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// AppendTurn writes one conversation turn. Storage faults are logged and
// dropped: losing a history line must not break the response path.
func (s *Store) AppendTurn(ctx context.Context, t ConversationTurn) {
	if t.Role != RoleUser && t.Role != RoleAssistant {
		t.Role = RoleUser
	}
	q := s.sql.Insert("chat_history").
		Columns("user_id", "chat_id", "message_id", "role", "content", "ai_provider", "model").
		Values(t.UserID, t.ChatID, t.MessageID, t.Role, t.Content, t.Provider, t.Model)
	s.exec(ctx, q, "append turn")
}

// RecentHistory returns at most limit turns for the chat in chronological
// order: the newest rows are selected, then reversed oldest-first.
func (s *Store) RecentHistory(ctx context.Context, chatID int64, limit int) []Turn {
	if limit <= 0 {
		return nil
	}
	q := s.sql.Select("role", "content").
		From("chat_history").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("id DESC").
		Limit(uint64(limit))
	query, args, err := q.ToSql()
	if err != nil {
		s.log.Error().Err(err).Msg("build recent history query")
		return nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("recent history")
		return nil
	}
	defer rows.Close()

	newestFirst := make([]Turn, 0, limit)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			s.log.Error().Err(err).Msg("scan history row")
			return nil
		}
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("iterate history rows")
		return nil
	}

	out := make([]Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out
}

// ClearHistory deletes the chat's turns, optionally scoped to one user
// (userID 0 clears the whole chat).
func (s *Store) ClearHistory(ctx context.Context, chatID, userID int64) {
	where := sq.Eq{"chat_id": chatID}
	if userID != 0 {
		where["user_id"] = userID
	}
	s.exec(ctx, s.sql.Delete("chat_history").Where(where), "clear history")
}

func (s *Store) RecordUsage(ctx context.Context, u UsageRecord) {
	q := s.sql.Insert("usage_stats").
		Columns("user_id", "chat_id", "ai_provider", "model", "tokens_used").
		Values(u.UserID, u.ChatID, u.Provider, u.Model, u.TokensUsed)
	s.exec(ctx, q, "record usage")
}

// UsageSummary aggregates completed calls grouped by provider+model,
// filtered by whichever identifiers are non-zero (neither means global).
func (s *Store) UsageSummary(ctx context.Context, userID, chatID int64) []UsageSummaryRow {
	q := s.sql.Select("ai_provider", "model", "COUNT(*)", "COALESCE(SUM(tokens_used), 0)").
		From("usage_stats").
		GroupBy("ai_provider", "model").
		OrderBy("ai_provider", "model")
	if userID != 0 {
		q = q.Where(sq.Eq{"user_id": userID})
	}
	if chatID != 0 {
		q = q.Where(sq.Eq{"chat_id": chatID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		s.log.Error().Err(err).Msg("build usage summary query")
		return nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Msg("usage summary")
		return nil
	}
	defer rows.Close()

	out := make([]UsageSummaryRow, 0)
	for rows.Next() {
		var r UsageSummaryRow
		if err := rows.Scan(&r.Provider, &r.Model, &r.Requests, &r.TotalTokens); err != nil {
			s.log.Error().Err(err).Msg("scan usage row")
			return nil
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("iterate usage rows")
		return nil
	}
	return out
}
