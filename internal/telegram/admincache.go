package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nerdbot/internal/storage"
)

// AdminCache answers admin-rights lookups from redis, falling back to
// the Telegram API and writing the result through to both redis and
// the database cache table.
type AdminCache struct {
	bot   *gotgbot.Bot
	redis *redis.Client
	store *storage.Store
	ttl   time.Duration
	log   zerolog.Logger
}

func NewAdminCache(bot *gotgbot.Bot, rdb *redis.Client, store *storage.Store, ttl time.Duration, log zerolog.Logger) *AdminCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AdminCache{bot: bot, redis: rdb, store: store, ttl: ttl, log: log}
}

func (c *AdminCache) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	cacheKey := fmt.Sprintf("nerdbot:admin:%d:%d", chatID, userID)
	if v, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
		return v == "1", nil
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Msg("failed to read admin cache")
	}

	member, err := c.bot.GetChatMemberWithContext(ctx, chatID, userID, nil)
	if err != nil {
		// Telegram unreachable; the database copy may be stale but is
		// better than refusing outright.
		if admin, found := c.store.GetAdminCache(ctx, chatID, userID); found {
			return admin, nil
		}
		return false, err
	}
	status := member.GetStatus()
	admin := status == "administrator" || status == "creator"

	value := "0"
	if admin {
		value = "1"
	}
	_ = c.redis.Set(ctx, cacheKey, value, c.ttl).Err()
	c.store.SetAdminCache(ctx, chatID, userID, admin)
	return admin, nil
}
