// Package moderation wraps the Telegram group administration calls
// behind pass/fail operations with uniform precondition checks.
package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

// Ops performs group administration actions. Every action verifies that
// both the bot and the calling user hold admin rights in the chat and
// refuses to act on another administrator.
type Ops struct {
	bot *gotgbot.Bot
	log zerolog.Logger
}

func New(bot *gotgbot.Bot, log zerolog.Logger) *Ops {
	return &Ops{bot: bot, log: log.With().Str("component", "moderation").Logger()}
}

func (o *Ops) memberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	member, err := o.bot.GetChatMemberWithContext(ctx, chatID, userID, nil)
	if err != nil {
		return "", err
	}
	return member.GetStatus(), nil
}

func isAdminStatus(status string) bool {
	return status == "administrator" || status == "creator"
}

// guard runs the bot-admin and caller-admin checks common to every
// action. It returns a user-facing refusal message when a check fails.
func (o *Ops) guard(ctx context.Context, chatID, actorID int64, action string) (ok bool, msg string) {
	botStatus, err := o.memberStatus(ctx, chatID, o.bot.Id)
	if err != nil || !isAdminStatus(botStatus) {
		return false, fmt.Sprintf("❌ I need admin privileges to %s.", action)
	}
	actorStatus, err := o.memberStatus(ctx, chatID, actorID)
	if err != nil || !isAdminStatus(actorStatus) {
		return false, "❌ You need admin privileges to use this command."
	}
	return true, ""
}

// guardTarget extends guard with the target-is-not-admin check used by
// actions that remove or restrict a member.
func (o *Ops) guardTarget(ctx context.Context, chatID, actorID, targetID int64, action, verb string) (ok bool, msg string) {
	if ok, msg = o.guard(ctx, chatID, actorID, action); !ok {
		return ok, msg
	}
	status, err := o.memberStatus(ctx, chatID, targetID)
	if err == nil && isAdminStatus(status) {
		return false, fmt.Sprintf("❌ Cannot %s administrators.", verb)
	}
	return true, ""
}

// Ban removes a member from the group permanently.
func (o *Ops) Ban(ctx context.Context, chatID, actorID, targetID int64, reason string) (bool, string) {
	if ok, msg := o.guardTarget(ctx, chatID, actorID, targetID, "ban members", "ban"); !ok {
		return false, msg
	}
	if _, err := o.bot.BanChatMemberWithContext(ctx, chatID, targetID, nil); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("ban failed")
		return false, fmt.Sprintf("❌ Failed to ban member: %v", err)
	}
	text := "🔨 User has been banned from the group."
	if reason != "" {
		text += "\nReason: " + reason
	}
	return true, text
}

// Unban lifts a ban so the user can rejoin.
func (o *Ops) Unban(ctx context.Context, chatID, actorID, targetID int64) (bool, string) {
	if ok, msg := o.guard(ctx, chatID, actorID, "unban members"); !ok {
		return false, msg
	}
	if _, err := o.bot.UnbanChatMemberWithContext(ctx, chatID, targetID, nil); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("unban failed")
		return false, fmt.Sprintf("❌ Failed to unban member: %v", err)
	}
	return true, "✅ User has been unbanned. They can now rejoin the group."
}

// Kick removes a member without a lasting ban (ban then immediate unban).
func (o *Ops) Kick(ctx context.Context, chatID, actorID, targetID int64, reason string) (bool, string) {
	if ok, msg := o.guardTarget(ctx, chatID, actorID, targetID, "kick members", "kick"); !ok {
		return false, msg
	}
	if _, err := o.bot.BanChatMemberWithContext(ctx, chatID, targetID, nil); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("kick failed")
		return false, fmt.Sprintf("❌ Failed to kick member: %v", err)
	}
	if _, err := o.bot.UnbanChatMemberWithContext(ctx, chatID, targetID, nil); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("kick unban failed")
	}
	text := "✅ User has been kicked from the group."
	if reason != "" {
		text += "\nReason: " + reason
	}
	return true, text
}

// Mute restricts a member from sending messages. A zero duration mutes
// indefinitely.
func (o *Ops) Mute(ctx context.Context, chatID, actorID, targetID int64, duration time.Duration) (bool, string) {
	if ok, msg := o.guardTarget(ctx, chatID, actorID, targetID, "mute members", "mute"); !ok {
		return false, msg
	}
	opts := &gotgbot.RestrictChatMemberOpts{}
	if duration > 0 {
		opts.UntilDate = time.Now().Add(duration).Unix()
	}
	perms := gotgbot.ChatPermissions{CanSendMessages: false}
	if _, err := o.bot.RestrictChatMemberWithContext(ctx, chatID, targetID, perms, opts); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("mute failed")
		return false, fmt.Sprintf("❌ Failed to mute member: %v", err)
	}
	return true, fmt.Sprintf("🔇 User has been muted%s.", muteSuffix(duration))
}

func muteSuffix(d time.Duration) string {
	switch {
	case d <= 0:
		return " indefinitely"
	case d >= time.Minute:
		return fmt.Sprintf(" for %d minutes", int(d.Minutes()))
	default:
		return fmt.Sprintf(" for %d seconds", int(d.Seconds()))
	}
}

// Unmute restores a member's default send permissions.
func (o *Ops) Unmute(ctx context.Context, chatID, actorID, targetID int64) (bool, string) {
	if ok, msg := o.guard(ctx, chatID, actorID, "unmute members"); !ok {
		return false, msg
	}
	perms := gotgbot.ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
	}
	if _, err := o.bot.RestrictChatMemberWithContext(ctx, chatID, targetID, perms, nil); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("unmute failed")
		return false, fmt.Sprintf("❌ Failed to unmute member: %v", err)
	}
	return true, "🔊 User has been unmuted."
}

// Promote grants a member the standard admin right set, with an
// optional custom title.
func (o *Ops) Promote(ctx context.Context, chatID, actorID, targetID int64, title string) (bool, string) {
	if ok, msg := o.guard(ctx, chatID, actorID, "promote members"); !ok {
		return false, msg
	}
	opts := &gotgbot.PromoteChatMemberOpts{
		CanChangeInfo:       true,
		CanDeleteMessages:   true,
		CanInviteUsers:      true,
		CanRestrictMembers:  true,
		CanPinMessages:      true,
		CanManageVideoChats: true,
	}
	if _, err := o.bot.PromoteChatMemberWithContext(ctx, chatID, targetID, opts); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("promote failed")
		return false, fmt.Sprintf("❌ Failed to promote member: %v", err)
	}
	if title != "" {
		if _, err := o.bot.SetChatAdministratorCustomTitleWithContext(ctx, chatID, targetID, title, nil); err != nil {
			o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("custom title failed")
		}
	}
	return true, "👑 User has been promoted to admin."
}

// Demote strips a member's admin rights.
func (o *Ops) Demote(ctx context.Context, chatID, actorID, targetID int64) (bool, string) {
	if ok, msg := o.guard(ctx, chatID, actorID, "demote members"); !ok {
		return false, msg
	}
	opts := &gotgbot.PromoteChatMemberOpts{}
	if _, err := o.bot.PromoteChatMemberWithContext(ctx, chatID, targetID, opts); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Int64("target", targetID).Msg("demote failed")
		return false, fmt.Sprintf("❌ Failed to demote member: %v", err)
	}
	return true, "📉 User has been demoted from admin."
}

// Pin pins a message in the chat.
func (o *Ops) Pin(ctx context.Context, chatID, actorID, messageID int64, notify bool) (bool, string) {
	if ok, msg := o.guard(ctx, chatID, actorID, "pin messages"); !ok {
		return false, msg
	}
	opts := &gotgbot.PinChatMessageOpts{DisableNotification: !notify}
	if _, err := o.bot.PinChatMessageWithContext(ctx, chatID, messageID, opts); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("pin failed")
		return false, fmt.Sprintf("❌ Failed to pin message: %v", err)
	}
	return true, "📌 Message has been pinned."
}

// Unpin unpins one message, or every pinned message when messageID is
// zero.
func (o *Ops) Unpin(ctx context.Context, chatID, actorID, messageID int64) (bool, string) {
	if ok, msg := o.guard(ctx, chatID, actorID, "unpin messages"); !ok {
		return false, msg
	}
	if messageID != 0 {
		opts := &gotgbot.UnpinChatMessageOpts{MessageId: &messageID}
		if _, err := o.bot.UnpinChatMessageWithContext(ctx, chatID, opts); err != nil {
			o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("unpin failed")
			return false, fmt.Sprintf("❌ Failed to unpin message: %v", err)
		}
		return true, "📌 Message has been unpinned."
	}
	if _, err := o.bot.UnpinAllChatMessagesWithContext(ctx, chatID, nil); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("unpin all failed")
		return false, fmt.Sprintf("❌ Failed to unpin message: %v", err)
	}
	return true, "📌 All messages have been unpinned."
}

// ChatInfo describes a chat for the /chatinfo command.
type ChatInfo struct {
	ID          int64
	Title       string
	Type        string
	Description string
	MemberCount int64
	InviteLink  string
}

func (o *Ops) ChatInfo(ctx context.Context, chatID int64) (ChatInfo, error) {
	chat, err := o.bot.GetChatWithContext(ctx, chatID, nil)
	if err != nil {
		return ChatInfo{}, err
	}
	count, err := o.bot.GetChatMemberCountWithContext(ctx, chatID, nil)
	if err != nil {
		return ChatInfo{}, err
	}
	return ChatInfo{
		ID:          chat.Id,
		Title:       chat.Title,
		Type:        chat.Type,
		Description: chat.Description,
		MemberCount: count,
		InviteLink:  chat.InviteLink,
	}, nil
}

// ParseDuration reads compact duration arguments like "30s", "5m",
// "2h" or "1d". A bare number is taken as minutes.
func ParseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}
	unit := time.Minute
	switch s[len(s)-1] {
	case 's':
		unit, s = time.Second, s[:len(s)-1]
	case 'm':
		unit, s = time.Minute, s[:len(s)-1]
	case 'h':
		unit, s = time.Hour, s[:len(s)-1]
	case 'd':
		unit, s = 24*time.Hour, s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
