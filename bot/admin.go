package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"docspace/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

const (
	commandTimeout = 10 * time.Second
	trafficLimit   = 5
)

// invite generates a code: /invite [max_uses] [days]
func (t *TgBot) invite(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		return nil
	}

	req, err := parseInviteArgs(strings.Fields(ctx.EffectiveMessage.Text)[1:])
	if err != nil {
		t.plainResponse(chatId, Sanitize(err.Error())+"\nUsage: `/invite [max_uses] [days]`")
		return nil
	}

	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	code, err := t.core.GenerateInvite(c, chatUser(ctx.EffectiveUser), req)
	if err != nil {
		t.reportError(chatId, "/invite", err)
		return nil
	}
	t.plainResponse(chatId, formatCode(code, t.core.Now()))
	return nil
}

// codes lists the codes, newest first
func (t *TgBot) codes(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		return nil
	}
	for _, part := range splitMessage(formatCodes(t.core.Invites(), t.core.Now()), maxTelegramMessageLen) {
		t.plainResponse(chatId, part)
	}
	return nil
}

func (t *TgBot) stats(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		return nil
	}
	t.plainResponse(chatId, formatStats(t.core.InviteStats()))
	return nil
}

// deactivate accepts either the code id or the code itself
func (t *TgBot) deactivate(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Usage: `/deactivate <id|code>`")
		return nil
	}
	code, ok := findCode(t.core.Invites(), args[1])
	if !ok {
		t.plainResponse(chatId, "Invite code not found: "+Sanitize(args[1]))
		return nil
	}

	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := t.core.DeactivateInvite(c, code.Id); err != nil {
		t.reportError(chatId, "/deactivate", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Code `%s` deactivated\\.", Sanitize(code.Code)))
	return nil
}

// traffic summarizes the last N days: /traffic [days]
func (t *TgBot) traffic(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		return nil
	}

	days, err := parseDays(strings.Fields(ctx.EffectiveMessage.Text)[1:])
	if err != nil {
		t.plainResponse(chatId, Sanitize(err.Error())+"\nUsage: `/traffic [days]`")
		return nil
	}

	summary := t.core.AnalyticsSummary(days)
	pages := t.core.PopularPages(trafficLimit, days)
	countries := t.core.TopCountries(trafficLimit, days)
	t.plainResponse(chatId, formatTraffic(summary, pages, countries))
	return nil
}

// chatUser identifies a chat admin as the creator of a code
func chatUser(u *tgbotapi.User) *entity.User {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name = "@" + u.Username
	}
	return &entity.User{
		Username: "telegram:" + strconv.FormatInt(u.Id, 10),
		Name:     name,
		Role:     entity.RoleAdmin,
	}
}
