package bot

import (
	"fmt"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// start tells the user their chat id so it can be added to telegram.admin_ids
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if t.isAdmin(chatId) {
		t.plainResponse(chatId, "Welcome back\\. Use /help to see admin commands\\.")
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Your chat id is `%d`\\. Ask an administrator to grant access\\.", chatId))
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	commands := commandsAnonymous
	if t.isAdmin(chatId) {
		commands = commandsAdmin
	}
	t.plainResponse(chatId, helpText(commands))
	return nil
}
