package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Command lists for the Telegram menu button. Admin chats get their own
// list through BotCommandScopeChat.

var commandsAnonymous = []tgbotapi.BotCommand{
	{Command: "start", Description: "Show your chat id"},
	{Command: "help", Description: "Show available commands"},
}

var commandsAdmin = []tgbotapi.BotCommand{
	{Command: "invite", Description: "Generate invite code"},
	{Command: "codes", Description: "List invite codes"},
	{Command: "stats", Description: "Invite code statistics"},
	{Command: "deactivate", Description: "Deactivate an invite code"},
	{Command: "traffic", Description: "Documentation traffic summary"},
	{Command: "help", Description: "Show available commands"},
}

func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsAnonymous, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", "error", err)
	}
}

func (t *TgBot) syncAdminMenus() {
	for chatId := range t.adminIds {
		_, err := t.api.SetMyCommands(commandsAdmin, &tgbotapi.SetMyCommandsOpts{
			Scope: tgbotapi.BotCommandScopeChat{ChatId: chatId},
		})
		if err != nil {
			t.log.Warn("setting admin commands", "chat_id", chatId, "error", err)
		}
	}
}
