package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"docspace/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const maxTelegramMessageLen = 4096

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending safe message", sl.Err(err))
		}
	}
}

// Sanitize escapes MarkdownV2 reserved characters
func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*>~`"
	var sb strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

func (t *TgBot) isAdmin(chatId int64) bool {
	return t.adminIds[chatId]
}

// requireAdmin answers non-admins and reports whether the command may run
func (t *TgBot) requireAdmin(chatId int64) bool {
	if t.isAdmin(chatId) {
		return true
	}
	t.plainResponse(chatId, "Admin access required\\.")
	return false
}

// NotifyAdmins sends plain text to every configured admin. It satisfies
// the logger notifier so that error records reach the admins.
func (t *TgBot) NotifyAdmins(msg string) {
	for _, part := range splitMessage(Sanitize(msg), maxTelegramMessageLen) {
		for id := range t.adminIds {
			t.plainResponse(id, part)
		}
	}
}

func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// split at a newline when possible
		cutAt := maxLen
		nlIdx := strings.LastIndex(text[:maxLen], "\n")
		if nlIdx > 0 {
			cutAt = nlIdx + 1
		} else {
			cutAt = safeCut(text, maxLen)
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

// safeCut moves a cut back so it neither splits a UTF-8 sequence nor
// separates a MarkdownV2 escape from the character it escapes.
func safeCut(text string, cutAt int) int {
	for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
		cutAt--
	}
	slashes := 0
	for i := cutAt - 1; i >= 0 && text[i] == '\\'; i-- {
		slashes++
	}
	if slashes%2 == 1 {
		cutAt--
	}
	if cutAt <= 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cutAt
}

// reportError logs the failure and sends a neutral message to the user.
func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.Error("bot command failed",
		slog.String("command", command),
		slog.Int64("user_id", chatId),
		sl.Err(err),
	)
	t.plainResponse(chatId, fmt.Sprintf("Command `%s` failed\\. Please try again later\\.", Sanitize(command)))
}
