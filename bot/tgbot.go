// Package bot implements a Telegram bot for administering invite codes and
// reading traffic numbers from a chat.
//
// Layout:
//   - tgbot.go    TgBot struct, lifecycle (Start/Stop), Core interface
//   - commands.go common commands: /start, /help
//   - admin.go    admin commands: /invite, /codes, /stats, /deactivate, /traffic
//   - format.go   message builders and argument parsing
//   - menus.go    per-chat command menus via the BotCommandScope API
//   - helpers.go  Sanitize, plainResponse, NotifyAdmins, reportError
//
// Admins are the telegram ids listed in the config; nobody else can run
// admin commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docspace/entity"
	"docspace/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

// Core is the part of the service the bot drives.
type Core interface {
	Now() time.Time
	GenerateInvite(ctx context.Context, user *entity.User, req *entity.InviteRequest) (entity.InviteCode, error)
	Invites() []entity.InviteCode
	InviteStats() entity.InviteStats
	DeactivateInvite(ctx context.Context, id string) error
	AnalyticsSummary(days int) entity.AnalyticsSummary
	PopularPages(limit, days int) []entity.PopularPage
	TopCountries(limit, days int) []entity.CountryCount
}

type TgBot struct {
	log      *slog.Logger
	api      *tgbotapi.Bot
	core     Core
	adminIds map[int64]bool
	updater  *ext.Updater
}

func NewTgBot(apiKey string, adminIds []int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:      log.With(sl.Module("tgbot")),
		adminIds: make(map[int64]bool, len(adminIds)),
	}
	for _, id := range adminIds {
		tgBot.adminIds[id] = true
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// SetCore connects the service; the bot can notify admins before it is set
// but cannot answer commands.
func (t *TgBot) SetCore(core Core) {
	t.core = core
}

// Start polls for updates and blocks until Stop is called.
func (t *TgBot) Start() error {
	if t.core == nil {
		return fmt.Errorf("core is not set")
	}
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	dispatcher.AddHandler(handlers.NewCommand("invite", t.invite))
	dispatcher.AddHandler(handlers.NewCommand("codes", t.codes))
	dispatcher.AddHandler(handlers.NewCommand("stats", t.stats))
	dispatcher.AddHandler(handlers.NewCommand("deactivate", t.deactivate))
	dispatcher.AddHandler(handlers.NewCommand("traffic", t.traffic))

	t.setDefaultCommands()
	t.syncAdminMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}
