package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docspace/bot"
	"docspace/impl/auth"
	"docspace/impl/core"
	"docspace/internal/analytics"
	"docspace/internal/config"
	"docspace/internal/database"
	"docspace/internal/http-server/api"
	mwmetrics "docspace/internal/http-server/middleware/metrics"
	"docspace/internal/invites"
	"docspace/internal/metrics"
	"docspace/lib/clock"
	"docspace/lib/logger"
	"docspace/lib/sl"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)
	lg.Info("starting docspace", slog.String("config", *configPath), slog.String("env", conf.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, conf.Telegram.AdminIds, lg)
		if err != nil {
			lg.Error("telegram bot", sl.Err(err))
		} else {
			var level slog.Level
			if err = level.UnmarshalText([]byte(conf.Telegram.LogLevel)); err != nil {
				level = slog.LevelError
			}
			lg = logger.WithTelegram(lg, tgBot, level)
		}
	}

	store, err := database.NewStore(ctx, conf)
	if err != nil {
		lg.Error("storage connect", sl.Err(err))
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
		lg.Info("snapshot storage connected", slog.String("driver", conf.Storage.Driver))
	}

	clk := clock.System{}
	registry := invites.New(clk, invites.Config{
		CodeLength: conf.Invite.CodeLength,
		Attempts:   conf.Invite.GenerateAttempts,
	})
	handler := core.New(registry, analytics.New(clk), clk, lg)
	handler.SetStore(store)
	handler.SetOptions(core.Options{
		DefaultDays:   conf.Analytics.DefaultDays,
		RetentionDays: conf.Analytics.RetentionDays,
		SaveInterval:  time.Duration(conf.Storage.SaveIntervalSec) * time.Second,
		PurgeInterval: time.Duration(conf.Analytics.PurgeIntervalMin) * time.Minute,
	})

	var observer mwmetrics.Observer
	if conf.Metrics.Enabled {
		m := metrics.New(prometheus.DefaultRegisterer)
		handler.SetMetrics(m)
		observer = m
	}

	// api users may live in mongo whatever the snapshot driver is
	if mongo := database.NewMongoClient(conf); mongo != nil {
		handler.SetAuthService(auth.New(mongo, conf.Users))
	} else {
		handler.SetAuthService(auth.New(nil, conf.Users))
	}

	if err = handler.Load(ctx); err != nil {
		lg.Error("loading snapshots", sl.Err(err))
		os.Exit(1)
	}

	if tgBot != nil {
		tgBot.SetCore(handler)
		go func() {
			if e := tgBot.Start(); e != nil {
				lg.Error("telegram bot start", sl.Err(e))
			}
		}()
		defer tgBot.Stop()
	}

	server := api.New(conf, lg, handler, observer)
	go func() {
		if e := server.Start(); e != nil && !errors.Is(e, http.ErrServerClosed) {
			lg.Error("api server", sl.Err(e))
			stop()
		}
	}()

	done := make(chan struct{})
	go func() {
		handler.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		lg.Error("api server shutdown", sl.Err(err))
	}
	// Run flushes snapshots before returning
	<-done
	lg.Info("stopped")
}
