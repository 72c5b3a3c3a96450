package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"remindbot/config"
	"remindbot/db"
	"remindbot/delivery"
	"remindbot/tgbot"
)

func main() {
	zl, _ := zap.NewDevelopment()
	defer zl.Sync()
	logger := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("failed loading configuration", "err", err)
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatalw("failed opening reminder store", "err", err)
	}
	defer store.Close()

	bot, err := tgbot.NewTBot(cfg.TgToken, store, logger.Named("tgbot"))
	if err != nil {
		logger.Fatalw("failed starting Telegram bot", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := delivery.NewWorker(store, bot, logger.Named("delivery"), cfg.PollInterval, cfg.DueBatchLimit)
	go worker.Run(ctx)

	digest := delivery.NewDigest(store, bot, logger.Named("digest"), cfg.DigestSchedule)
	if err := digest.Start(); err != nil {
		logger.Fatalw("failed starting daily digest", "err", err)
	}
	defer digest.Stop()

	bot.Run(ctx)
}
