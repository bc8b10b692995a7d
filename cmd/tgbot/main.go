package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/session"
	"github.com/Alias1177/CardPredictor/internal/store"
	"github.com/Alias1177/CardPredictor/internal/telegram"
)

var allowedUpdates = []string{"message", "edited_message", "channel_post", "edited_channel_post"}

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(ctx, engine.Options{
		Store:              store.WithRetry(st, 5*time.Second),
		Scheduler:          session.NewScheduler(cfg.Timezone, cfg.Sessions),
		LedgerWindow:       cfg.LedgerWindow,
		RecomputeInterval:  cfg.RecomputeInterval,
		Cooldown:           cfg.CooldownDuration,
		NearMissQuarantine: cfg.NearMissQuarantine,
		ResetScope:         cfg.ResetScope,
		Settings: engine.Settings{
			Active:            true,
			SourceChannel:     cfg.SourceChannelID,
			PredictionChannel: cfg.PredictionChannelID,
		},
	})

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	log.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")

	dispatcher := telegram.NewDispatcher(eng, telegram.NewClient(bot, telegram.ClientOptions{}), cfg.UserRateLimit)
	go dispatcher.RunTicker(ctx, cfg.TickInterval)

	updates, err := listen(bot, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start receiving updates")
	}

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			log.Info().Msg("Shutting down")
			return
		case update := <-updates:
			dispatcher.HandleUpdate(ctx, update)
		}
	}
}

// listen starts webhook mode when WEBHOOK_URL is set, long polling otherwise.
func listen(bot *tgbotapi.BotAPI, cfg *config.Config) (tgbotapi.UpdatesChannel, error) {
	if cfg.WebhookURL == "" {
		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = 60
		updateConfig.AllowedUpdates = allowedUpdates
		return bot.GetUpdatesChan(updateConfig), nil
	}

	wh, err := tgbotapi.NewWebhook(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	wh.AllowedUpdates = allowedUpdates
	if _, err := bot.Request(wh); err != nil {
		return nil, err
	}
	log.Info().Str("url", cfg.WebhookURL).Msg("Webhook configured")

	updates := bot.ListenForWebhook("/webhook")
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting webhook server")
		if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
			log.Fatal().Err(err).Msg("Webhook server failed")
		}
	}()
	return updates, nil
}
