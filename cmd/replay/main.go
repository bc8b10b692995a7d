package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/backtest"
	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/session"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	input := flag.String("in", "", "source-channel log, one post per line")
	startAt := flag.String("start", "", "RFC3339 time of the first untimestamped post (default: now)")
	flag.Parse()

	if *input == "" {
		log.Fatal().Msg("-in is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	start := time.Now().In(cfg.Timezone)
	if *startAt != "" {
		start, err = time.Parse(time.RFC3339, *startAt)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -start")
		}
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open log")
	}
	defer f.Close()

	posts, err := backtest.ReadPosts(f, start)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read log")
	}

	results, err := backtest.Run(context.Background(), posts, engine.Options{
		Scheduler:          session.NewScheduler(cfg.Timezone, cfg.Sessions),
		LedgerWindow:       cfg.LedgerWindow,
		RecomputeInterval:  cfg.RecomputeInterval,
		Cooldown:           cfg.CooldownDuration,
		NearMissQuarantine: cfg.NearMissQuarantine,
		ResetScope:         cfg.ResetScope,
		Settings:           engine.Settings{Active: true},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}

	log.Info().
		Int("posts", results.Posts).
		Int("predictions", results.Predictions.Total).
		Int("won", results.Predictions.Won).
		Int("lost", results.Predictions.Lost).
		Float64("rate", results.Predictions.Rate()).
		Msg("Replay complete")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}
}
