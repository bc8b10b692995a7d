// Package telegram connects the engine to Telegram: a rate-limited, retrying
// bot client and the dispatcher that routes updates and scheduler ticks.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Alias1177/CardPredictor/internal/model"
)

// Sender is the part of *tgbotapi.BotAPI the client needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	MessagesPerSec  int
	MaxRetryTimeout time.Duration
}

// Client is a wrapper for the bot API with rate limiting and retries
type Client struct {
	api        Sender
	limiter    *rate.Limiter
	maxElapsed time.Duration
	logger     zerolog.Logger
}

// NewClient creates a new bot client with rate limiting
func NewClient(api Sender, opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.MessagesPerSec == 0 {
		opts.MessagesPerSec = 20
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &Client{
		api:        api,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.MessagesPerSec)), opts.MessagesPerSec),
		maxElapsed: opts.MaxRetryTimeout,
		logger:     log.With().Str("component", "telegram_client").Logger(),
	}
}

// Publish sends text to chatID and returns the new message reference.
func (c *Client) Publish(ctx context.Context, chatID int64, text string) (model.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := c.send(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("publishing to %d: %w", chatID, err)
	}
	return model.MessageRef(sent.MessageID), nil
}

// Edit replaces the text of a published message.
func (c *Client) Edit(ctx context.Context, chatID int64, ref model.MessageRef, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, int(ref), text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.send(ctx, edit); err != nil {
		return fmt.Errorf("editing message %d in %d: %w", ref, chatID, err)
	}
	return nil
}

// Reply sends a plain text answer to a command.
func (c *Client) Reply(ctx context.Context, chatID int64, text string) error {
	_, err := c.send(ctx, tgbotapi.NewMessage(chatID, text))
	return err
}

func (c *Client) send(ctx context.Context, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("rate limiter error: %w", err)
	}

	// Use exponential backoff for retries
	var sent tgbotapi.Message
	operation := func() error {
		var err error
		sent, err = c.api.Send(chattable)
		if err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return backoff.Permanent(err)
		}
		c.logger.Warn().Err(err).Msg("Telegram request failed, retrying")
		return err
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return tgbotapi.Message{}, err
	}
	return sent, nil
}
