// Package notify delivers run results to the owner.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stellarlinkco/librarian/internal/config"
)

// Telegram has a 4096 char limit per message
const maxMessageLen = 4000

// Notifier sends a short text report somewhere a human will read it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// New returns the notifier enabled in cfg, or nil when none is.
func New(cfg *config.Config) (Notifier, error) {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return nil, nil
	}
	n, err := NewTelegram(tg)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Telegram posts plain-text reports to one chat.
type Telegram struct {
	token      string
	chatID     int64
	proxy      string
	botFactory BotFactory

	mu  sync.Mutex
	bot TelegramBot
}

func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	return NewTelegramWithFactory(cfg, defaultBotFactory)
}

// NewTelegramWithFactory creates a Telegram notifier with custom bot factory (for testing)
func NewTelegramWithFactory(cfg config.TelegramConfig, factory BotFactory) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	return &Telegram{
		token:      cfg.Token,
		chatID:     cfg.ChatID,
		proxy:      cfg.Proxy,
		botFactory: factory,
	}, nil
}

func (t *Telegram) initBot() (TelegramBot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}

	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[notify] telegram authorized as @%s", bot.GetSelf().UserName)
	return bot, nil
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty notification")
	}
	bot, err := t.initBot()
	if err != nil {
		return err
	}

	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	log.Printf("[notify] telegram report sent to %d", t.chatID)
	return nil
}

// splitMessage cuts text into chunks of at most maxLen bytes, preferring the last
// newline and never splitting a UTF-8 sequence.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cut := maxLen
			if idx := strings.LastIndex(chunk[:maxLen], "\n"); idx > 0 {
				cut = idx
			} else {
				for cut > 0 && !utf8.RuneStart(chunk[cut]) {
					cut--
				}
			}
			chunk = chunk[:cut]
		}
		text = strings.TrimPrefix(text[len(chunk):], "\n")
		chunks = append(chunks, chunk)
	}
	return chunks
}
