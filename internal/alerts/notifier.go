// Package alerts pushes operational failure notifications to Telegram.
package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/models"
)

// Sender delivers one alert message. Satisfied by telegramSender;
// replaceable in tests.
type Sender interface {
	Send(text string) error
}

// Config configures the notifier. An empty token or zero chat ID disables
// sending entirely.
type Config struct {
	TelegramToken  string
	TelegramChatID int64
	// RatePerMinute caps outbound messages; 0 uses the default.
	RatePerMinute int
	// DedupWindow suppresses repeats of the same alert key; 0 uses 5m.
	DedupWindow time.Duration
}

// Notifier sends throttled, deduplicated failure alerts. All methods are
// safe to call concurrently and never block the caller on network errors.
type Notifier struct {
	sender    Sender
	throttler *Throttler
	logger    *logging.Logger
	enabled   bool

	dedupWindow time.Duration
	mu          sync.Mutex
	lastSent    map[string]time.Time
}

// NewNotifier builds a notifier from config. When Telegram is not
// configured the notifier is a no-op.
func NewNotifier(cfg Config, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewLogger()
	}

	n := &Notifier{
		throttler:   NewThrottler(cfg.RatePerMinute, 0),
		logger:      logger,
		dedupWindow: cfg.DedupWindow,
		lastSent:    make(map[string]time.Time),
	}
	if n.dedupWindow <= 0 {
		n.dedupWindow = 5 * time.Minute
	}

	token := strings.TrimSpace(cfg.TelegramToken)
	if token == "" || cfg.TelegramChatID == 0 {
		logger.Info("telegram alerts disabled: no token or chat configured")
		return n
	}

	sender, err := newTelegramSender(token, cfg.TelegramChatID)
	if err != nil {
		logger.Warn("telegram alerts disabled: bot init failed", "error", err.Error())
		return n
	}
	n.sender = sender
	n.enabled = true
	return n
}

// NewNotifierWithSender builds an enabled notifier over an explicit sender.
func NewNotifierWithSender(sender Sender, logger *logging.Logger) *Notifier {
	n := NewNotifier(Config{}, logger)
	n.sender = sender
	n.enabled = true
	return n
}

// LoginFailure reports a failed marketplace login attempt.
func (n *Notifier) LoginFailure(marketplace models.Marketplace, reason string) {
	key := "login_failure:" + string(marketplace)
	n.notify(key, fmt.Sprintf("⚠️ %s login failed: %s", marketplace.Info().DisplayName, reason))
}

// StoreFailure reports a persistence error.
func (n *Notifier) StoreFailure(operation string, err error) {
	key := "store_failure:" + operation
	n.notify(key, fmt.Sprintf("🔥 store %s failed: %v", operation, err))
}

// LimiterFailOpen reports that the rate limiter backend is down and checks
// are being allowed through unchecked.
func (n *Notifier) LimiterFailOpen(limitType string) {
	key := "limiter_fail_open:" + limitType
	n.notify(key, fmt.Sprintf("⚠️ rate limiter backend unavailable, failing open for %s checks", limitType))
}

func (n *Notifier) notify(key, text string) {
	if !n.enabled || n.sender == nil {
		return
	}
	if !n.shouldSend(key) {
		return
	}
	if !n.throttler.Allow() {
		n.logger.Debug("alert throttled", "key", key)
		return
	}
	if err := n.sender.Send(text); err != nil {
		n.logger.Warn("alert delivery failed", "key", key, "error", err.Error())
	}
}

// shouldSend applies per-key deduplication.
func (n *Notifier) shouldSend(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.dedupWindow {
		return false
	}
	n.lastSent[key] = now
	return true
}

type telegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func newTelegramSender(token string, chatID int64) (*telegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &telegramSender{bot: bot, chatID: chatID}, nil
}

func (s *telegramSender) Send(text string) error {
	msg := tgbotapi.NewMessage(s.chatID, text)
	_, err := s.bot.Send(msg)
	return err
}
