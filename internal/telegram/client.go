// Package telegram sends ingestion notifications via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/vegprice/internal/models"
)

// maxListedFailures caps the failed items spelled out in one message.
const maxListedFailures = 10

// RunSource reports the latest successful update for the /status command.
type RunSource interface {
	LastUpdate() (*models.Run, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	send           func(tgbotapi.Chattable) (tgbotapi.Message, error)
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		send:           bot.Send,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// answers /ping and /status. It returns immediately; the goroutine stops when
// ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, runs RunSource) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, runs)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, runs RunSource) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "status":
		text = statusText(runs)
	default:
		return
	}
	c.send(tgbotapi.NewMessage(msg.Chat.ID, text)) //nolint:errcheck
}

func statusText(runs RunSource) string {
	if runs == nil {
		return "Run journal not configured"
	}
	last, err := runs.LastUpdate()
	if err != nil {
		return "Failed to read run journal: " + err.Error()
	}
	if last == nil {
		return "No update recorded yet"
	}
	return fmt.Sprintf("Last update %s (source date %s): %d/%d items",
		last.FinishedAt.Format("2006-01-02 15:04:05"), models.DateString(last.SourceDate),
		last.ItemsOK, last.ItemsTotal)
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends an ingestion error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Ingestion error*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Ingestion recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// NotifyRun announces a run that published a new snapshot.
func (c *Client) NotifyRun(run *models.Run) error {
	return c.sendMarkdownV2(formatRun(run))
}

// formatRun formats a run summary into a Telegram MarkdownV2 message.
func formatRun(run *models.Run) string {
	var b strings.Builder
	b.WriteString("🥕 *Market prices updated*\n\n")
	fmt.Fprintf(&b, "📅 Source date: %s\n", escapeMarkdownV2(models.DateString(run.SourceDate)))
	fmt.Fprintf(&b, "📦 Items: %d/%d\n", run.ItemsOK, run.ItemsTotal)
	fmt.Fprintf(&b, "📚 New history entries: %d\n", run.LedgersAdded)

	if len(run.Failures) > 0 {
		fmt.Fprintf(&b, "\n❌ *Failed items* \\(%d\\)\n", len(run.Failures))
		for i, f := range run.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "   and %d more\n", len(run.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "   • %s: `%s`\n", escapeMarkdownV2(f.Item), escapeMarkdownV2(f.Error))
		}
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
