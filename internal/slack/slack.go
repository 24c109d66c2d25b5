package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slackapi "github.com/slack-go/slack"
)

// Sender is the notification-channel contract: deliver a text message,
// reporting success or failure only. Failures are logged inside the
// implementation; callers decide whether a failed send aborts anything.
type Sender interface {
	Send(ctx context.Context, text string) bool
}

// WebhookSender posts messages to a Slack incoming webhook.
type WebhookSender struct {
	url    string
	logger *slog.Logger
}

// NewWebhookSender creates a webhook-backed sender. An empty URL yields a
// sender whose Send always fails (logged), so a missing webhook degrades to
// log-only operation instead of an error path.
func NewWebhookSender(logger *slog.Logger, url string) *WebhookSender {
	return &WebhookSender{url: url, logger: logger}
}

func (s *WebhookSender) Send(ctx context.Context, text string) bool {
	if s.url == "" {
		s.logger.Warn("Slack webhook URL is not configured, message not sent.")
		return false
	}
	err := slackapi.PostWebhookContext(ctx, s.url, &slackapi.WebhookMessage{Text: text})
	if err != nil {
		s.logger.Error("Failed to post Slack webhook message", "error", err)
		return false
	}
	s.logger.Info("Sent Slack message.", "chars", len(text))
	return true
}

// BotClient wraps the Slack Web API for the operations the new-row notifier
// needs: finding a recent channel message and replying in its thread.
type BotClient struct {
	api       *slackapi.Client
	channelID string
	logger    *slog.Logger
}

// NewBotClient creates a bot-token client bound to one channel.
func NewBotClient(logger *slog.Logger, token, channelID string) (*BotClient, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("slack bot token and channel id must both be configured")
	}
	return &BotClient{api: slackapi.New(token), channelID: channelID, logger: logger}, nil
}

// FindMessageTS scans recent channel history for the first message whose
// text contains the given key and returns its timestamp, or "" when none
// matches.
func (b *BotClient) FindMessageTS(ctx context.Context, key string, limit int) (string, error) {
	if limit <= 0 {
		limit = 200
	}
	resp, err := b.api.GetConversationHistoryContext(ctx, &slackapi.GetConversationHistoryParameters{
		ChannelID: b.channelID,
		Limit:     limit,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read channel history: %w", err)
	}
	for _, msg := range resp.Messages {
		if strings.Contains(msg.Text, key) {
			return msg.Timestamp, nil
		}
	}
	return "", nil
}

// PostThreadReply posts a message into the thread of an existing message.
func (b *BotClient) PostThreadReply(ctx context.Context, ts, text string) error {
	_, _, err := b.api.PostMessageContext(ctx, b.channelID,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionTS(ts),
	)
	if err != nil {
		return fmt.Errorf("failed to post thread reply: %w", err)
	}
	b.logger.Info("Posted thread reply.", "ts", ts)
	return nil
}
