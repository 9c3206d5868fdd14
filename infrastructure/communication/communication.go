package communication

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Notifier posts operator messages.
type Notifier interface {
	Info(ctx context.Context, message string) error
	Error(ctx context.Context, message string) error
}

type Slack struct {
	client  *slack.Client
	options SlackOption
}

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string
}

func NewSlack(token string, options SlackOption, clientOptions ...slack.Option) *Slack {
	client := slack.New(token, clientOptions...)
	return &Slack{client: client, options: options}
}

// NewNotifier returns a Slack notifier, or a Discard one when token is empty.
func NewNotifier(token string, options SlackOption) Notifier {
	if token == "" {
		return Discard{}
	}
	return NewSlack(token, options)
}

func (s *Slack) postMessage(ctx context.Context, channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.InfoChannelID, message)
}

func (s *Slack) Error(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.ErrorChannelID, message)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Info(ctx context.Context, message string) error  { return nil }
func (Discard) Error(ctx context.Context, message string) error { return nil }
