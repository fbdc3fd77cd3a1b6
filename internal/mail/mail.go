// Package mail delivers one-time sign-in links.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Message is the JSON body posted to the mail endpoint.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPMailer posts messages to a transactional mail API.
type HTTPMailer struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

func NewHTTPMailer(endpoint, apiKey, from string, logger *zap.Logger) *HTTPMailer {
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPMailer{httpClient: client, from: from, logger: logger}
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = m.from
	}
	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		Post("")
	if err != nil {
		m.logger.Error("Mail delivery failed", zap.String("to", msg.To), zap.Error(err))
		return fmt.Errorf("send mail: %w", err)
	}
	if resp.IsError() {
		m.logger.Error("Mail delivery rejected",
			zap.String("to", msg.To),
			zap.Int("status", resp.StatusCode()),
		)
		return fmt.Errorf("send mail: status %d", resp.StatusCode())
	}
	m.logger.Info("Mail sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// LogMailer writes messages to the log; used when no endpoint is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer { return &LogMailer{logger: logger} }

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("Mail (not delivered)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

// SignInLink renders the one-time link message.
func SignInLink(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Your Fluxia sign-in link",
		Text: "Use the link below to sign in to Fluxia. It can be used once.\n\n" +
			link + "\n\nIf you did not request it, ignore this email.",
	}
}
