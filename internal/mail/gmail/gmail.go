package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"

	"budget/internal/config"
	"budget/internal/mail"
)

// Client sends notification mail through the Gmail API using an OAuth token
// obtained with the oauth-init tool.
type Client struct {
	svc       *gmailapi.Service
	recipient string
	sender    string
}

var _ mail.Sender = (*Client)(nil)

// NewFromConfig builds a Gmail sender from OAuth client credentials and a
// stored token, either inline JSON or file paths.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.MailRecipient == "" {
		return nil, errors.New("missing mail recipient")
	}

	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(clientJSON, gmailapi.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gmailapi.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	slog.InfoContext(ctx, "Gmail sender ready", "recipient", cfg.MailRecipient)

	return &Client{
		svc:       svc,
		recipient: cfg.MailRecipient,
		sender:    cfg.MailSender,
	}, nil
}

func readCredential(inline, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("not configured")
	}
}

// Send delivers a plain-text mail. Subjects are RFC 2047 encoded so Cyrillic
// text survives the transport.
func (c *Client) Send(ctx context.Context, subject, body string) error {
	raw := buildMessage(c.sender, c.recipient, subject, body)

	_, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	slog.InfoContext(ctx, "Mail sent", "recipient", c.recipient)
	return nil
}

func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	if from != "" {
		b.WriteString("From: " + from + "\r\n")
	}
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + encodeSubject(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

func encodeSubject(subject string) string {
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?="
}
