package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"golang.org/x/oauth2"
)

// SMTPConfig configures the OAuth2 authenticated SMTP transport.
type SMTPConfig struct {
	Host         string
	Port         int
	Username     string // mailbox the OAuth token belongs to
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// SMTPTransport sends messages over SMTP using XOAUTH2. Access tokens are
// obtained from a refresh token and cached until they expire.
type SMTPTransport struct {
	cfg    SMTPConfig
	tokens oauth2.TokenSource
}

// NewSMTPTransport builds the transport. ctx is used for token refreshes.
func NewSMTPTransport(ctx context.Context, cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.RefreshToken == "" {
		return nil, errors.New("oauth refresh token is required")
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
	return &SMTPTransport{
		cfg:    cfg,
		tokens: oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}),
	}, nil
}

// Send delivers m. An empty From falls back to the authenticated mailbox.
func (t *SMTPTransport) Send(ctx context.Context, m Message) error {
	tok, err := t.tokens.Token()
	if err != nil {
		return fmt.Errorf("oauth token: %w", err)
	}

	msg, err := t.build(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(t.cfg.Host,
		mail.WithPort(t.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthXOAUTH2),
		mail.WithUsername(t.cfg.Username),
		mail.WithPassword(tok.AccessToken),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) build(m Message) (*mail.Msg, error) {
	from := m.From
	if from == "" {
		from = t.cfg.Username
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}
