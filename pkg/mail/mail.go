// Package mail delivers the hostel's transactional emails through a
// pluggable provider.
package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/pkg/config"
)

// Template names known to the renderer.
const (
	TemplateWelcome          = "welcome"
	TemplateDetailUpdate     = "detail-update-notice"
	TemplatePaymentReceipt   = "payment-receipt"
	TemplateCollectionUpdate = "collection-update-notice"
)

// Message is one outbound email. HTML is filled by Render from TemplateName
// and TemplateData when left empty.
type Message struct {
	To           []string
	Bcc          []string
	Subject      string
	TemplateName string
	TemplateData interface{}
	HTML         string
}

// Sender is the mail capability used by the services.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks recipients before a provider call is attempted.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("mail: message has no recipients")
	}
	for _, addr := range append(append([]string{}, m.To...), m.Bcc...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("mail: invalid address %q: %w", addr, err)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("mail: subject required")
	}
	return nil
}

// New selects the provider named in config.
func New(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	switch cfg.Provider {
	case config.MailProviderResend:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mail: resend provider requires MAIL_API_KEY")
		}
		return NewResendClient(cfg.BaseURL, cfg.APIKey, from), nil
	case config.MailProviderSendGrid:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mail: sendgrid provider requires MAIL_API_KEY")
		}
		return NewSendGridClient(cfg.APIKey, from), nil
	case config.MailProviderConsole, "":
		return NewConsoleSender(logger), nil
	default:
		return nil, fmt.Errorf("mail: unknown provider %q", cfg.Provider)
	}
}

func prepare(msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.HTML == "" {
		return Render(msg)
	}
	return nil
}
