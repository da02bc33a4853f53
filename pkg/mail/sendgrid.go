package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridClient delivers messages through SendGrid's v3 mail API.
type SendGridClient struct {
	client *sendgrid.Client
	http   *http.Client
	from   *sgmail.Email
}

// NewSendGridClient builds a SendGrid sender.
func NewSendGridClient(apiKey string, from mail.Address) *SendGridClient {
	return &SendGridClient{
		client: sendgrid.NewSendClient(apiKey),
		http:   rest.DefaultClient.HTTPClient,
		from:   sgmail.NewEmail(from.Name, from.Address),
	}
}

// Send renders and delivers one message.
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if err := prepare(&msg); err != nil {
		return err
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgmail.NewEmail("", bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.Subject = msg.Subject
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))

	// sendgrid.Client.Send has no context; build the request it would send
	// and bind ctx to it.
	req := c.client.Request
	req.Body = sgmail.GetRequestBody(m)
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return fmt.Errorf("build sendgrid request: %w", err)
	}
	raw, err := c.http.Do(httpReq.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send sendgrid email: %w", err)
	}
	res, err := rest.BuildResponse(raw)
	if err != nil {
		return fmt.Errorf("read sendgrid response: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid api error: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
