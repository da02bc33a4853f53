package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ResendClient posts messages to the Resend HTTP API.
type ResendClient struct {
	httpClient *resty.Client
	from       string
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// NewResendClient builds a client for the given API base URL and key.
func NewResendClient(baseURL, apiKey string, from mail.Address) *ResendClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &ResendClient{httpClient: client, from: from.String()}
}

// Send renders and delivers one message.
func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	if err := prepare(&msg); err != nil {
		return err
	}

	result := new(resendResponse)
	apiErr := new(resendError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    c.from,
			To:      msg.To,
			Bcc:     msg.Bcc,
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}).
		SetResult(result).
		SetError(apiErr).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("send resend email: %w", err)
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("resend api error (%d %s): %s", resp.StatusCode(), apiErr.Name, apiErr.Message)
		}
		return fmt.Errorf("resend api error: status %d", resp.StatusCode())
	}
	if result.ID == "" {
		return fmt.Errorf("resend api returned no message id")
	}
	return nil
}
