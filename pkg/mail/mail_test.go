package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-hostel-api/pkg/config"
)

func receiptMessage() Message {
	return Message{
		To:           []string{"asha@example.com"},
		Bcc:          []string{"records@example.com"},
		Subject:      "Payment Receipt - 2024-17-3",
		TemplateName: TemplatePaymentReceipt,
		TemplateData: ReceiptData{
			StudentName:   "Asha",
			Room:          "101",
			InvoiceKey:    "2024-17-3",
			ReceiptNo:     "2024-17-3 (101)",
			Period:        "2024-03",
			PaymentDate:   "2024-03-05",
			PaymentMethod: "Cash",
			MonthlyCharge: 6500,
			TotalAmount:   6500,
		},
	}
}

func TestRenderPaymentReceipt(t *testing.T) {
	msg := receiptMessage()
	require.NoError(t, Render(&msg))
	assert.Contains(t, msg.HTML, "2024-17-3 (101)")
	assert.Contains(t, msg.HTML, "₹6500")
}

func TestRenderChangeNotice(t *testing.T) {
	msg := Message{TemplateName: TemplateCollectionUpdate, TemplateData: ChangeNoticeData{
		StudentName: "Asha",
		Reference:   "2024-17-3",
		Changes:     []Change{{Field: "payment_method", Old: "Cash", New: "PhPay-C"}},
	}}
	require.NoError(t, Render(&msg))
	assert.Contains(t, msg.HTML, "PhPay-C")
}

func TestValidateRejectsBadAddress(t *testing.T) {
	msg := receiptMessage()
	msg.To = []string{"not-an-address"}
	require.Error(t, msg.Validate())

	msg.To = nil
	require.Error(t, msg.Validate())
}

func TestResendClientSend(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	client := NewResendClient(srv.URL, "key", mail.Address{Name: "Campus Kota", Address: "no-reply@example.com"})
	require.NoError(t, client.Send(context.Background(), receiptMessage()))
	assert.Equal(t, []string{"asha@example.com"}, got.To)
	assert.Equal(t, []string{"records@example.com"}, got.Bcc)
	assert.Contains(t, got.From, "no-reply@example.com")
	assert.NotEmpty(t, got.HTML)
}

func TestResendClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"invalid from"}`))
	}))
	defer srv.Close()

	client := NewResendClient(srv.URL, "key", mail.Address{Address: "no-reply@example.com"})
	err := client.Send(context.Background(), receiptMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid from")
}

func TestConsoleSenderRecords(t *testing.T) {
	sender := NewConsoleSender(nil)
	require.NoError(t, sender.Send(context.Background(), receiptMessage()))
	require.Len(t, sender.Sent(), 1)
	assert.NotEmpty(t, sender.Sent()[0].HTML)
}

func TestNewSelectsProvider(t *testing.T) {
	s, err := New(config.MailConfig{Provider: config.MailProviderConsole}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ConsoleSender{}, s)

	_, err = New(config.MailConfig{Provider: config.MailProviderResend}, nil)
	require.Error(t, err)

	s, err = New(config.MailConfig{Provider: config.MailProviderSendGrid, APIKey: "k", FromAddress: "a@b.c"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SendGridClient{}, s)

	_, err = New(config.MailConfig{Provider: "pigeon"}, nil)
	require.Error(t, err)
}

func newSendGridForTest(t *testing.T, handler http.HandlerFunc) *SendGridClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewSendGridClient("sg-key", mail.Address{Name: "Campus Kota", Address: "no-reply@example.com"})
	client.client.BaseURL = srv.URL + "/v3/mail/send"
	return client
}

func TestSendGridClientSend(t *testing.T) {
	var got struct {
		From struct {
			Email string `json:"email"`
		} `json:"from"`
		Personalizations []struct {
			To  []struct{ Email string } `json:"to"`
			Bcc []struct{ Email string } `json:"bcc"`
		} `json:"personalizations"`
	}
	client := newSendGridForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, client.Send(context.Background(), receiptMessage()))
	assert.Equal(t, "no-reply@example.com", got.From.Email)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "asha@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "records@example.com", got.Personalizations[0].Bcc[0].Email)
}

func TestSendGridClientErrors(t *testing.T) {
	client := newSendGridForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	})
	err := client.Send(context.Background(), receiptMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = client.Send(ctx, receiptMessage())
	assert.ErrorIs(t, err, context.Canceled)
}
