package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
	"github.com/noah-isme/campus-hostel-api/pkg/logger"
	"github.com/noah-isme/campus-hostel-api/pkg/mail"
)

// NotificationConfig holds addresses and limits for transactional mail.
type NotificationConfig struct {
	RecordsAddress string
	ReceiptBCC     string
	WelcomeBCC     string
	Timeout        time.Duration
}

// NotificationService turns domain events into emails.
type NotificationService struct {
	sender  mail.Sender
	cfg     NotificationConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(sender mail.Sender, cfg NotificationConfig, metrics *MetricsService, log *zap.Logger) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &NotificationService{sender: sender, cfg: cfg, metrics: metrics, logger: log}
}

// Welcome greets a newly admitted student.
func (s *NotificationService) Welcome(ctx context.Context, st models.Student) error {
	return s.send(ctx, mail.Message{
		To:           []string{st.Email},
		Bcc:          nonEmpty(s.cfg.WelcomeBCC),
		Subject:      fmt.Sprintf("Welcome to Campus Kota, %s!", st.FirstName),
		TemplateName: mail.TemplateWelcome,
		TemplateData: mail.WelcomeData{
			FirstName:       st.FirstName,
			LastName:        st.LastName,
			Room:            st.RoomName,
			StartDate:       billing.FormatDate(st.StartDate),
			MonthlyRent:     st.MonthlyRent,
			SecurityDeposit: st.SecurityDeposit,
			LaundryCharge:   st.LaundryCharge,
			Mobile:          st.StudentMobile,
			Email:           st.Email,
		},
	})
}

// StudentUpdated tells the records desk which student fields changed.
func (s *NotificationService) StudentUpdated(ctx context.Context, st models.Student, changes []models.FieldChange) error {
	if len(changes) == 0 {
		return nil
	}
	return s.send(ctx, mail.Message{
		To:           []string{s.cfg.RecordsAddress},
		Subject:      "Student Record Update",
		TemplateName: mail.TemplateDetailUpdate,
		TemplateData: changeNotice(st, strconv.FormatInt(st.UID, 10), changes),
	})
}

// PaymentReceipt mails the receipt of a new payment to the student with a
// copy to records.
func (s *NotificationService) PaymentReceipt(ctx context.Context, st models.Student, c models.Collection) error {
	return s.send(ctx, mail.Message{
		To:           []string{st.Email},
		Bcc:          nonEmpty(s.cfg.RecordsAddress, s.cfg.ReceiptBCC),
		Subject:      fmt.Sprintf("Payment Receipt - %s", c.InvoiceKey),
		TemplateName: mail.TemplatePaymentReceipt,
		TemplateData: mail.ReceiptData{
			StudentName:     st.FullName(),
			Room:            c.RoomName,
			InvoiceKey:      c.InvoiceKey,
			ReceiptNo:       c.ReceiptNo,
			Period:          billing.Period{Year: c.Year, Month: time.Month(c.Month)}.String(),
			PaymentDate:     billing.FormatDate(c.PaymentDate),
			PaymentMethod:   string(c.PaymentMethod),
			MonthlyCharge:   c.MonthlyCharge,
			SecurityDeposit: c.SecurityDeposit,
			TotalAmount:     c.TotalAmount,
		},
	})
}

// CollectionUpdated lists the old and new values of an edited payment.
func (s *NotificationService) CollectionUpdated(ctx context.Context, st models.Student, c models.Collection, changes []models.FieldChange) error {
	if len(changes) == 0 {
		return nil
	}
	return s.send(ctx, mail.Message{
		To:           []string{st.Email},
		Bcc:          nonEmpty(s.cfg.RecordsAddress),
		Subject:      fmt.Sprintf("Payment Update - %s", c.InvoiceKey),
		TemplateName: mail.TemplateCollectionUpdate,
		TemplateData: changeNotice(st, c.InvoiceKey, changes),
	})
}

func (s *NotificationService) send(ctx context.Context, msg mail.Message) error {
	if s.sender == nil {
		return appErrors.Clone(appErrors.ErrMailDelivery, "mail is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.ObserveMailFailure(msg.TemplateName)
		logger.For(ctx, s.logger).Warn("email delivery failed",
			zap.String("template", msg.TemplateName),
			zap.Strings("to", msg.To),
			zap.Error(err),
		)
		return appErrors.WrapAs(appErrors.ErrMailDelivery, err, "notification could not be delivered")
	}
	return nil
}

func changeNotice(st models.Student, reference string, changes []models.FieldChange) mail.ChangeNoticeData {
	lines := make([]mail.Change, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, mail.Change{Field: c.Field, Old: c.Old, New: c.New})
	}
	return mail.ChangeNoticeData{
		StudentName: st.FullName(),
		Room:        st.RoomName,
		Reference:   reference,
		Changes:     lines,
	}
}

func nonEmpty(addrs ...string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
