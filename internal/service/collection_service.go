package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

type collectionRepository interface {
	InvoiceKeysByUID(ctx context.Context, uid int64) ([]string, error)
	FindByInvoiceKey(ctx context.Context, key string) (*models.Collection, error)
	Create(ctx context.Context, c *models.Collection, entry models.LedgerEntry) error
	Update(ctx context.Context, c *models.Collection, adjustment *models.LedgerEntry) error
	List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, error)
	Rooms(ctx context.Context, year, month int) ([]string, error)
}

type collectionStudentRepository interface {
	FindByUID(ctx context.Context, uid int64) (*models.Student, error)
}

type paymentNotifier interface {
	PaymentReceipt(ctx context.Context, st models.Student, c models.Collection) error
	CollectionUpdated(ctx context.Context, st models.Student, c models.Collection, changes []models.FieldChange) error
}

// RecordPaymentRequest records a new payment or edits an existing one. An
// empty InvoiceKey allocates the student's next key.
type RecordPaymentRequest struct {
	InvoiceKey      string               `json:"invoice_key"`
	UID             int64                `json:"uid" validate:"required,gt=0"`
	Year            int                  `json:"year" validate:"required,min=2000,max=2099"`
	Month           int                  `json:"month" validate:"required,min=1,max=12"`
	RoomName        string               `json:"room_name"`
	ReceiptNo       string               `json:"receipt_no"`
	MonthlyCharge   int64                `json:"monthly_charge" validate:"min=0"`
	SecurityDeposit int64                `json:"security_deposit" validate:"min=0"`
	PaymentDate     string               `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" validate:"required,oneof=Cash PhPay-C PhPay-M Cheque"`
	Approved        bool                 `json:"approved"`
}

// CollectionService records payments and aggregates collections.
type CollectionService struct {
	repo         collectionRepository
	students     collectionStudentRepository
	notifier     paymentNotifier
	cache        cacheInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewCollectionService constructs the collection service.
func NewCollectionService(repo collectionRepository, students collectionStudentRepository, notifier paymentNotifier, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, storeTimeout time.Duration) *CollectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{
		repo:         repo,
		students:     students,
		notifier:     notifier,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NextInvoiceKey returns the key the student's next payment will use.
func (s *CollectionService) NextInvoiceKey(ctx context.Context, uid int64) (string, error) {
	keys, err := s.invoiceKeys(ctx, uid)
	if err != nil {
		return "", err
	}
	return billing.NextInvoiceKey(s.now(), uid, keys), nil
}

// SuggestPayment pre-fills a payment for the current month. The deposit is
// only suggested for a student's first payment.
func (s *CollectionService) SuggestPayment(ctx context.Context, uid int64) (*models.PaymentSuggestion, error) {
	st, err := s.findStudent(ctx, uid)
	if err != nil {
		return nil, err
	}
	keys, err := s.invoiceKeys(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := billing.NextInvoiceKey(now, uid, keys)
	suggestion := &models.PaymentSuggestion{
		UID:           uid,
		InvoiceKey:    key,
		ReceiptNo:     billing.DefaultReceiptNo(key, st.RoomName),
		RoomName:      st.RoomName,
		Year:          now.Year(),
		Month:         int(now.Month()),
		MonthlyCharge: st.MonthlyCharge(),
	}
	if len(keys) == 0 {
		suggestion.SecurityDeposit = st.SecurityDeposit
	}
	return suggestion, nil
}

// RecordPayment inserts a payment when its invoice key is new and updates
// it otherwise. total_amount is always recomputed here. Mail failures are
// reported on the result; the saved row is never rolled back.
func (s *CollectionService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*models.PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid payment payload")
	}
	paymentDate, err := billing.ParseDate(req.PaymentDate)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid payment date")
	}
	st, err := s.findStudent(ctx, req.UID)
	if err != nil {
		return nil, err
	}

	req.InvoiceKey = strings.TrimSpace(req.InvoiceKey)
	if req.InvoiceKey == "" {
		if req.InvoiceKey, err = s.NextInvoiceKey(ctx, req.UID); err != nil {
			return nil, err
		}
	}

	existing, err := s.findCollection(ctx, req.InvoiceKey)
	switch {
	case err == nil:
		if existing.UID != req.UID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "invoice key belongs to another student")
		}
		return s.update(ctx, *st, *existing, req, paymentDate)
	case errors.Is(err, sql.ErrNoRows):
		// A new payment may only take the key the server would allocate.
		next, err := s.NextInvoiceKey(ctx, req.UID)
		if err != nil {
			return nil, err
		}
		if req.InvoiceKey != next {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invoice key must be "+next)
		}
		return s.create(ctx, *st, req, paymentDate)
	default:
		return nil, appErrors.Store(err, "failed to load collection")
	}
}

// UpdateCollection edits the payment stored under invoiceKey.
func (s *CollectionService) UpdateCollection(ctx context.Context, invoiceKey string, req RecordPaymentRequest) (*models.PaymentResult, error) {
	if _, err := s.findCollection(ctx, invoiceKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "collection not found")
		}
		return nil, appErrors.Store(err, "failed to load collection")
	}
	req.InvoiceKey = invoiceKey
	return s.RecordPayment(ctx, req)
}

func (s *CollectionService) create(ctx context.Context, st models.Student, req RecordPaymentRequest, paymentDate time.Time) (*models.PaymentResult, error) {
	room := strings.TrimSpace(req.RoomName)
	if room == "" {
		room = st.RoomName
	}
	receipt := strings.TrimSpace(req.ReceiptNo)
	if receipt == "" {
		receipt = billing.DefaultReceiptNo(req.InvoiceKey, room)
	}
	c := models.Collection{
		InvoiceKey:      req.InvoiceKey,
		UID:             req.UID,
		Year:            req.Year,
		Month:           req.Month,
		RoomName:        room,
		ReceiptNo:       receipt,
		MonthlyCharge:   req.MonthlyCharge,
		SecurityDeposit: req.SecurityDeposit,
		TotalAmount:     req.MonthlyCharge + req.SecurityDeposit,
		PaymentDate:     paymentDate,
		PaymentMethod:   req.PaymentMethod,
		Approved:        req.Approved,
	}

	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Create(callCtx, &c, billing.PaymentEntry(c)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "invoice key already used")
		}
		return nil, appErrors.Store(err, "failed to record payment")
	}
	s.metrics.ObservePayment(string(c.PaymentMethod), c.TotalAmount)
	s.invalidateLedger(ctx)

	result := &models.PaymentResult{Collection: &c, Created: true, Saved: true}
	s.deliver(result, func() error { return s.notifier.PaymentReceipt(ctx, st, c) })
	return result, nil
}

func (s *CollectionService) update(ctx context.Context, st models.Student, existing models.Collection, req RecordPaymentRequest, paymentDate time.Time) (*models.PaymentResult, error) {
	updated := existing
	if room := strings.TrimSpace(req.RoomName); room != "" {
		updated.RoomName = room
	}
	if receipt := strings.TrimSpace(req.ReceiptNo); receipt != "" {
		updated.ReceiptNo = receipt
	}
	if !existing.Approved {
		updated.Year = req.Year
		updated.Month = req.Month
		updated.MonthlyCharge = req.MonthlyCharge
		updated.SecurityDeposit = req.SecurityDeposit
		updated.TotalAmount = req.MonthlyCharge + req.SecurityDeposit
		updated.PaymentDate = paymentDate
		updated.PaymentMethod = req.PaymentMethod
		updated.Approved = req.Approved
	}

	changes := CollectionChanges(existing, updated)
	result := &models.PaymentResult{Collection: &updated, Saved: true, Changes: changes}
	if len(changes) == 0 {
		result.Collection = &existing
		return result, nil
	}

	var adjustment *models.LedgerEntry
	updated.UpdatedAt = s.now()
	if entry, ok := billing.PaymentAdjustment(existing, updated); ok {
		adjustment = &entry
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Update(callCtx, &updated, adjustment); err != nil {
		return nil, appErrors.Store(err, "failed to update payment")
	}
	if adjustment != nil {
		s.invalidateLedger(ctx)
	}

	if !existing.Approved {
		s.deliver(result, func() error { return s.notifier.CollectionUpdated(ctx, st, updated, changes) })
	}
	return result, nil
}

func (s *CollectionService) deliver(result *models.PaymentResult, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		result.EmailError = err.Error()
		return
	}
	result.EmailSent = true
}

// CollectionChanges lists the fields that differ between two versions of a payment.
func CollectionChanges(old, updated models.Collection) []models.FieldChange {
	var d billing.Differ
	d.Int("year", int64(old.Year), int64(updated.Year))
	d.Int("month", int64(old.Month), int64(updated.Month))
	d.String("room_name", old.RoomName, updated.RoomName)
	d.String("receipt_no", old.ReceiptNo, updated.ReceiptNo)
	d.Int("monthly_charge", old.MonthlyCharge, updated.MonthlyCharge)
	d.Int("security_deposit", old.SecurityDeposit, updated.SecurityDeposit)
	d.Int("total_amount", old.TotalAmount, updated.TotalAmount)
	d.Date("payment_date", old.PaymentDate, updated.PaymentDate)
	d.String("payment_method", string(old.PaymentMethod), string(updated.PaymentMethod))
	d.Bool("approved", old.Approved, updated.Approved)
	return d.Changes()
}

// ListCollections returns a month of payments with per-method totals and
// the rooms that paid.
func (s *CollectionService) ListCollections(ctx context.Context, filter models.CollectionFilter) (*models.CollectionList, error) {
	if filter.Month < 1 || filter.Month > 12 || filter.Year < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year and month are required")
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	items, err := s.repo.List(callCtx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list collections")
	}
	rooms, err := s.repo.Rooms(callCtx, filter.Year, filter.Month)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list collection rooms")
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].RoomName < items[j].RoomName })
	list := &models.CollectionList{Items: items, Totals: models.PaymentTotals{}, Rooms: rooms}
	for _, m := range models.PaymentMethods {
		list.Totals[m] = 0
	}
	for _, c := range items {
		list.Totals[c.PaymentMethod] += c.TotalAmount
		list.GrandTotal += c.TotalAmount
	}
	if list.Items == nil {
		list.Items = []models.Collection{}
	}
	return list, nil
}

func (s *CollectionService) invoiceKeys(ctx context.Context, uid int64) ([]string, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	keys, err := s.repo.InvoiceKeysByUID(callCtx, uid)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list invoice keys")
	}
	return keys, nil
}

func (s *CollectionService) findCollection(ctx context.Context, key string) (*models.Collection, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	return s.repo.FindByInvoiceKey(callCtx, key)
}

func (s *CollectionService) findStudent(ctx context.Context, uid int64) (*models.Student, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	st, err := s.students.FindByUID(callCtx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Store(err, "failed to load student")
	}
	return st, nil
}

func (s *CollectionService) invalidateLedger(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ledgerCachePattern)
	}
}
